package mailbox

// MessageInfo is the wire form of a message. Any field can be missing from a server response.
type MessageInfo struct {
	ID         MessageID `json:"messageID"`
	Subject    string    `json:"subject,omitempty"`
	From       string    `json:"from,omitempty"`
	Flags      []string  `json:"flags,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Attachment bool      `json:"attachment,omitempty"`
	// The message size in bytes.
	Size uint32 `json:"size,omitempty"`
	// The date the message was received, as epoch seconds.
	Received int64 `json:"received,omitempty"`
	// The date the message arrived in the mailbox, as epoch seconds.
	Arrived int64 `json:"arrived,omitempty"`
}
