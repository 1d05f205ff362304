package mailbox

// CopyEntry links a copied message to the new identity the server gave to its copy
type CopyEntry struct {
	SourceMessageID MessageID `json:"sourceMessageID"`
	TargetMessageID MessageID `json:"targetMessageID"`
}

// FindCopyEntryFromSourceID returns the entry for sourceID, or nil
func FindCopyEntryFromSourceID(entries []CopyEntry, sourceID MessageID) *CopyEntry {
	for i := range entries {
		if entries[i].SourceMessageID == sourceID {
			return &entries[i]
		}
	}
	return nil
}
