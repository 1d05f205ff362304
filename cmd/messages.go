package cmd

import (
	"strings"

	"github.com/creativeprojects/mailstate/mailbox"
	"github.com/creativeprojects/mailstate/message"
	"github.com/creativeprojects/mailstate/term"
	"github.com/spf13/cobra"
)

var messagesCmd = &cobra.Command{
	Use:   "messages <folder>",
	Short: "Display the messages of a mail folder",
	Args:  cobra.ExactArgs(1),
	RunE:  runMessages,
}

func init() {
	rootCmd.AddCommand(messagesCmd)
}

func runMessages(cmd *cobra.Command, args []string) error {
	session, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	folderID, err := session.folderID(mailbox.Mail, args[0])
	if err != nil {
		return err
	}
	messages, err := session.messages(folderID)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		term.Warn("No message in this folder")
		return nil
	}
	displayMessages(messages)
	return nil
}

func displayMessages(messages []message.Message) {
	rows := make([][]string, len(messages))
	for i, msg := range messages {
		rows[i] = []string{
			msg.ID.String(),
			msg.Received.Display,
			msg.From,
			msg.Subject,
			msg.SizeDisplay,
			displayStatus(msg),
			displayTags(msg.Tags),
		}
	}
	err := term.Table([]string{"ID", "Received", "From", "Subject", "Size", "Status", "Tags"}, rows)
	if err != nil {
		term.Error(err)
	}
}

func displayStatus(msg message.Message) string {
	status := make([]string, 0, 5)
	if !msg.Seen {
		status = append(status, "new")
	}
	if msg.Flagged {
		status = append(status, "starred")
	}
	if msg.Answered {
		status = append(status, "answered")
	}
	if msg.Junk {
		status = append(status, "junk")
	}
	if msg.Attachment {
		status = append(status, "attachment")
	}
	return strings.Join(status, ", ")
}

func displayTags(tags []message.Tag) string {
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	return strings.Join(names, ", ")
}
