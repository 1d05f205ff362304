package cmd

import (
	"errors"
	"strings"

	"github.com/creativeprojects/mailstate/event"
	"github.com/creativeprojects/mailstate/mailbox"
	"github.com/creativeprojects/mailstate/message"
	"github.com/creativeprojects/mailstate/term"
	"github.com/spf13/cobra"
)

var (
	flagCmd = &cobra.Command{
		Use:   "flag <folder> <action> <message ID>...",
		Short: "Change a flag on messages. Actions: " + strings.Join(actionNames(), ", "),
		Args:  cobra.MinimumNArgs(3),
		RunE:  runFlag,
	}
	tagCmd = &cobra.Command{
		Use:   "tag <folder> <message ID>...",
		Short: "Add tags to messages",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runTag,
	}
	copyCmd = &cobra.Command{
		Use:   "copy <folder> <target folder> <message ID>...",
		Short: "Copy messages to another folder",
		Args:  cobra.MinimumNArgs(3),
		RunE:  runCopy,
	}
	moveCmd = &cobra.Command{
		Use:   "move <folder> <target folder> <message ID>...",
		Short: "Move messages to another folder",
		Args:  cobra.MinimumNArgs(3),
		RunE:  runMove,
	}
	deleteCmd = &cobra.Command{
		Use:   "delete <folder> <message ID>...",
		Short: "Delete messages",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runDelete,
	}
)

var (
	tagNames           []string
	errNothingToChange = errors.New("nothing to change")
)

func init() {
	tagCmd.Flags().StringSliceVarP(&tagNames, "tag", "t", nil, "tag to add (can be repeated)")
	_ = tagCmd.MarkFlagRequired("tag")
	rootCmd.AddCommand(flagCmd, tagCmd, copyCmd, moveCmd, deleteCmd)
}

func actionNames() []string {
	actions := message.Actions()
	names := make([]string, len(actions))
	for i, action := range actions {
		names[i] = string(action)
	}
	return names
}

// changeMessages loads the folder in the cache and waits for the outcome of the operation started by fn
func changeMessages(folderName string, ids []string, operation string, fn func(s *session, cache *message.Cache, folderID mailbox.FolderID, ids []mailbox.MessageID) error) (any, error) {
	messageIDs, err := parseMessageIDs(ids)
	if err != nil {
		return nil, err
	}
	session, err := openSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	folderID, err := session.mailFolder(folderName)
	if err != nil {
		return nil, err
	}
	cache := session.client.Messages()
	return event.Await(cache.Hub(), operation, global.wait, func() error {
		return fn(session, cache, folderID, messageIDs)
	})
}

func runFlag(cmd *cobra.Command, args []string) error {
	action, err := message.ParseAction(args[1])
	if err != nil {
		return err
	}
	messageIDs, err := parseMessageIDs(args[2:])
	if err != nil {
		return err
	}
	session, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	folderID, err := session.mailFolder(args[0])
	if err != nil {
		return err
	}
	cache := session.client.Messages()
	payload, err := event.Await(cache.Hub(), message.Flagged, global.wait, func() error {
		narrowed, err := cache.Flag(folderID, messageIDs, action)
		if err != nil {
			return err
		}
		if len(narrowed) == 0 {
			// no request sent, so no event is coming
			return errNothingToChange
		}
		return nil
	})
	if errors.Is(err, errNothingToChange) {
		term.Infof("no message to mark as %s", action)
		return nil
	}
	if err != nil {
		return err
	}
	change := payload.(message.FlagChange)
	term.Infof("%d message(s) marked as %s", len(change.MessageIDs), action)
	return nil
}

func runTag(cmd *cobra.Command, args []string) error {
	payload, err := changeMessages(args[0], args[1:], message.Tagged, func(s *session, cache *message.Cache, folderID mailbox.FolderID, ids []mailbox.MessageID) error {
		return cache.Tag(folderID, ids, tagNames...)
	})
	if err != nil {
		return err
	}
	change := payload.(message.TagChange)
	term.Infof("%d message(s) tagged with %s", len(change.MessageIDs), displayTags(change.Tags))
	return nil
}

func runCopy(cmd *cobra.Command, args []string) error {
	payload, err := changeMessages(args[0], args[2:], message.Copied, func(s *session, cache *message.Cache, folderID mailbox.FolderID, ids []mailbox.MessageID) error {
		target, err := s.folderID(mailbox.Mail, args[1])
		if err != nil {
			return err
		}
		return cache.Copy(folderID, ids, target)
	})
	if err != nil {
		return err
	}
	result := payload.(message.CopyResult)
	for _, entry := range result.Entries {
		term.Infof("message %d copied to folder %d as message %d", entry.SourceMessageID, result.TargetFolderID, entry.TargetMessageID)
	}
	return nil
}

func runMove(cmd *cobra.Command, args []string) error {
	payload, err := changeMessages(args[0], args[2:], message.Moved, func(s *session, cache *message.Cache, folderID mailbox.FolderID, ids []mailbox.MessageID) error {
		target, err := s.folderID(mailbox.Mail, args[1])
		if err != nil {
			return err
		}
		return cache.Move(folderID, ids, target)
	})
	if err != nil {
		return err
	}
	result := payload.(message.MoveResult)
	term.Infof("%d message(s) moved to folder %d", len(result.MessageIDs), result.TargetFolderID)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	payload, err := changeMessages(args[0], args[1:], message.Deleted, func(s *session, cache *message.Cache, folderID mailbox.FolderID, ids []mailbox.MessageID) error {
		return cache.Delete(folderID, ids)
	})
	if err != nil {
		return err
	}
	term.Infof("%d message(s) deleted", len(payload.(message.Deletion).MessageIDs))
	return nil
}
