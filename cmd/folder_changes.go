package cmd

import (
	"github.com/creativeprojects/mailstate/event"
	"github.com/creativeprojects/mailstate/folder"
	"github.com/creativeprojects/mailstate/mailbox"
	"github.com/creativeprojects/mailstate/term"
	"github.com/spf13/cobra"
)

var (
	mkdirCmd = &cobra.Command{
		Use:   "mkdir <name> [parent]",
		Short: "Create a folder, at the root level or under a parent folder",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runMkdir,
	}
	rmdirCmd = &cobra.Command{
		Use:   "rmdir <folder>",
		Short: "Delete a folder with its subfolders and messages",
		Args:  cobra.ExactArgs(1),
		RunE:  runRmdir,
	}
	renameCmd = &cobra.Command{
		Use:   "rename <folder> <name>",
		Short: "Rename a folder",
		Args:  cobra.ExactArgs(2),
		RunE:  runRename,
	}
	mvdirCmd = &cobra.Command{
		Use:   "mvdir <folder> <target>",
		Short: "Move a folder under another folder",
		Args:  cobra.ExactArgs(2),
		RunE:  runMvdir,
	}
)

var folderContext string

func init() {
	for _, command := range []*cobra.Command{mkdirCmd, rmdirCmd, renameCmd, mvdirCmd} {
		command.Flags().StringVarP(&folderContext, "context", "x", string(mailbox.Mail), "folder context")
		rootCmd.AddCommand(command)
	}
}

// changeFolder runs fn on the loaded store of the context and waits for the outcome of operation
func changeFolder(operation string, fn func(s *session, context mailbox.Context, store *folder.Store) (func() error, error)) (any, error) {
	context, err := parseContext(folderContext)
	if err != nil {
		return nil, err
	}
	session, err := openSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	store, _, err := session.folders(context, folder.Tree)
	if err != nil {
		return nil, err
	}
	start, err := fn(session, context, store)
	if err != nil {
		return nil, err
	}
	return event.Await(store.Hub(), operation, global.wait, start)
}

func runMkdir(cmd *cobra.Command, args []string) error {
	payload, err := changeFolder(folder.Added, func(s *session, context mailbox.Context, store *folder.Store) (func() error, error) {
		parentID := mailbox.NoFolder
		if len(args) > 1 {
			var err error
			parentID, err = s.folderID(context, args[1])
			if err != nil {
				return nil, err
			}
		}
		return func() error {
			return store.Add(args[0], parentID)
		}, nil
	})
	if err != nil {
		return err
	}
	created := payload.(folder.Folder)
	term.Infof("folder %q created with identity %d", created.Name, created.ID)
	return nil
}

func runRmdir(cmd *cobra.Command, args []string) error {
	payload, err := changeFolder(folder.Removed, func(s *session, context mailbox.Context, store *folder.Store) (func() error, error) {
		id, err := s.folderID(context, args[0])
		if err != nil {
			return nil, err
		}
		return func() error {
			store.Remove(id)
			return nil
		}, nil
	})
	if err != nil {
		return err
	}
	term.Infof("folder %d deleted", payload.(folder.RemovedFolder).FolderID)
	return nil
}

func runRename(cmd *cobra.Command, args []string) error {
	payload, err := changeFolder(folder.Renamed, func(s *session, context mailbox.Context, store *folder.Store) (func() error, error) {
		id, err := s.folderID(context, args[0])
		if err != nil {
			return nil, err
		}
		return func() error {
			return store.Rename(args[1], id)
		}, nil
	})
	if err != nil {
		return err
	}
	renamed := payload.(folder.Folder)
	term.Infof("folder %d renamed to %q", renamed.ID, renamed.Name)
	return nil
}

func runMvdir(cmd *cobra.Command, args []string) error {
	payload, err := changeFolder(folder.Moved, func(s *session, context mailbox.Context, store *folder.Store) (func() error, error) {
		source, err := s.folderID(context, args[0])
		if err != nil {
			return nil, err
		}
		target, err := s.folderID(context, args[1])
		if err != nil {
			return nil, err
		}
		return func() error {
			store.Move(source, target)
			return nil
		}, nil
	})
	if err != nil {
		return err
	}
	moved := payload.(folder.MovedFolder)
	term.Infof("folder %d moved under folder %d", moved.SourceFolderID, moved.TargetFolderID)
	return nil
}
