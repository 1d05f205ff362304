package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creativeprojects/mailstate/app"
	"github.com/creativeprojects/mailstate/mailbox"
	"github.com/creativeprojects/mailstate/storage"
	"github.com/creativeprojects/mailstate/term"
	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed <folder>",
	Short: "Fill a mail folder of a local account with random messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

var seedFlags struct {
	count   int
	minSize int
	maxSize int
}

func init() {
	flags := seedCmd.Flags()
	flags.IntVarP(&seedFlags.count, "count", "n", 100, "number of messages")
	flags.IntVar(&seedFlags.minSize, "min-size", 1_000, "minimum message size in bytes")
	flags.IntVar(&seedFlags.maxSize, "max-size", 1_000_000, "maximum message size in bytes")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	if seedFlags.count < 1 {
		return errors.New("nothing to generate")
	}
	if seedFlags.minSize > seedFlags.maxSize {
		return fmt.Errorf("minimum size %s is bigger than maximum size %s",
			humanize.Bytes(uint64(seedFlags.minSize)), humanize.Bytes(uint64(seedFlags.maxSize)))
	}
	name, account, err := selectAccount()
	if err != nil {
		return err
	}
	backend, err := app.OpenBackend(account, debugLogger(name+": "))
	if err != nil {
		return err
	}
	defer backend.Close()

	dispatcher := storage.NewDispatcher(backend, storage.WithReserved(config.ReservedNames()))
	if err := dispatcher.Provision(); err != nil {
		return err
	}
	folderID, err := findFolder(backend, args[0])
	if err != nil {
		return err
	}

	term.Infof("generating %d messages in folder %d", seedFlags.count, folderID)
	pbar, _ := pterm.DefaultProgressbar.WithTotal(seedFlags.count).Start()
	progress := newProgresser(pbar)
	err = storage.GenerateMessages(backend, folderID, seedFlags.count, seedFlags.minSize, seedFlags.maxSize, progress)
	progress.Stop()
	return err
}

// findFolder searches a mail folder directly in the backend, by identity or by name
func findFolder(backend storage.Backend, name string) (mailbox.FolderID, error) {
	list, err := backend.ListFolders(mailbox.Mail)
	if err != nil {
		return mailbox.NoFolder, err
	}
	id, parseErr := mailbox.ParseFolderID(name)
	for _, info := range list {
		if (parseErr == nil && info.ID == id) || (parseErr != nil && strings.EqualFold(info.Name, name)) {
			return info.ID, nil
		}
	}
	return mailbox.NoFolder, fmt.Errorf("folder not found: %s", name)
}
