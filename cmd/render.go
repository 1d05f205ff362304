package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/creativeprojects/mailstate/mailbox"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Render a template of the templates directory",
	Long:  "\nRender a template with the messages of a mail folder, or with data read from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

var renderFlags struct {
	folder   string
	dataFile string
}

func init() {
	flags := renderCmd.Flags()
	flags.StringVar(&renderFlags.folder, "folder", "", "render the messages of this mail folder")
	flags.StringVar(&renderFlags.dataFile, "data", "", "render the content of this YAML file")
	renderCmd.MarkFlagsMutuallyExclusive("folder", "data")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	session, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	var data any
	switch {
	case renderFlags.folder != "":
		folderID, err := session.folderID(mailbox.Mail, renderFlags.folder)
		if err != nil {
			return err
		}
		data, err = session.messages(folderID)
		if err != nil {
			return err
		}
	case renderFlags.dataFile != "":
		data, err = loadData(renderFlags.dataFile)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), global.wait)
	defer cancel()
	output, err := session.client.Views().Fill(ctx, args[0], data)
	if err != nil {
		return err
	}
	fmt.Println(output)
	return nil
}

func loadData(fileName string) (any, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var data any
	if err := yaml.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("cannot read data file %q: %w", fileName, err)
	}
	return data, nil
}
