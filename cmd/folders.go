package cmd

import (
	"fmt"
	"strconv"

	"github.com/creativeprojects/mailstate/folder"
	"github.com/creativeprojects/mailstate/term"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var foldersCmd = &cobra.Command{
	Use:   "folders [context]",
	Short: "Display the folders of a context (mail by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFolders,
}

var foldersFormat string

func init() {
	foldersCmd.Flags().StringVarP(&foldersFormat, "format", "f", folder.Tree.String(), "display format: tree, flat or options")
	rootCmd.AddCommand(foldersCmd)
}

func runFolders(cmd *cobra.Command, args []string) error {
	name := "mail"
	if len(args) > 0 {
		name = args[0]
	}
	context, err := parseContext(name)
	if err != nil {
		return err
	}
	transform, ok := folder.ParseTransform(foldersFormat)
	if !ok {
		return fmt.Errorf("unknown format %q", foldersFormat)
	}

	session, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	_, listing, err := session.folders(context, transform)
	if err != nil {
		return err
	}
	switch transform {
	case folder.Flat:
		return displayFlat(listing)
	case folder.Options:
		for _, choice := range listing.Choices {
			fmt.Printf("%6s  %s\n", choice.Value, choice.Label)
		}
		return nil
	}
	return displayTree(listing)
}

func displayTree(listing folder.Listing) error {
	root := pterm.TreeNode{Text: string(listing.Context)}
	for _, permanent := range listing.Permanent {
		root.Children = append(root.Children, pterm.TreeNode{Text: pterm.Bold.Sprint(permanent.Name)})
	}
	root.Children = append(root.Children, treeNodes(listing.Custom)...)
	return pterm.DefaultTree.WithRoot(root).Render()
}

func treeNodes(folders []folder.Folder) []pterm.TreeNode {
	nodes := make([]pterm.TreeNode, len(folders))
	for i, f := range folders {
		nodes[i] = pterm.TreeNode{
			Text:     fmt.Sprintf("%s (%d)", f.Name, f.ID),
			Children: treeNodes(f.Subfolders),
		}
	}
	return nodes
}

func displayFlat(listing folder.Listing) error {
	rows := make([][]string, 0, len(listing.Permanent)+len(listing.Custom))
	for _, f := range append(listing.Permanent, listing.Custom...) {
		parent := ""
		if !f.ParentID.IsZero() {
			parent = f.ParentID.String()
		}
		rows = append(rows, []string{f.ID.String(), f.Name, parent, strconv.FormatBool(f.Permanent)})
	}
	if len(rows) == 0 {
		term.Warn("No folder found in this context")
		return nil
	}
	return term.Table([]string{"ID", "Name", "Parent", "Permanent"}, rows)
}
