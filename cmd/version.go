package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the version of this build",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mailstate %s compiled with %s on %s/%s\n", appVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		if appCommit != "" {
			fmt.Printf("commit %s built on %s by %s\n", appCommit, appDate, appBuiltBy)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
