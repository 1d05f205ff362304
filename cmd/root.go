package cmd

import (
	"errors"
	"os"

	"github.com/creativeprojects/mailstate/cfg"
	"github.com/creativeprojects/mailstate/term"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "mailstate",
	Short:         "Mail client state: folders, messages and views",
	Long:          "\nMail client state: folders, messages and views, against a local or remote mail backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig, initLog)
	flag := rootCmd.PersistentFlags()
	flag.StringVarP(&global.configFile, "config", "c", "mailstate.yaml", "configuration file")
	flag.BoolVarP(&global.quiet, "quiet", "q", false, "only display warnings and errors")
	flag.BoolVarP(&global.verbose, "verbose", "v", false, "display debugging information")
	flag.StringVarP(&global.account, "account", "a", "", "account name (defaults to the only account of the configuration)")
	flag.DurationVar(&global.wait, "wait", defaultWait, "maximum time to wait for an answer of the server")
}

func initConfig() {
	var err error
	config, err = cfg.LoadFromFile(global.configFile)
	if errors.Is(err, os.ErrNotExist) && !rootCmd.PersistentFlags().Changed("config") {
		config = cfg.Default()
		return
	}
	if err != nil {
		term.Errorf("cannot open or read configuration file: %s", err)
		os.Exit(1)
	}
}

func initLog() {
	switch {
	case global.verbose:
		term.SetLevel(term.LevelDebug)
	case global.quiet:
		term.SetLevel(term.LevelWarn)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		term.Error(err)
		os.Exit(1)
	}
}
