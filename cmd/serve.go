package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/creativeprojects/mailstate/app"
	"github.com/creativeprojects/mailstate/server"
	"github.com/creativeprojects/mailstate/term"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a local account over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var serveListen string

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "listen address (defaults to the configuration)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if global.account == "" {
		global.account = config.Server.Account
	}
	name, account, err := selectAccount()
	if err != nil {
		return err
	}
	conn, err := app.Open(account, config.ReservedNames(), debugLogger(name+": "))
	if err != nil {
		return err
	}
	defer conn.Close()
	if conn.Dispatcher == nil {
		return errors.New("a remote account cannot be served")
	}

	listen := serveListen
	if listen == "" {
		listen = config.Server.Listen
	}
	if config.Server.Secret == "" {
		term.Warn("no secret in the server configuration: requests are not authenticated")
	}
	srv := server.New(conn.Dispatcher, server.Config{
		Secret:      config.Server.Secret,
		DebugLogger: debugLogger("server: "),
	})

	done := make(chan error, 1)
	go func() {
		done <- srv.ListenAndServe(listen)
	}()
	term.Infof("serving account %q on %s", name, listen)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case err := <-done:
		return err
	case <-signals:
		term.Info("shutting down")
		return srv.Shutdown()
	}
}
