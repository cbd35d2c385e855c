package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"modpackBack/internal/config"
)

var Version = "dev"

type options struct {
	apiURL       string
	wsURL        string
	token        string
	twitchLinked bool
	logLevel     string
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "launcher",
		Short:         "Check and acquire access to gated modpacks",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(config.Path())
			if err != nil {
				return err
			}
			if opts.apiURL == "" {
				opts.apiURL = cfg.Launcher.APIURL
			}
			if opts.wsURL == "" {
				opts.wsURL = cfg.Launcher.WSURL
			}
			if opts.token == "" {
				opts.token = cfg.Launcher.Token
			}
			if opts.logLevel == "" {
				opts.logLevel = cfg.Log.Level
			}
			return nil
		},
	}
	rootCmd.SetOut(out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api", "", "Explore API base URL")
	flags.StringVar(&opts.wsURL, "ws", "", "Payments websocket URL")
	flags.StringVar(&opts.token, "token", "", "Access token")
	flags.BoolVar(&opts.twitchLinked, "twitch-linked", false, "The account has a linked Twitch login")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level for realtime diagnostics")

	rootCmd.AddCommand(checkCmd(opts))
	rootCmd.AddCommand(acquireCmd(opts))
	return rootCmd
}
