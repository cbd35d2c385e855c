package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"modpackBack/internal/acquisition"
	"modpackBack/internal/launcher/api"
)

func checkCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check [modpack-id]",
		Short: "Show whether the current account can access a modpack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checker := acquisition.NewChecker(api.NewClient(nil, opts.apiURL))
			check, err := checker.Check(cmd.Context(), args[0], identity(opts))
			if err != nil {
				return err
			}
			printCheck(cmd, check)
			return nil
		},
	}
}

func printCheck(cmd *cobra.Command, check acquisition.Check) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Access:    %t\n", check.Decision.CanAccess)
	if check.Decision.Reason != "" {
		fmt.Fprintf(out, "Reason:    %s\n", check.Decision.Reason)
	}
	if s := check.Subject; s != nil {
		fmt.Fprintf(out, "Modpack:   %s (%s)\n", s.Name, s.ID)
		fmt.Fprintf(out, "Method:    %s\n", s.Method)
		if s.Method == acquisition.MethodPaid {
			fmt.Fprintf(out, "Price:     %s %s\n", s.Price, s.Currency)
		}
	}
	if len(check.Decision.RequiredChannels) > 0 {
		fmt.Fprintf(out, "Channels:  %s\n", strings.Join(check.Decision.RequiredChannels, ", "))
	}
}

func identity(opts *options) *acquisition.Identity {
	if strings.TrimSpace(opts.token) == "" {
		return nil
	}
	return &acquisition.Identity{Token: opts.token, TwitchLinked: opts.twitchLinked}
}
