package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/subforge/subforge/internal/installer"
)

func newResetCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	var opts installer.ResetOptions

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget every installed dependency and remove managed links",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				confirmed, err := confirm(cmd, "Reset the version ledger and remove installed links?")
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}
			return ctx.withService(cmd, func(svc *installer.Service) error {
				if err := svc.Reset(cmd.Context(), opts); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Reset complete.")
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&opts.Models, "models", false, "Also delete downloaded Whisper models")
	cmd.Flags().BoolVar(&opts.Cache, "cache", false, "Also delete cached downloads and extracted tools")
	return cmd
}

func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return false, errors.New("no confirmation received; pass --yes to reset non-interactively")
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
