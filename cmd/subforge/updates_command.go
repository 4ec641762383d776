package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/subforge/subforge/internal/installer"
)

func newUpdatesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "updates",
		Short: "Check installed dependencies for newer upstream releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *installer.Service) error {
				updates, err := svc.CheckUpdates(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(updates) == 0 {
					fmt.Fprintln(out, "Nothing installed that can be checked for updates.")
					return nil
				}
				fmt.Fprintln(out, renderUpdates(updates))
				return nil
			})
		},
	}
}

func renderUpdates(updates []installer.Update) string {
	rows := make([][]string, 0, len(updates))
	for _, u := range updates {
		latest := u.Latest
		state := "up to date"
		switch {
		case u.Err != nil:
			latest = "?"
			state = "check failed: " + u.Err.Error()
		case u.Available:
			state = "update available"
		case u.Current == "unknown":
			state = "installed version unknown"
		}
		rows = append(rows, []string{string(u.Dependency), u.Current, latest, state})
	}
	return renderTable([]string{"Dependency", "Installed", "Latest", "State"}, rows, nil)
}
