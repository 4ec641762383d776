package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/subforge/subforge/internal/shell"
)

func newShellEnvCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shellenv [bash|zsh|fish|powershell]",
		Short: "Print the snippet that puts installed tools on PATH",
		Example: "  eval \"$(subforge shellenv bash)\"\n" +
			"  subforge shellenv fish | source",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd.Context())
			if err != nil {
				return err
			}
			var target shell.ShellType
			if len(args) == 1 {
				target = shell.ParseShell(args[0])
				if !target.IsValid() {
					return &shell.UnsupportedShellError{Shell: args[0]}
				}
			} else {
				target = shell.DetectShell(cmd.Context()).Shell
			}
			snippet, err := shell.PathSnippet(target, cfg.Paths.Bin)
			if err != nil {
				return fmt.Errorf("%w; name the shell explicitly", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), snippet)
			return nil
		},
	}
}
