package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/subforge/subforge/internal/catalog"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available Whisper model presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0)
			for _, m := range catalog.Models() {
				marker := ""
				if m.ID == cfg.Models.Default {
					marker = "default"
				}
				downloaded := "no"
				if _, err := os.Stat(filepath.Join(cfg.Paths.Models, m.FileName())); err == nil {
					downloaded = "yes"
				}
				rows = append(rows, []string{m.ID, m.Name, m.SizeLabel, downloaded, marker})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Size", "Downloaded", ""},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
