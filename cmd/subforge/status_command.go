package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/subforge/subforge/internal/installer"
	"github.com/subforge/subforge/internal/shell"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show installed dependency versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc *installer.Service) error {
				report, err := svc.Status(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderStatus(report))
				if bin := svc.Paths().Bin; !shell.BinOnPath(bin) {
					fmt.Fprintf(out, "\n%s is not on PATH; see `subforge shellenv`.\n", bin)
				}
				return nil
			})
		},
	}
}

func renderStatus(report installer.Report) string {
	rows := make([][]string, 0, len(report.Dependencies))
	for _, d := range report.Dependencies {
		version := d.Entry.Version
		if version == "" {
			version = "-"
		}
		present := "-"
		size := ""
		if d.Entry.ResolvedPath != "" {
			present = yesNo(d.Present)
			if d.Present {
				size = humanize.IBytes(uint64(d.Size))
			}
		}
		rows = append(rows, []string{string(d.Dependency), version, present, size, d.Entry.ResolvedPath})
	}
	out := renderTable(
		[]string{"Dependency", "Version", "Present", "Size", "Path"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)

	for _, j := range report.Interrupted {
		out += fmt.Sprintf("\ninterrupted install of %s started %s (%s)",
			j.Dependency, humanize.Time(j.Timestamp), j.ID)
	}
	if len(report.Interrupted) > 0 {
		out += "\nRe-run the install to resume, or `subforge reset` to discard."
	}
	return out
}
