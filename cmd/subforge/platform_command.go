package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/subforge/subforge/internal/platform"
)

func newPlatformCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "platform",
		Short:       "Show the detected operating system and architecture",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := platform.NewDetector().Detect(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]string{
				{"os", info.OS},
				{"arch", info.Arch},
			}
			if info.IsLinux() {
				rows = append(rows,
					[]string{"distro", info.Distro},
					[]string{"family", info.Family},
					[]string{"version", info.DistroVersion},
				)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Property", "Value"}, rows, nil))
			return nil
		},
	}
}
