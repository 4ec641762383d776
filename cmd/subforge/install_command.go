package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/installer"
)

func newInstallCommand(ctx *commandContext) *cobra.Command {
	var model string
	var all bool

	cmd := &cobra.Command{
		Use:   "install [dependency...]",
		Short: "Install one or more dependencies",
		Long: "Install dependencies by trying package managers, release downloads and\n" +
			"other strategies in platform order until one succeeds.\n\n" +
			"Dependencies: yt-dlp, ffmpeg, whisper.cpp, whisper-model, libretranslate",
		Example: "  subforge install yt-dlp ffmpeg\n  subforge install whisper-model --model small\n  subforge install --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := installTargets(args, all)
			if err != nil {
				return err
			}
			if model != "" {
				if _, err := catalog.LookupModel(model); err != nil {
					return err
				}
			}

			return ctx.withService(cmd, func(svc *installer.Service) error {
				out := cmd.OutOrStdout()
				renderer := newProgressRenderer(out, isTerminal(out))
				opts := installer.InstallOptions{Model: model}
				if len(ids) == 1 {
					_, err := svc.InstallWait(cmd.Context(), ids[0], opts, renderer.handle)
					renderer.close()
					return err
				}
				err := svc.InstallAll(cmd.Context(), ids, opts, renderer.handle)
				renderer.close()
				return err
			})
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Whisper model preset for whisper-model (see `subforge models`)")
	cmd.Flags().BoolVar(&all, "all", false, "Install every dependency")
	return cmd
}

func installTargets(args []string, all bool) ([]catalog.ID, error) {
	if all {
		if len(args) > 0 {
			return nil, errors.New("--all cannot be combined with dependency names")
		}
		return catalog.Installable(), nil
	}
	if len(args) == 0 {
		return nil, errors.New("name at least one dependency, or pass --all")
	}

	seen := make(map[catalog.ID]bool, len(args))
	ids := make([]catalog.ID, 0, len(args))
	for _, arg := range args {
		id, err := catalog.ParseID(arg)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no dependencies selected")
	}
	return ids, nil
}
