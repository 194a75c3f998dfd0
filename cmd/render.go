// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sampler/internal/audio"
	applog "sampler/internal/log"
	"sampler/internal/session"
)

func newRenderCommand(opts *options) *cobra.Command {
	var (
		output   string
		bitDepth int
		sets     []string
	)
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a recording offline to a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			assignments, err := parseAssignments(sets)
			if err != nil {
				return err
			}

			wave, module, closer, err := prepare(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}
			defer closer.Close()

			sess, err := session.New(module, cfg)
			if err != nil {
				return err
			}
			defer sess.Close()
			if err := sess.Load(wave); err != nil {
				return err
			}
			for _, a := range assignments {
				if err := sess.SetParam(a.name, a.value); err != nil {
					return err
				}
			}

			res, err := sess.RenderNow()
			if err != nil {
				return err
			}
			if err := audio.ExportWAV(output, res.Samples, int(cfg.Audio.SampleRate), bitDepth); err != nil {
				return err
			}
			applog.Infof("CLI: Rendered %d samples in %s", len(res.Samples), res.Elapsed)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "render.wav", "Output WAV file")
	cmd.Flags().IntVar(&bitDepth, "bits", 32, "Output bit depth: 16, 24 or 32 (float)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Parameter assignment name=value, repeatable (e.g. --set grainSize=2400)")
	return cmd
}

type assignment struct {
	name  string
	value float64
}

// parseAssignments parses name=value pairs.
func parseAssignments(sets []string) ([]assignment, error) {
	out := make([]assignment, 0, len(sets))
	for _, s := range sets {
		name, raw, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q, want name=value", s)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", s, err)
		}
		out = append(out, assignment{name: strings.TrimSpace(name), value: v})
	}
	return out, nil
}
