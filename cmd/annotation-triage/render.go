package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	triage "github.com/menta2k/annotation-triage"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "render <image>",
		Short: "Draw the annotation overlay of one image into a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, closeLog, err := ctx.newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			tr, err := triage.New(cfg, logger)
			if err != nil {
				return err
			}

			in := args[0]
			out := strings.TrimSpace(output)
			if out == "" {
				out = defaultRenderPath(in)
			}
			res, err := tr.RenderFile(in, out)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, lineErr := range res.Warnings {
				fmt.Fprintf(w, "skipped %v\n", lineErr)
			}
			fmt.Fprintf(w, "%s: %dx%d, %d annotations -> %s\n",
				filepath.Base(in), res.Info.Width, res.Info.Height, res.Records, res.Output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default <image>_overlay.png next to the image)")
	return cmd
}

func defaultRenderPath(image string) string {
	stem := strings.TrimSuffix(image, filepath.Ext(image))
	return stem + "_overlay.png"
}
