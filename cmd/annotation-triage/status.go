package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	triage "github.com/menta2k/annotation-triage"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show image and label counts for the source and every destination",
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
			rows, err := tr.Status()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(rows))
			return nil
		},
	}
}

func renderStatus(rows []triage.FolderStatus) string {
	headers := []string{"Folder", "Key", "Images", "Labels", "Size", "Path"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}

	var total triage.FolderStatus
	out := make([][]string, 0, len(rows)+1)
	for _, r := range rows {
		dir := r.Dir
		if dir == "" {
			dir = "(not set)"
		}
		out = append(out, []string{
			r.Name,
			r.Key,
			strconv.Itoa(r.Images),
			strconv.Itoa(r.Labels),
			humanize.Bytes(uint64(r.Bytes)),
			dir,
		})
		total.Images += r.Images
		total.Labels += r.Labels
		total.Bytes += r.Bytes
	}
	out = append(out, []string{
		"total", "",
		humanize.Comma(int64(total.Images)),
		humanize.Comma(int64(total.Labels)),
		humanize.Bytes(uint64(total.Bytes)),
		"",
	})
	return renderTable(headers, out, aligns)
}
