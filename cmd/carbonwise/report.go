package main

import (
	"fmt"
	"time"

	"codeberg.org/mutker/carbonwise/internal/aggregate"
	"codeberg.org/mutker/carbonwise/internal/config"
	"codeberg.org/mutker/carbonwise/internal/publish"
	"codeberg.org/mutker/carbonwise/internal/report"
	"codeberg.org/mutker/carbonwise/internal/runlog"
	"github.com/spf13/cobra"
)

type reportFlags struct {
	out          string
	pdf          string
	baseline     string
	optimized    string
	promTextfile string
	publish      bool
}

func newReportCmd(a *app) *cobra.Command {
	var rf reportFlags

	cmd := &cobra.Command{
		Use:   "report [LOG]",
		Short: "Write a baseline versus optimized summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.LogPath
			if len(args) == 1 {
				path = args[0]
			}

			artifacts, err := writeReport(cmd, path, rf, time.Now())
			if err != nil {
				return withExitCode(exitError, err)
			}

			if rf.publish {
				if err := publishArtifacts(cmd, a.cfg.Publish, artifacts); err != nil {
					return withExitCode(exitError, err)
				}
			}

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&rf.out, "out", "report.md", "markdown output path")
	f.StringVar(&rf.pdf, "pdf", "report.pdf", "PDF output path")
	f.StringVar(&rf.baseline, "baseline", "baseline", "baseline run name")
	f.StringVar(&rf.optimized, "optimized", "optimized", "optimized run name")
	f.StringVar(&rf.promTextfile, "prom-textfile", "", "also write a Prometheus textfile to this path")
	f.BoolVar(&rf.publish, "publish", false, "upload the artifacts to the configured bucket")

	return cmd
}

// writeReport writes the markdown summary, then the document and the
// optional textfile, and returns the paths written.
func writeReport(cmd *cobra.Command, logPath string, rf reportFlags, at time.Time) ([]string, error) {
	out := cmd.OutOrStdout()

	records, err := runlog.Load(logPath)
	if err != nil {
		return nil, err
	}

	groups := aggregate.Aggregate(records)
	summary := report.Build(groups, rf.baseline, rf.optimized, at)
	text := report.Markdown(summary)

	if err := report.WriteText(rf.out, text); err != nil {
		return nil, err
	}
	fmt.Fprintln(out, "Wrote", rf.out)
	artifacts := []string{rf.out}

	doc, err := report.RenderDocument(text, rf.pdf)
	if err != nil {
		return artifacts, err
	}
	if doc.Degraded {
		fmt.Fprintf(out, "PDF rendering unavailable, wrote %s instead\n", doc.Path)
	} else {
		fmt.Fprintln(out, "Wrote", doc.Path)
	}
	artifacts = append(artifacts, doc.Path)

	if rf.promTextfile != "" {
		if err := report.WriteTextfile(rf.promTextfile, groups, &summary); err != nil {
			return artifacts, err
		}
		fmt.Fprintln(out, "Wrote", rf.promTextfile)
		artifacts = append(artifacts, rf.promTextfile)
	}

	return artifacts, nil
}

func publishArtifacts(cmd *cobra.Command, cfg config.PublishConfig, files []string) error {
	p, err := publish.New(publish.Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Region:    cfg.Region,
		Bucket:    cfg.Bucket,
		Prefix:    cfg.Prefix,
		UseSSL:    cfg.UseSSL,
	})
	if err != nil {
		return err
	}

	keys, err := p.Publish(cmd.Context(), files...)
	if err != nil {
		return err
	}

	for _, key := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "Published s3://%s/%s\n", cfg.Bucket, key)
	}

	return nil
}
