package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/callinsight/call-pipeline/insights"
	"github.com/callinsight/call-pipeline/orchestrator"
	"github.com/callinsight/call-pipeline/record"
	"github.com/callinsight/call-pipeline/store"
)

type opener func(*cobra.Command) (*app, error)

func newProcessCmd(open opener) *cobra.Command {
	var force, all bool
	cmd := &cobra.Command{
		Use:   "process [file-key...]",
		Short: "Run the analysis pipeline for recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			keys := args
			if all {
				objs, err := a.objects.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, o := range objs {
					keys = append(keys, o.Key)
				}
			}
			if len(keys) == 0 {
				return errors.New("no file keys given (pass keys or --all)")
			}

			p, err := a.pipeline()
			if err != nil {
				return err
			}
			var failed int
			for _, key := range keys {
				rec, err := p.Run(cmd.Context(), key, orchestrator.RunOptions{Force: force})
				if err != nil {
					failed++
					if cmd.Context().Err() != nil {
						return err
					}
					continue
				}
				a.log.WithFields(logrus.Fields{
					"file_key":  key,
					"sentiment": rec.Sentiment,
					"duration":  insights.FormatDuration(rec.Duration),
				}).Info("processed")
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d recordings failed", failed, len(keys))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "reprocess even when an analysis exists")
	cmd.Flags().BoolVar(&all, "all", false, "process every uploaded recording")
	return cmd
}

func newShowCmd(open opener) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <file-key>",
		Short: "Print a stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.store.Get(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no analysis for %q; run process first", args[0])
			}
			if err != nil {
				return err
			}
			return writeRecord(cmd.OutOrStdout(), rec, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func writeRecord(w io.Writer, rec *record.AnalysisRecord, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case "yaml":
		b, err := record.Marshal(rec)
		if err != nil {
			return err
		}
		var doc map[string]any
		if err := json.Unmarshal(b, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(doc)
	case "text":
		return writeReport(w, rec)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeReport(w io.Writer, rec *record.AnalysisRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "File:\t%s\n", rec.Filename)
	fmt.Fprintf(tw, "Processed:\t%s\n", rec.ProcessedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(tw, "Duration:\t%s\n", insights.FormatDuration(rec.Duration))
	fmt.Fprintf(tw, "Sentiment:\t%s\n", rec.Sentiment)
	for _, spk := range record.RequiredSpeakers {
		s := rec.SentimentAnalysis.PerSpeaker[spk]
		fmt.Fprintf(tw, "  %s:\t%s (%.1f%% of talk time) %s\n", spk, s.DominantSentiment, rec.SpeakerRatios[spk], s.ToneSummary)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nSummary:\n%s\n", rec.Summary)
	if lines := insights.ActionLines(rec.Insights); len(lines) > 0 {
		fmt.Fprintf(w, "\n%s:\n", insights.ActionsHeader)
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	}
	_, err := fmt.Fprintf(w, "\nTranscript:\n%s\n", rec.Transcript)
	return err
}

func newListCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored analyses, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sums, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE KEY\tSENTIMENT\tDURATION\tPROCESSED")
			for _, s := range sums {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.FileKey, s.Sentiment,
					insights.FormatDuration(s.Duration), s.ProcessedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func newUploadCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path...>",
		Short: "Upload recordings to the object store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, p := range args {
				f, err := os.Open(p)
				if err != nil {
					return err
				}
				key, err := a.objects.Upload(cmd.Context(), f, filepath.Base(p))
				f.Close()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		},
	}
}

func newFilesCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List uploaded recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			objs, err := a.objects.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSIZE\tMODIFIED")
			for _, o := range objs {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Key, o.Size, o.LastModified.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func newSearchCmd(open opener) *cobra.Command {
	var (
		top     int
		reindex bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find analysed calls similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.index == nil {
				return errors.New("search.backend is not configured")
			}
			if reindex || a.cfg.Search.Backend == "memory" {
				if err := a.reindex(cmd.Context()); err != nil {
					return err
				}
			}
			hits, err := a.index.Search(cmd.Context(), args[0], top)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SCORE\tFILE KEY\tFILENAME")
			for _, h := range hits {
				fmt.Fprintf(tw, "%.3f\t%s\t%s\n", h.Score, h.FileKey, h.Filename)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&top, "top", "k", 5, "number of results")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "re-index every stored analysis first")
	return cmd
}
