package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/coastguard/svm-spam-filter/internal/core"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historySince time.Duration
	exportFormat string
	exportOutput string
	clearConfirm bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and manage recorded predictions",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded predictions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			var records []*core.HistoryRecord
			var err error
			if historySince > 0 {
				now := time.Now().UTC()
				records, err = a.Service.HistoryRange(cmd.Context(), now.Add(-historySince), now)
				if err == nil && historyLimit > 0 && len(records) > historyLimit {
					records = records[len(records)-historyLimit:]
				}
			} else {
				records, err = a.Service.History(cmd.Context(), historyLimit)
			}
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{
					r.Timestamp.Local().Format(time.DateTime),
					r.Prediction,
					fmt.Sprintf("%.2f%%", r.ConfidencePercentage),
					preview(r.EmailText, 50),
				})
			}
			out := cmd.OutOrStdout()
			writeTable(out, []string{"Time", "Prediction", "Confidence", "Text"}, rows)
			fmt.Fprintf(out, "\n%d prediction(s)\n", len(records))
			return nil
		})
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			stats, err := a.Service.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			meta, err := a.Service.Metadata(cmd.Context())
			if err != nil {
				return err
			}

			writeTable(cmd.OutOrStdout(), []string{"Statistic", "Value"}, [][]string{
				{"Total predictions", fmt.Sprint(stats.TotalPredictions)},
				{"Spam", fmt.Sprint(stats.SpamCount)},
				{"Ham", fmt.Sprint(stats.HamCount)},
				{"Spam percentage", fmt.Sprintf("%.2f%%", stats.SpamPercentage)},
				{"Ham percentage", fmt.Sprintf("%.2f%%", stats.HamPercentage)},
				{"Average confidence", fmt.Sprintf("%.2f%%", stats.AverageConfidence)},
				{"Max confidence", fmt.Sprintf("%.2f%%", stats.MaxConfidence)},
				{"Min confidence", fmt.Sprintf("%.2f%%", stats.MinConfidence)},
				{"History created", meta.CreatedAt.Local().Format(time.DateTime)},
			})
			return nil
		})
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded predictions as CSV or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportFormat != "csv" && exportFormat != "json" {
			return fmt.Errorf("unsupported export format: %s", exportFormat)
		}

		return withApp(func(a *app) error {
			var w io.Writer = cmd.OutOrStdout()
			if exportOutput != "" {
				file, err := os.Create(exportOutput)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer file.Close()
				w = file
			}

			if exportFormat == "csv" {
				return a.Service.ExportCSV(cmd.Context(), w)
			}
			return a.Service.ExportJSON(cmd.Context(), w)
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every recorded prediction",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearConfirm && !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "Delete all predictions? This cannot be undone [y/N]: ") {
			fmt.Fprintln(cmd.ErrOrStderr(), "Aborted")
			return nil
		}

		return withApp(func(a *app) error {
			if err := a.Service.ClearHistory(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All predictions have been cleared")
			return nil
		})
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Show only the last N predictions (0 for all)")
	historyListCmd.Flags().DurationVar(&historySince, "since", 0, "Only show predictions from this far back, e.g. 24h")

	historyExportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Export format (csv, json)")
	historyExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout")

	historyClearCmd.Flags().BoolVarP(&clearConfirm, "yes", "y", false, "Do not ask for confirmation")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyClearCmd)
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
