package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/coastguard/svm-spam-filter/internal/core"
	"github.com/spf13/cobra"
)

var (
	classifyFile string
	classifyText string
	classifyJSON bool

	checkEmailFile string

	batchFile string
	batchJSON bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a single text",
	Long:  "Classify a single text given with --text, read from --file, or read from stdin.",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(classifyFile, classifyText)
		if err != nil {
			return err
		}

		return withApp(func(a *app) error {
			result, err := a.Service.Classify(cmd.Context(), text)
			if err != nil {
				return err
			}
			if classifyJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		})
	},
}

var checkEmailCmd = &cobra.Command{
	Use:   "check-email",
	Short: "Analyze an RFC 5322 message read from --file or stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if checkEmailFile != "" {
			file, err := os.Open(checkEmailFile)
			if err != nil {
				return fmt.Errorf("failed to open input file: %w", err)
			}
			defer file.Close()
			r = file
		}

		return withApp(func(a *app) error {
			email, err := a.CliFilter.ReadEmail(r)
			if err != nil {
				return err
			}
			_, err = a.CliFilter.ProcessEmail(cmd.Context(), email)
			return err
		})
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Classify one text per line",
	RunE: func(cmd *cobra.Command, args []string) error {
		texts, err := readLines(batchFile)
		if err != nil {
			return err
		}

		return withApp(func(a *app) error {
			batch, err := a.Service.ClassifyBatch(cmd.Context(), texts)
			if err != nil {
				return err
			}
			if batchJSON {
				return writeJSON(cmd.OutOrStdout(), batchView(batch))
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(batch.Items))
			for _, item := range batch.Items {
				if item.Err != nil {
					rows = append(rows, []string{fmt.Sprint(item.Index), "error", "", "", item.Err.Error()})
					continue
				}
				rows = append(rows, []string{
					fmt.Sprint(item.Index),
					item.Result.Prediction,
					fmt.Sprintf("%.2f%%", item.Result.ConfidencePercentage),
					fmt.Sprintf("%.4f", item.Result.RawScore),
					preview(texts[item.Index], 40),
				})
			}
			writeTable(out, []string{"#", "Prediction", "Confidence", "Score", "Text"}, rows)
			fmt.Fprintf(out, "\nTotal: %d  Spam: %d  Ham: %d\n", batch.Total, batch.SpamCount, batch.HamCount)
			return nil
		})
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyFile, "file", "f", "", "Read the text from a file")
	classifyCmd.Flags().StringVarP(&classifyText, "text", "t", "", "Text to classify")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Print the result as JSON")
	classifyCmd.MarkFlagsMutuallyExclusive("file", "text")

	checkEmailCmd.Flags().StringVarP(&checkEmailFile, "file", "f", "", "Input email file (stdin if not specified)")

	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "File with one text per line")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "Print the results as JSON")
	_ = batchCmd.MarkFlagRequired("file")
}

// readInput returns text, the contents of file, or stdin
func readInput(file, text string) (string, error) {
	if text != "" {
		return text, nil
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

// readLines returns the non-blank lines of a file
func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return lines, nil
}

func printResult(w io.Writer, r *core.PredictionResult) {
	fmt.Fprintf(w, "Prediction: %s\n", r.Prediction)
	fmt.Fprintf(w, "Label: %d\n", r.Label)
	fmt.Fprintf(w, "Confidence: %.2f%%\n", r.ConfidencePercentage)
	fmt.Fprintf(w, "Raw score: %.4f\n", r.RawScore)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type batchItemView struct {
	Index int `json:"index"`
	*core.PredictionResult
	Error string `json:"error,omitempty"`
}

func batchView(b *core.BatchResult) map[string]any {
	items := make([]batchItemView, 0, len(b.Items))
	for _, item := range b.Items {
		v := batchItemView{Index: item.Index, PredictionResult: item.Result}
		if item.Err != nil {
			v.Error = item.Err.Error()
		}
		items = append(items, v)
	}
	return map[string]any{
		"total":      b.Total,
		"spam_count": b.SpamCount,
		"ham_count":  b.HamCount,
		"results":    items,
	}
}
