package main

import (
	"fmt"
	"os"

	"github.com/coastguard/svm-spam-filter/internal/adapters/filter"
	"github.com/coastguard/svm-spam-filter/internal/core"
	"github.com/coastguard/svm-spam-filter/internal/di"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

var flags = &di.CLIFlags{}

var rootCmd = &cobra.Command{
	Use:           "spam-detector",
	Short:         "Classify emails as Spam or Ham with a linear SVM",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.ConfigFile, "config", "", "Path to config file")
	pf.StringVar(&flags.VectorizerPath, "vectorizer", "", "Path to the exported vectorizer (overrides config)")
	pf.StringVar(&flags.ModelPath, "model", "", "Path to the exported model (overrides config)")
	pf.BoolVar(&flags.NoHistory, "no-history", false, "Do not record predictions")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(checkEmailCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what the commands need from the container
type app struct {
	dig.In

	Logger    *zap.Logger
	Service   *core.SpamFilterService
	History   core.HistoryRepository
	CliFilter *filter.CliFilter
}

// withApp builds the container and runs fn with the resolved dependencies
func withApp(fn func(a *app) error) error {
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	err = container.Invoke(func(a app) error {
		defer a.Logger.Sync()
		defer di.StopHistory(a.History, a.Logger)
		return fn(&a)
	})
	if err != nil {
		return dig.RootCause(err)
	}
	return nil
}
