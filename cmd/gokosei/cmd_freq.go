package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kakimori/gokosei/pkg/tokenize"
)

var (
	freqLimit   int
	freqExclude []string
)

var freqCmd = &cobra.Command{
	Use:   "freq <file>",
	Short: "Word-frequency report grouped by dictionary form",
	Args:  cobra.ExactArgs(1),
	RunE:  runFreq,
}

func init() {
	freqCmd.Flags().IntVarP(&freqLimit, "limit", "n", 30, "number of rows, 0 for all")
	freqCmd.Flags().StringSliceVar(&freqExclude, "exclude", nil, "categories to exclude (default: functional words)")
	rootCmd.AddCommand(freqCmd)
}

func runFreq(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	svc := tokenize.NewService(func() (tokenize.Analyzer, error) {
		return tokenize.NewKagomeAnalyzer()
	})
	if err := svc.Init(cmd.Context()); err != nil {
		return err
	}

	counts, err := svc.Frequency(strings.Split(string(data), "\n"), tokenize.FrequencyOptions{
		ExcludeCategories: freqExclude,
		Limit:             freqLimit,
	})
	if err != nil {
		return err
	}

	for _, wc := range counts {
		fmt.Printf("%6d  %s (%s)\n", wc.Count, wc.Word, wc.POS)
	}
	return nil
}
