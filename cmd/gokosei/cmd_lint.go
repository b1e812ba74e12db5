package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	hackpados "github.com/hack-pad/hackpadfs/os"
	"github.com/spf13/cobra"

	"github.com/kakimori/gokosei/internal/store"
	"github.com/kakimori/gokosei/pkg/conductor"
	"github.com/kakimori/gokosei/pkg/rule"
	"github.com/kakimori/gokosei/pkg/tokenize"
	"github.com/kakimori/gokosei/pkg/validate"
)

var (
	lintConfig   string
	lintDict     string
	lintStoreDSN string
	lintModelURL string
	lintModel    string
	lintJSON     bool
)

var lintCmd = &cobra.Command{
	Use:   "lint <file>",
	Short: "Run the rule catalog over a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runLint,
}

func init() {
	lintCmd.Flags().StringVarP(&lintConfig, "config", "c", "", "YAML rule configuration file")
	lintCmd.Flags().StringVarP(&lintDict, "userdict", "u", "", "user dictionary CSV (surface,pos,reading)")
	lintCmd.Flags().StringVar(&lintStoreDSN, "store", "", "SQLite store for ignore records and user dictionary")
	lintCmd.Flags().StringVar(&lintModelURL, "model-url", "", "OpenAI-compatible endpoint for contextual validation")
	lintCmd.Flags().StringVar(&lintModel, "model", "", "model identifier at the endpoint")
	lintCmd.Flags().BoolVar(&lintJSON, "json", false, "emit findings as JSON")
	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	svc := tokenize.NewService(func() (tokenize.Analyzer, error) {
		return tokenize.NewKagomeAnalyzer()
	})

	var opts []conductor.Option
	if lintConfig != "" {
		raw, err := os.ReadFile(lintConfig)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		overrides, err := rule.LoadOverrides(raw)
		if err != nil {
			return err
		}
		opts = append(opts, conductor.WithOverrides(overrides))
	}

	var dictEntries []tokenize.UserDictEntry
	if lintDict != "" {
		d, err := loadDictFile(lintDict)
		if err != nil {
			return err
		}
		dictEntries = d
	}

	if lintStoreDSN != "" {
		st, err := store.NewSQLiteStoreWithDSN(lintStoreDSN)
		if err != nil {
			return err
		}
		defer st.Close()

		recs, err := st.ListIgnores()
		if err != nil {
			return err
		}
		ignores := make([]conductor.IgnoreRecord, len(recs))
		for i, rec := range recs {
			ignores[i] = conductor.IgnoreRecord{
				RuleID:        rec.RuleID,
				Matched:       rec.Matched,
				ParagraphHash: rec.ParagraphHash,
			}
		}
		opts = append(opts, conductor.WithIgnores(ignores))

		stored, err := st.ListUserDict()
		if err != nil {
			return err
		}
		for _, e := range stored {
			dictEntries = append(dictEntries, tokenize.UserDictEntry{
				Surface: e.Surface, POS: e.POS, Reading: e.Reading,
			})
		}
	}
	if len(dictEntries) > 0 {
		svc.SetUserDict(tokenize.NewUserDict(dictEntries))
	}

	if lintModelURL != "" {
		client := validate.NewOpenAIClient(lintModelURL, "gokosei", lintModel)
		opts = append(opts, conductor.WithModel(client))
	}

	c := conductor.New(svc, nil, opts...)
	findings, err := c.RunOnce(cmd.Context(), conductor.SplitParagraphs(string(data)))
	if err != nil {
		return err
	}

	if lintJSON {
		return json.NewEncoder(os.Stdout).Encode(findings)
	}
	for _, f := range findings {
		line := fmt.Sprintf("%s:%d-%d [%s] %s: %s",
			args[0], f.Range.Start, f.Range.End, f.Severity, f.RuleID, f.Message)
		if f.Suggestion != "" {
			line += fmt.Sprintf(" → %q", f.Suggestion)
		}
		fmt.Println(line)
	}
	fmt.Printf("%d finding(s)\n", len(findings))
	return nil
}

// loadDictFile reads a user dictionary through the rooted OS filesystem.
func loadDictFile(path string) ([]tokenize.UserDictEntry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fs := hackpados.NewFS()
	fsPath, err := fs.FromOSPath(abs)
	if err != nil {
		return nil, err
	}
	d, err := tokenize.LoadUserDict(fs, fsPath)
	if err != nil {
		return nil, err
	}
	return d.Entries(), nil
}
