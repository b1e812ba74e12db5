package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kakimori/gokosei/internal/store"
	"github.com/kakimori/gokosei/pkg/conductor"
)

var ignoreStoreDSN string

var ignoreCmd = &cobra.Command{
	Use:   "ignore",
	Short: "Manage persisted ignore records",
}

var ignoreAddCmd = &cobra.Command{
	Use:   "add <rule-id> <matched-text> [paragraph-text]",
	Short: "Suppress a finding; scope it to a paragraph by passing its text",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewSQLiteStoreWithDSN(ignoreStoreDSN)
		if err != nil {
			return err
		}
		defer st.Close()

		rec := &store.IgnoreRecord{RuleID: args[0], Matched: args[1]}
		if len(args) == 3 {
			rec.ParagraphHash = conductor.ParagraphHash(args[2])
		}
		if err := st.AddIgnore(rec); err != nil {
			return err
		}
		fmt.Printf("added ignore #%d\n", rec.ID)
		return nil
	},
}

var ignoreListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ignore records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewSQLiteStoreWithDSN(ignoreStoreDSN)
		if err != nil {
			return err
		}
		defer st.Close()

		recs, err := st.ListIgnores()
		if err != nil {
			return err
		}
		for _, rec := range recs {
			scope := "global"
			if rec.ParagraphHash != "" {
				scope = "paragraph " + rec.ParagraphHash
			}
			fmt.Printf("%4d  %s  %q  (%s)\n", rec.ID, rec.RuleID, rec.Matched, scope)
		}
		return nil
	},
}

var ignoreRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an ignore record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", args[0])
		}
		st, err := store.NewSQLiteStoreWithDSN(ignoreStoreDSN)
		if err != nil {
			return err
		}
		defer st.Close()
		return st.RemoveIgnore(id)
	},
}

func init() {
	ignoreCmd.PersistentFlags().StringVar(&ignoreStoreDSN, "store", "gokosei.db", "SQLite store path")
	ignoreCmd.AddCommand(ignoreAddCmd, ignoreListCmd, ignoreRemoveCmd)
	rootCmd.AddCommand(ignoreCmd)
}
