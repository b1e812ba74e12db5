package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kakimori/gokosei/internal/store"
)

var dictStoreDSN string

var dictCmd = &cobra.Command{
	Use:   "dict",
	Short: "Manage the persisted user dictionary",
}

var dictAddCmd = &cobra.Command{
	Use:   "add <surface> [pos] [reading]",
	Short: "Add or update a user-dictionary word",
	Args:  cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewSQLiteStoreWithDSN(dictStoreDSN)
		if err != nil {
			return err
		}
		defer st.Close()

		e := &store.UserDictEntry{Surface: args[0], POS: "名詞"}
		if len(args) > 1 {
			e.POS = args[1]
		}
		if len(args) > 2 {
			e.Reading = args[2]
		}
		return st.UpsertUserDictEntry(e)
	},
}

var dictListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user-dictionary words",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewSQLiteStoreWithDSN(dictStoreDSN)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.ListUserDict()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s,%s,%s\n", e.Surface, e.POS, e.Reading)
		}
		return nil
	},
}

var dictRemoveCmd = &cobra.Command{
	Use:   "remove <surface>",
	Short: "Remove a user-dictionary word",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewSQLiteStoreWithDSN(dictStoreDSN)
		if err != nil {
			return err
		}
		defer st.Close()
		return st.DeleteUserDictEntry(args[0])
	},
}

func init() {
	dictCmd.PersistentFlags().StringVar(&dictStoreDSN, "store", "gokosei.db", "SQLite store path")
	dictCmd.AddCommand(dictAddCmd, dictListCmd, dictRemoveCmd)
	rootCmd.AddCommand(dictCmd)
}
