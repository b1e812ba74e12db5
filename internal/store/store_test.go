package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Both implementations run the same suite.
type storeFactory func() (Storer, error)

func runForAllStores(t *testing.T, testFn func(t *testing.T, s Storer)) {
	factories := map[string]storeFactory{
		"MemStore":    func() (Storer, error) { return NewMemStore(), nil },
		"SQLiteStore": func() (Storer, error) { return NewSQLiteStore() },
	}
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			s, err := factory()
			require.NoError(t, err)
			defer s.Close()
			testFn(t, s)
		})
	}
}

func TestIgnoreCRUD(t *testing.T) {
	runForAllStores(t, func(t *testing.T, s Storer) {
		global := &IgnoreRecord{RuleID: "ra-nuki", Matched: "見れる"}
		scoped := &IgnoreRecord{RuleID: "comma-density", Matched: "あ、い、う", ParagraphHash: "abc123"}

		require.NoError(t, s.AddIgnore(global))
		require.NoError(t, s.AddIgnore(scoped))
		assert.NotZero(t, global.ID)
		assert.NotEqual(t, global.ID, scoped.ID)

		recs, err := s.ListIgnores()
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "ra-nuki", recs[0].RuleID)
		assert.Empty(t, recs[0].ParagraphHash)
		assert.Equal(t, "abc123", recs[1].ParagraphHash)

		require.NoError(t, s.RemoveIgnore(global.ID))
		recs, err = s.ListIgnores()
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "comma-density", recs[0].RuleID)
	})
}

func TestIgnoreDuplicateRejected(t *testing.T) {
	runForAllStores(t, func(t *testing.T, s Storer) {
		rec := &IgnoreRecord{RuleID: "ra-nuki", Matched: "見れる"}
		require.NoError(t, s.AddIgnore(rec))

		dup := &IgnoreRecord{RuleID: "ra-nuki", Matched: "見れる"}
		assert.Error(t, s.AddIgnore(dup))

		// Same tuple under a paragraph scope is a distinct record.
		scoped := &IgnoreRecord{RuleID: "ra-nuki", Matched: "見れる", ParagraphHash: "p1"}
		assert.NoError(t, s.AddIgnore(scoped))
	})
}

func TestUserDictCRUD(t *testing.T) {
	runForAllStores(t, func(t *testing.T, s Storer) {
		require.NoError(t, s.UpsertUserDictEntry(&UserDictEntry{
			Surface: "東京タワー", POS: "名詞", Reading: "トウキョウタワー",
		}))
		require.NoError(t, s.UpsertUserDictEntry(&UserDictEntry{
			Surface: "魔導書", POS: "名詞",
		}))

		entries, err := s.ListUserDict()
		require.NoError(t, err)
		require.Len(t, entries, 2)
		// Ordered by surface form.
		assert.Equal(t, "東京タワー", entries[0].Surface)
		assert.Equal(t, "魔導書", entries[1].Surface)

		// Upsert replaces in place.
		require.NoError(t, s.UpsertUserDictEntry(&UserDictEntry{
			Surface: "魔導書", POS: "名詞", Reading: "マドウショ",
		}))
		entries, err = s.ListUserDict()
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "マドウショ", entries[1].Reading)

		require.NoError(t, s.DeleteUserDictEntry("東京タワー"))
		entries, err = s.ListUserDict()
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})
}

func TestEmptyStore(t *testing.T) {
	runForAllStores(t, func(t *testing.T, s Storer) {
		recs, err := s.ListIgnores()
		require.NoError(t, err)
		assert.Empty(t, recs)

		entries, err := s.ListUserDict()
		require.NoError(t, err)
		assert.Empty(t, entries)

		assert.NoError(t, s.RemoveIgnore(42))
		assert.NoError(t, s.DeleteUserDictEntry("未登録"))
	})
}
