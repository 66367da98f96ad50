package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t5k6/marginalia/internal/core/domain"
)

func TestVaultStoreCreateUnique(t *testing.T) {
	s := NewVaultStore()
	ctx := context.Background()

	first, err := s.CreateUnique(ctx, "books", "Title", "one")
	require.NoError(t, err)
	assert.Equal(t, "books/Title.md", first)

	second, err := s.CreateUnique(ctx, "books", "Title", "two")
	require.NoError(t, err)
	assert.Equal(t, "books/Title 1.md", second)

	content, err := s.Read(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "two", content)
}

func TestVaultStoreWalkScopedToDir(t *testing.T) {
	s := NewVaultStore()
	ctx := context.Background()
	require.NoError(t, s.WriteAtomic(ctx, "books/a.md", "a"))
	require.NoError(t, s.WriteAtomic(ctx, "books/b.md", "b"))
	require.NoError(t, s.WriteAtomic(ctx, "other/c.md", "c"))

	var seen []string
	require.NoError(t, s.Walk(ctx, "books", func(p string) error {
		seen = append(seen, p)
		return nil
	}))
	assert.Equal(t, []string{"books/a.md", "books/b.md"}, seen)
}

func TestSnapshotStoreIntegrity(t *testing.T) {
	s := NewSnapshotStore()
	ctx := context.Background()
	uid := "0185ad5b-0000-4000-8000-000000000001"

	require.NoError(t, s.Write(ctx, domain.NewSnapshot(uid, "body", "2026-08-30T10:00:00Z")))

	_, err := s.Read(ctx, uid)
	require.NoError(t, err)

	s.Corrupt(uid)
	_, err = s.Read(ctx, uid)
	require.ErrorIs(t, err, domain.ErrIntegrityFailed)

	_, err = s.Read(ctx, "0185ad5b-0000-4000-8000-00000000dead")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBackupStorePrune(t *testing.T) {
	s := NewBackupStore()
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	s.Now = func() time.Time { return clock }

	for i := 0; i < 4; i++ {
		clock = base.Add(time.Duration(i) * time.Minute)
		_, err := s.Backup(ctx, "a.md", "v")
		require.NoError(t, err)
	}

	removed, err := s.Prune(ctx, time.Hour, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 2, s.Len())
}

func TestImportIndexMostRecentFirst(t *testing.T) {
	idx := NewImportIndex()
	ctx := context.Background()
	book := domain.BookIdentity{Title: "Kindred", Authors: []string{"Octavia Butler"}}

	require.NoError(t, idx.Record(ctx, book, "books/older.md"))
	require.NoError(t, idx.Record(ctx, book, "books/newer.md"))

	paths, err := idx.PathsForKey(ctx, book.Key())
	require.NoError(t, err)
	assert.Equal(t, []string{"books/newer.md", "books/older.md"}, paths)

	require.NoError(t, idx.Forget(ctx, "books/newer.md"))
	paths, err = idx.PathsForKey(ctx, book.Key())
	require.NoError(t, err)
	assert.Equal(t, []string{"books/older.md"}, paths)
}

func TestImportIndexRebuild(t *testing.T) {
	idx := NewImportIndex()
	ctx := context.Background()

	require.NoError(t, idx.BeginRebuild(ctx))
	ready, err := idx.Ready(ctx)
	require.NoError(t, err)
	assert.False(t, ready)

	require.NoError(t, idx.EndRebuild(ctx))
	ready, err = idx.Ready(ctx)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestPrompterScript(t *testing.T) {
	p := NewPrompter(
		domain.PromptDecision{Choice: domain.ChoiceReplace},
		domain.PromptDecision{Choice: domain.ChoiceMerge, ApplyToAll: true},
	)
	ctx := context.Background()
	book := domain.BookIdentity{Title: "Kindred"}

	first, err := p.ResolveDuplicate(ctx, book, domain.DuplicateMatch{})
	require.NoError(t, err)
	assert.Equal(t, domain.ChoiceReplace, first.Choice)

	second, err := p.ResolveDuplicate(ctx, book, domain.DuplicateMatch{})
	require.NoError(t, err)
	assert.Equal(t, domain.ChoiceMerge, second.Choice)
	assert.True(t, second.ApplyToAll)

	// Script exhausted: never guess, skip.
	third, err := p.ResolveDuplicate(ctx, book, domain.DuplicateMatch{})
	require.NoError(t, err)
	assert.Equal(t, domain.ChoiceSkip, third.Choice)

	assert.Len(t, p.Asked(), 3)
}
