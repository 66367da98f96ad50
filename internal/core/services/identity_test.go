package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t5k6/marginalia/internal/core/domain"
	"github.com/t5k6/marginalia/internal/frontmatter"
	"github.com/t5k6/marginalia/internal/locking"
)

const validUID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

func newIdentityHarness(files map[string]string) (*IdentityResolver, *fakeVault, *fakeSnapshots) {
	vault := newFakeVault(files)
	snaps := newFakeSnapshots()
	r := NewIdentityResolver(vault, snaps, locking.NewArena(), locking.NewArena())
	return r, vault, snaps
}

func TestEnsureID_AssignsUIDWhenMissing(t *testing.T) {
	body := renderBody(t, testBook, ann(1, "0", "10", "alpha"))
	r, vault, _ := newIdentityHarness(map[string]string{"dune.md": body})

	uid, err := r.EnsureID(context.Background(), domain.DocumentRecord{Path: "dune.md"})
	require.NoError(t, err)
	_, err = uuid.Parse(uid)
	require.NoError(t, err, "assigned uid must be a valid uuid")

	fm, gotBody, err := frontmatter.Parse(vault.content("dune.md"))
	require.NoError(t, err)
	assert.Equal(t, uid, fm.UID)
	assert.Equal(t, body, gotBody, "body must survive the header rewrite byte for byte")
}

func TestEnsureID_KeepsExistingValidUID(t *testing.T) {
	content := docContent(t, validUID, testBook, ann(1, "0", "10", "alpha"))
	r, vault, _ := newIdentityHarness(map[string]string{"dune.md": content})

	uid, err := r.EnsureID(context.Background(), domain.DocumentRecord{Path: "dune.md"})
	require.NoError(t, err)

	assert.Equal(t, validUID, uid)
	assert.Zero(t, vault.writeCount(), "a valid uid is final, no rewrite")
}

func TestEnsureID_ReadsUnderLockNotFromCaller(t *testing.T) {
	content := docContent(t, validUID, testBook, ann(1, "0", "10", "alpha"))
	r, _, _ := newIdentityHarness(map[string]string{"dune.md": content})

	// The caller's stale record claims there is no UID; the on-disk truth
	// wins.
	uid, err := r.EnsureID(context.Background(), domain.DocumentRecord{Path: "dune.md", UID: ""})
	require.NoError(t, err)
	assert.Equal(t, validUID, uid)
}

func TestEnsureID_MigratesSnapshotFromMalformedUID(t *testing.T) {
	body := renderBody(t, testBook, ann(1, "0", "10", "alpha"))
	content, err := frontmatter.Render(domain.Frontmatter{UID: "koreader-12345", Title: "Dune"}, body)
	require.NoError(t, err)
	r, vault, snaps := newIdentityHarness(map[string]string{"dune.md": content})
	snaps.put("koreader-12345", body)

	uid, err := r.EnsureID(context.Background(), domain.DocumentRecord{Path: "dune.md"})
	require.NoError(t, err)
	_, err = uuid.Parse(uid)
	require.NoError(t, err)

	// Snapshot moved to the new identity.
	_, oldExists := snaps.get("koreader-12345")
	assert.False(t, oldExists, "old snapshot deleted after commit")
	moved, newExists := snaps.get(uid)
	require.True(t, newExists, "snapshot must follow the document to its new uid")
	assert.Equal(t, uid, moved.UID)
	assert.Equal(t, body, moved.Body)
	assert.True(t, moved.Verify())

	fm, _, err := frontmatter.Parse(vault.content("dune.md"))
	require.NoError(t, err)
	assert.Equal(t, uid, fm.UID)
}

func TestEnsureID_MigrationRollbackOnCommitFailure(t *testing.T) {
	body := renderBody(t, testBook, ann(1, "0", "10", "alpha"))
	content, err := frontmatter.Render(domain.Frontmatter{UID: "legacy-key"}, body)
	require.NoError(t, err)
	r, vault, snaps := newIdentityHarness(map[string]string{"dune.md": content})
	snaps.put("legacy-key", body)

	vault.writeErr = errors.New("device out of space")

	_, err = r.EnsureID(context.Background(), domain.DocumentRecord{Path: "dune.md"})
	require.ErrorIs(t, err, domain.ErrMigrationFailed)

	// The copy under the new uid was rolled back; the old snapshot is
	// untouched.
	uids, listErr := snaps.List(context.Background())
	require.NoError(t, listErr)
	assert.Equal(t, []string{"legacy-key"}, uids)
	old, ok := snaps.get("legacy-key")
	require.True(t, ok)
	assert.Equal(t, body, old.Body)
}

func TestEnsureID_MigrationWithoutOldSnapshot(t *testing.T) {
	body := renderBody(t, testBook, ann(1, "0", "10", "alpha"))
	content, err := frontmatter.Render(domain.Frontmatter{UID: "legacy-key"}, body)
	require.NoError(t, err)
	r, vault, snaps := newIdentityHarness(map[string]string{"dune.md": content})

	uid, err := r.EnsureID(context.Background(), domain.DocumentRecord{Path: "dune.md"})
	require.NoError(t, err)

	fm, _, err := frontmatter.Parse(vault.content("dune.md"))
	require.NoError(t, err)
	assert.Equal(t, uid, fm.UID)

	uids, err := snaps.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, uids, "nothing to migrate means nothing written")
}

func TestEnsureID_CorruptOldSnapshotNotMigrated(t *testing.T) {
	body := renderBody(t, testBook, ann(1, "0", "10", "alpha"))
	content, err := frontmatter.Render(domain.Frontmatter{UID: "legacy-key"}, body)
	require.NoError(t, err)
	r, _, snaps := newIdentityHarness(map[string]string{"dune.md": content})
	snaps.put("legacy-key", body)
	snaps.corrupt["legacy-key"] = true

	uid, err := r.EnsureID(context.Background(), domain.DocumentRecord{Path: "dune.md"})
	require.NoError(t, err, "a corrupt baseline is dropped, not fatal")

	_, ok := snaps.get(uid)
	assert.False(t, ok, "corrupt snapshots are not copied forward")
}

func TestEnsureID_ConcurrentCallsAgreeOnOneUID(t *testing.T) {
	body := renderBody(t, testBook, ann(1, "0", "10", "alpha"))
	r, vault, _ := newIdentityHarness(map[string]string{"dune.md": body})

	const callers = 10
	uids := make(chan string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			uid, err := r.EnsureID(context.Background(), domain.DocumentRecord{Path: "dune.md"})
			assert.NoError(t, err)
			uids <- uid
		}()
	}
	wg.Wait()
	close(uids)

	var first string
	for uid := range uids {
		if first == "" {
			first = uid
		}
		assert.Equal(t, first, uid, "every caller sees the same identity")
	}

	fm, _, err := frontmatter.Parse(vault.content("dune.md"))
	require.NoError(t, err)
	assert.Equal(t, first, fm.UID)
	assert.Equal(t, 1, vault.writeCount(), "only the first caller writes")
}

func TestEnsureID_ConcurrentMigrationsComplete(t *testing.T) {
	bodyA := renderBody(t, testBook, ann(1, "0", "10", "alpha"))
	bodyB := renderBody(t, domain.BookIdentity{Title: "Hyperion"}, ann(2, "0", "10", "beta"))
	contentA, err := frontmatter.Render(domain.Frontmatter{UID: "legacy-a"}, bodyA)
	require.NoError(t, err)
	contentB, err := frontmatter.Render(domain.Frontmatter{UID: "legacy-b"}, bodyB)
	require.NoError(t, err)

	r, _, snaps := newIdentityHarness(map[string]string{"a.md": contentA, "b.md": contentB})
	snaps.put("legacy-a", bodyA)
	snaps.put("legacy-b", bodyB)

	var wg sync.WaitGroup
	for _, path := range []string{"a.md", "b.md"} {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			_, err := r.EnsureID(context.Background(), domain.DocumentRecord{Path: p})
			assert.NoError(t, err)
		}(path)
	}
	wg.Wait()

	uids, err := snaps.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, uids, 2)
	assert.NotContains(t, uids, "legacy-a")
	assert.NotContains(t, uids, "legacy-b")
}
