package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key, err := store.Write(ctx, "scrape_results/result.json", []byte(`{"ok":true}`))
	require.NoError(t, err)
	require.Equal(t, "scrape_results/result.json", key)

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, `{"ok":true}`, string(data))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Open(ctx, key)
	require.Error(t, err)
}

func TestFileStoreDeleteMissingKeyIsNoop(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Delete(context.Background(), "never/written.json"))
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"../etc/passwd", "a/../../etc/passwd", "", "   ", "..\\windows\\system32"} {
		_, err := sanitizeKey(key)
		require.Error(t, err, "key %q must be rejected", key)
	}
}

func TestSanitizeKeyNormalizes(t *testing.T) {
	key, err := sanitizeKey("/scrape_results//a.json")
	require.NoError(t, err)
	require.Equal(t, "scrape_results/a.json", key)

	key, err = sanitizeKey("./scrape_results/b.csv")
	require.NoError(t, err)
	require.Equal(t, "scrape_results/b.csv", key)
}
