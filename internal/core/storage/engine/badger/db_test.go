package badger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dat/internal/core/storage/engine"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := engine.DefaultConfig(filepath.Join(t.TempDir(), "test.db"))
	cfg.GCInterval = 0
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngine_PutGetDelete(t *testing.T) {
	e := testEngine(t)

	require.NoError(t, e.Put([]byte("k"), []byte("v")))
	got, err := e.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	ok, err := e.Has([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, e.Delete([]byte("k")))
	_, err = e.Get([]byte("k"))
	assert.True(t, engine.IsNotFound(err))

	_, err = e.Get(nil)
	assert.ErrorIs(t, err, engine.ErrEmptyKey)
}

func TestEngine_PrefixIterator(t *testing.T) {
	e := testEngine(t)

	require.NoError(t, e.Put([]byte("a/1"), []byte("1")))
	require.NoError(t, e.Put([]byte("a/2"), []byte("2")))
	require.NoError(t, e.Put([]byte("b/1"), []byte("x")))

	iter := e.NewPrefixIterator([]byte("a/"))
	defer iter.Close()

	var keys []string
	for iter.First(); iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Key()))
		assert.NotEmpty(t, iter.Value())
	}
	require.NoError(t, iter.Error())
	assert.Equal(t, []string{"a/1", "a/2"}, keys)
}

func TestEngine_Transaction(t *testing.T) {
	e := testEngine(t)

	txn := e.NewTransaction(true)
	require.NoError(t, txn.Set([]byte("x"), []byte("1")))
	require.NoError(t, txn.Set([]byte("y"), []byte("2")))
	require.NoError(t, txn.Commit())
	txn.Discard()

	got, err := e.Get([]byte("y"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)

	discarded := e.NewTransaction(true)
	require.NoError(t, discarded.Set([]byte("z"), []byte("3")))
	discarded.Discard()
	_, err = e.Get([]byte("z"))
	assert.True(t, engine.IsNotFound(err))

	ro := e.NewTransaction(false)
	defer ro.Discard()
	assert.ErrorIs(t, ro.Set([]byte("w"), nil), engine.ErrReadOnly)
}

func TestEngine_Close(t *testing.T) {
	e := testEngine(t)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err := e.Get([]byte("k"))
	assert.True(t, engine.IsClosed(err))
}

func TestConfig_Validate(t *testing.T) {
	cfg := engine.DefaultConfig("")
	assert.ErrorIs(t, cfg.Validate(), engine.ErrInvalidConfig)

	cfg = engine.DefaultConfig("/tmp/x")
	cfg.NumCompactors = 1
	assert.ErrorIs(t, cfg.Validate(), engine.ErrInvalidConfig)
}
