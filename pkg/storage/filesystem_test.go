package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	n, err := store.Save("submissions/a1/notes.txt", strings.NewReader("hello"), 10)
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	f, err := store.Open("submissions/a1/notes.txt")
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))

	require.NoError(t, store.Delete("submissions/a1/notes.txt"))
	require.NoError(t, store.Delete("submissions/a1/notes.txt"))
}

func TestLocalStorageEnforcesLimit(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("big.bin", strings.NewReader("0123456789"), 4)
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = store.Open("big.bin")
	require.Error(t, err)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../escape.txt", strings.NewReader("x"), 0)
	require.ErrorIs(t, err, ErrInvalidPath)
	_, err = store.Open("/etc/passwd")
	require.ErrorIs(t, err, ErrInvalidPath)
}
