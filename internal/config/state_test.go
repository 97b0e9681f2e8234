package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStore_MissingFileIsEmpty(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), "state.yaml"))

	st, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, &State{}, st)
}

func TestStateStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	store := NewStateStore(path)

	want := &State{MCUImage: "app.hex", ModuleImage: "we310.bin", Programmer: "ipecmd.exe", Counter: 12}
	require.NoError(t, store.Save(want))

	got, err := NewStateStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoFileExists(t, path+".tmp")
}

func TestStateStore_SaveCounterKeepsPaths(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), "state.yaml"))
	require.NoError(t, store.Save(&State{MCUImage: "app.hex", Counter: 1}))

	require.NoError(t, store.SaveCounter(2))

	st, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "app.hex", st.MCUImage)
	assert.Equal(t, 2, st.Counter)
}

func TestStateStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("counter: [1"), 0644))

	_, err := NewStateStore(path).Load()
	assert.Error(t, err)
}
