package store

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestPhaseStore_DefaultsAndUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phases.json")
	s, err := NewPhaseStore(path, testLogger())
	require.NoError(t, err)

	assert.Equal(t, DefaultPhase, s.Get(12345))

	require.NoError(t, s.Update(12345, "F2"))
	assert.Equal(t, "F2", s.Get(12345))
	assert.Equal(t, DefaultPhase, s.Get(99999), "unrelated account still defaults")
}

func TestPhaseStore_PersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phases.json")
	s, err := NewPhaseStore(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.Update(777, "F3"))

	reloaded, err := NewPhaseStore(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "F3", reloaded.Get(777))
}

func TestPhaseStore_MissingFileIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist", "phases.json")
	s, err := NewPhaseStore(path, testLogger())
	require.NoError(t, err)
	assert.Empty(t, s.All())
}
