package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVSGroupStore_EnforcesTwoMemberLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vs.json")
	s, err := NewVSGroupStore(path, testLogger())
	require.NoError(t, err)

	ok, _, err := s.Update(111, "alpha")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _, err = s.Update(222, "alpha")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, msg, err := s.Update(333, "alpha")
	require.NoError(t, err)
	assert.False(t, ok, "a third account must be rejected")
	assert.Contains(t, msg, "already has 2 accounts")

	assert.Equal(t, "alpha", s.Get(111))
	assert.Equal(t, "alpha", s.Get(222))
	assert.Equal(t, "", s.Get(333))
}

func TestVSGroupStore_ClearingFreesASlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vs.json")
	s, err := NewVSGroupStore(path, testLogger())
	require.NoError(t, err)

	_, _, _ = s.Update(111, "alpha")
	_, _, _ = s.Update(222, "alpha")

	ok, _, err := s.Update(111, "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _, err = s.Update(333, "alpha")
	require.NoError(t, err)
	assert.True(t, ok, "freed slot should accept a new member")
}

func TestVSGroupStore_Partner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vs.json")
	s, err := NewVSGroupStore(path, testLogger())
	require.NoError(t, err)

	_, _, _ = s.Update(111, "alpha")
	_, ok := s.Partner(111)
	assert.False(t, ok, "no partner until a second account joins")

	_, _, _ = s.Update(222, "alpha")
	partner, ok := s.Partner(111)
	require.True(t, ok)
	assert.EqualValues(t, 222, partner)
}
