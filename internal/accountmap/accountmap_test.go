package accountmap

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestMap_UpdateAndGet(t *testing.T) {
	m := New(testLogger())

	_, ok := m.Get(1)
	assert.False(t, ok)

	m.Update(1, "agent-a")
	name, ok := m.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "agent-a", name)

	m.Update(1, "agent-b")
	name, ok = m.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "agent-b", name, "a later Update overwrites the owning agent")
}

func TestMap_UpdateBulkSkipsZeroValueEntries(t *testing.T) {
	m := New(testLogger())

	m.UpdateBulk([]Entry{
		{AccountID: 1, AgentName: "agent-a"},
		{AccountID: 0, AgentName: "agent-b"},
		{AccountID: 2, AgentName: ""},
		{AccountID: 3, AgentName: "agent-c"},
	})

	assert.Equal(t, 2, m.Size())
	name, ok := m.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "agent-a", name)

	_, ok = m.Get(2)
	assert.False(t, ok, "an entry with an empty agent name is skipped")

	name, ok = m.Get(3)
	assert.True(t, ok)
	assert.Equal(t, "agent-c", name)
}

func TestMap_Clear(t *testing.T) {
	m := New(testLogger())
	m.Update(1, "agent-a")
	assert.Equal(t, 1, m.Size())

	m.Clear()
	assert.Equal(t, 0, m.Size())
	_, ok := m.Get(1)
	assert.False(t, ok)
}
