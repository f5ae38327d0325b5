package agentregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinfolonokojo/mt5-backend/internal/config"
)

func TestNew_ResolveAndAll(t *testing.T) {
	r, err := New([]config.AgentConfig{
		{Name: "beta", BaseURL: "http://beta.example"},
		{Name: "alpha", BaseURL: "http://alpha.example"},
	})
	require.NoError(t, err)

	agent, ok := r.Resolve("alpha")
	require.True(t, ok)
	assert.Equal(t, "http://alpha.example", agent.BaseURL)

	_, ok = r.Resolve("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"alpha", "beta"}, r.Names(), "names are sorted for deterministic fan-out order")
	assert.Equal(t, 2, r.Len())

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "beta", all[1].Name)
}

func TestNew_RejectsDuplicateAgentNames(t *testing.T) {
	_, err := New([]config.AgentConfig{
		{Name: "alpha", BaseURL: "http://a.example"},
		{Name: "alpha", BaseURL: "http://b.example"},
	})
	require.Error(t, err)
}

func TestNew_EmptyRegistry(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.All())
}
