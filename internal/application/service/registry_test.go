package service

import (
	"testing"

	"retrieval-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolRegistry_RegisterAndGet(t *testing.T) {
	r := NewToolRegistry()
	require.NoError(t, r.Register(&stubTool{name: "web_search"}))

	tool, ok := r.Get("web_search")
	require.True(t, ok)
	assert.Equal(t, "web_search", tool.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestToolRegistry_RejectsDuplicatesAndEmptyNames(t *testing.T) {
	r := NewToolRegistry()
	require.NoError(t, r.Register(&stubTool{name: "sql_query"}))

	assert.Error(t, r.Register(&stubTool{name: "sql_query"}))
	assert.Error(t, r.Register(&stubTool{name: "  "}))
	assert.Panics(t, func() { r.MustRegister(&stubTool{name: "sql_query"}) })
}

func TestToolRegistry_ResolveUnknown(t *testing.T) {
	r := NewToolRegistry()

	_, err := r.Resolve("teleport")
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrUnknownTool)
	assert.Contains(t, err.Error(), "teleport")
}

func TestToolRegistry_DefinitionsSortedByName(t *testing.T) {
	r := NewToolRegistry()
	r.MustRegister(
		&stubTool{name: "web_search"},
		&stubTool{name: "currency_convert"},
		&stubTool{name: "fetch_page"},
	)

	defs := r.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "currency_convert", defs[0].Name)
	assert.Equal(t, "fetch_page", defs[1].Name)
	assert.Equal(t, "web_search", defs[2].Name)
	assert.Equal(t, "stub fetch_page", defs[1].Description)
	assert.NotNil(t, defs[1].Parameters["properties"])
}
