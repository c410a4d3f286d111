package task

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context, p Params) (Outcome, error) {
	return OK("/noop", nil), nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Route{Name: "/b", Run: noop}))
	require.NoError(t, r.Register(Route{Name: "/a", Run: noop, BypassQueue: true}))

	route, err := r.Lookup("/a")
	require.NoError(t, err)
	assert.True(t, route.BypassQueue)

	routes := r.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, "/a", routes[0].Name)
	assert.Equal(t, "/b", routes[1].Name)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Route{Name: "/a", Run: noop}))

	err := r.Register(Route{Name: "/a", Run: noop})
	assert.True(t, errors.Is(err, ErrDuplicateRoute))
}

func TestRegistryRejectsIncompleteRoutes(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(Route{Run: noop}))
	assert.Error(t, r.Register(Route{Name: "/a"}))
}

func TestRegistryUnknownRoute(t *testing.T) {
	_, err := NewRegistry().Lookup("/missing")
	assert.True(t, errors.Is(err, ErrUnknownRoute))
}

func TestParamsAccessors(t *testing.T) {
	p := Params{"id": "abc", "webhook_url": " https://example.com/hook ", "user_id": "u1"}

	id, ok := p.ID()
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
	assert.Equal(t, "https://example.com/hook", p.WebhookURL())
	assert.Equal(t, "u1", p.UserID())

	_, ok = Params{"id": nil}.ID()
	assert.False(t, ok)
	assert.Equal(t, "", Params{}.WebhookURL())
}

func TestParamsNumericID(t *testing.T) {
	id, ok := Params{"id": float64(42)}.ID()
	assert.True(t, ok)
	assert.Equal(t, "42", id)
}

func TestParamsDecode(t *testing.T) {
	type entry struct {
		URL string `json:"audio_url"`
	}
	type req struct {
		MediaURL string  `json:"media_url"`
		MaxChars int     `json:"max_chars"`
		Entries  []entry `json:"audio_urls"`
	}

	p := Params{
		"media_url":  "https://example.com/a.mp3",
		"max_chars":  float64(40),
		"audio_urls": []any{map[string]any{"audio_url": "https://example.com/1.mp3"}},
		"extra":      true,
	}

	var out req
	require.NoError(t, p.Decode(&out))
	assert.Equal(t, "https://example.com/a.mp3", out.MediaURL)
	assert.Equal(t, 40, out.MaxChars)
	require.Len(t, out.Entries, 1)
	assert.Equal(t, "https://example.com/1.mp3", out.Entries[0].URL)
}

func TestParamsClone(t *testing.T) {
	p := Params{"a": 1}
	c := p.Clone()
	c["a"] = 2
	assert.Equal(t, 1, p["a"])
}
