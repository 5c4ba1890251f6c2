package tuya

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistryServer(t *testing.T) *httptest.Server {
	cloud := newFakeCloud(t)
	cloud.deviceHandler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"success": true,
			"result": map[string]any{
				"devices": []map[string]any{
					{"id": "dev1", "name": "Workshop Switch", "category": "kg", "online": true},
					{"id": "dev2", "name": "Kitchen Plug", "category": "cz", "online": false},
				},
				"has_more": false,
			},
		})
	}
	return httptest.NewServer(cloud)
}

func TestRegistry_SyncAndFind(t *testing.T) {
	server := newRegistryServer(t)
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := NewRegistry(newTestClient(server.URL), logger)

	require.NoError(t, registry.Sync(context.Background()))
	require.Len(t, registry.GetDevices(), 2)

	byID, ok := registry.FindDevice("dev1")
	require.True(t, ok)
	assert.Equal(t, "Workshop Switch", byID.Name)

	byName, ok := registry.FindDevice("kitchen plug")
	require.True(t, ok)
	assert.Equal(t, "dev2", byName.ID)

	byFragment, ok := registry.FindDevice("workshop")
	require.True(t, ok)
	assert.Equal(t, "dev1", byFragment.ID)

	_, ok = registry.FindDevice("garage")
	assert.False(t, ok)
}

func TestRegistry_Summary(t *testing.T) {
	server := newRegistryServer(t)
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := NewRegistry(newTestClient(server.URL), logger)

	require.NoError(t, registry.Sync(context.Background()))

	summary := registry.Summary()
	assert.Contains(t, summary, "Workshop Switch")
	assert.Contains(t, summary, "online")
	assert.Contains(t, summary, "offline")
}
