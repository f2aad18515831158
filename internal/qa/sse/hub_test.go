package sse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishFiltersByStyle(t *testing.T) {
	hub := NewHub(nil)

	all := &Client{ID: "all", Events: make(chan Event, 4)}
	scoped := &Client{ID: "scoped", StyleID: "style-1", Events: make(chan Event, 4)}
	other := &Client{ID: "other", StyleID: "style-2", Events: make(chan Event, 4)}
	hub.Register(all)
	hub.Register(scoped)
	hub.Register(other)
	assert.Equal(t, 3, hub.ClientCount())

	hub.Publish("stage_changed", map[string]interface{}{"style_id": "style-1", "stage": "base_approved"})

	require.Len(t, all.Events, 1)
	require.Len(t, scoped.Events, 1)
	assert.Len(t, other.Events, 0)

	ev := <-scoped.Events
	assert.Equal(t, "stage_changed", ev.EventType)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(ev.Data), &payload))
	assert.Equal(t, "base_approved", payload["stage"])
}

func TestHub_BroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil)
	client := &Client{ID: "c1", Events: make(chan Event, 1)}
	hub.Register(client)

	hub.Publish("links_expired", map[string]interface{}{"count": 1})
	hub.Publish("links_expired", map[string]interface{}{"count": 2})

	assert.Len(t, client.Events, 1)
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	hub := NewHub(nil)
	client := &Client{ID: "c1", Events: make(chan Event, 1)}
	hub.Register(client)
	hub.Unregister("c1")
	hub.Unregister("c1")

	_, ok := <-client.Events
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())
}
