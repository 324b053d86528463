package courier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoco-io/fabric/pkg/bus"
	"github.com/monoco-io/fabric/pkg/types"
)

func TestBridgeStreamsBusEvents(t *testing.T) {
	b := bus.New()
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	bridge := NewBridge(b, hub)
	bridge.Start()
	defer bridge.Stop()

	wsSrv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer wsSrv.Close()

	url := "ws" + strings.TrimPrefix(wsSrv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the hub a moment to register the client.
	time.Sleep(50 * time.Millisecond)

	b.Publish(context.Background(), &types.Event{
		Type:    types.EventIssueStageChanged,
		Payload: map[string]any{"issue_id": "FEAT-012", "to_stage": "doing"},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event types.Event
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, types.EventIssueStageChanged, event.Type)
	assert.Equal(t, "FEAT-012", event.Payload["issue_id"])
	assert.NotEmpty(t, event.ID, "publish stamps the event id")
}
