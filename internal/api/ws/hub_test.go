package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/eventface/internal/models"
	"github.com/your-org/eventface/pkg/dto"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubFiltersByEvent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	go hub.Run()

	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	wedding := dial(t, srv, "?event_id=wedding")
	all := dial(t, srv, "")

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.BroadcastResult(models.IngestResult{MediaID: "m1", EventID: "gala", FacesFound: 1})
	hub.BroadcastResult(models.IngestResult{MediaID: "m2", EventID: "wedding", FacesFound: 3})

	var evt dto.WSEvent
	require.NoError(t, wedding.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := wedding.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &evt))
	assert.Equal(t, "m2", evt.MediaID)
	assert.Equal(t, 3, evt.FacesFound)
	assert.Equal(t, "media_ingested", evt.Type)

	// The unfiltered client sees both, in order.
	require.NoError(t, all.SetReadDeadline(time.Now().Add(2*time.Second)))
	for _, want := range []string{"m1", "m2"} {
		_, data, err := all.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &evt))
		assert.Equal(t, want, evt.MediaID)
	}
}
