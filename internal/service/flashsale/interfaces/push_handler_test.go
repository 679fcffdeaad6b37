// internal/service/flashsale/interfaces/push_handler_test.go
package interfaces

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsecart/internal/service/flashsale/domain"
)

func TestPushHubStreamsOutcomesToWebsocketClients(t *testing.T) {
	outcomes := make(chan *domain.ReservationOutcome, 4)
	hub := NewPushHub(outcomes)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	reservation := domain.NewReservation("p-1", "u-1", 2, 8)
	outcomes <- domain.NewSuccessOutcome(reservation, "t-1", 1)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	var received domain.ReservationOutcome
	require.NoError(t, conn.ReadJSON(&received))

	assert.Equal(t, "p-1", received.ProductID)
	assert.Equal(t, reservation.ID, received.ReservationID)
	assert.Equal(t, int64(8), received.RemainingStock)
	assert.True(t, received.Success())
}

func TestPushHubShutsDownWithContext(t *testing.T) {
	outcomes := make(chan *domain.ReservationOutcome)
	hub := NewPushHub(outcomes)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub must stop when its context is cancelled")
	}
}
