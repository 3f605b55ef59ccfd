package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newHubServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := gin.New()
	router.GET("/ws", hub.Serve)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)

	return hub, srv
}

func dialHub(t *testing.T, hub *Hub, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.subscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

// All three synchronizers publish from their own goroutines, so the
// hub must serialize writes per connection; gorilla/websocket allows
// only one concurrent writer.
func TestHubPublishConcurrentPublishers(t *testing.T) {
	hub, srv := newHubServer(t)
	conn := dialHub(t, hub, srv)

	received := make(chan struct{}, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			select {
			case received <- struct{}{}:
			default:
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(kind string) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				hub.Publish(kind, map[string]int{"n": j})
			}
		}(fmt.Sprintf("kind-%d", i))
	}
	wg.Wait()

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber received no frames")
	}

	if hub.subscriberCount() != 1 {
		t.Errorf("subscriberCount() = %d, expected the client to stay connected", hub.subscriberCount())
	}
}

func TestHubPublishDropsClosedSubscriber(t *testing.T) {
	hub, srv := newHubServer(t)
	conn := dialHub(t, hub, srv)

	conn.Close()

	// The hub notices the closed connection either via its read loop
	// or via the first failed write.
	deadline := time.Now().Add(2 * time.Second)
	for hub.subscriberCount() != 0 {
		hub.Publish("price", map[string]int{"n": 1})
		if time.Now().After(deadline) {
			t.Fatal("closed subscriber was never dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
