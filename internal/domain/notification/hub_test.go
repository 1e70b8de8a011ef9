package notification_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/brandboost/brandboost-api/internal/domain/notification"
)

func waitForConnections(t *testing.T, hub *notification.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.ConnectionCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("hub never reached %d connections", n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHubDeliversToRegisteredConnection(t *testing.T) {
	hub := notification.NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	userID := uuid.New()
	conn := &notification.Connection{UserID: userID, Send: make(chan []byte, 4)}
	hub.Register(conn)

	// Register goes through the hub loop; wait for it to land.
	waitForConnections(t, hub, 1)

	err := hub.SendToUserJSON(userID, map[string]string{"type": "notification:new"})
	assert.NoError(t, err)

	msg := <-conn.Send
	assert.Contains(t, string(msg), "notification:new")
}

func TestHubSendSurvivesConnectionChurn(t *testing.T) {
	hub := notification.NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	userID := uuid.New()
	anchored := &notification.Connection{UserID: userID, Send: make(chan []byte, 256)}
	hub.Register(anchored)
	waitForConnections(t, hub, 1)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			conn := &notification.Connection{UserID: userID, Send: make(chan []byte, 1)}
			hub.Register(conn)
			hub.Unregister(conn)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = hub.SendToUserJSON(userID, map[string]int{"seq": i})
		}
	}()

	wg.Wait()
}
