package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"stellar-hierarchy/hierarchy"
)

func TestHub_PublishReachesSubscribers(t *testing.T) {
	hub := NewHub("test-system", NewTestMetricsCollector())
	go hub.Run()
	defer hub.Stop()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	batch := ChangeBatch{Tick: 7, Operation: "sweep", Changes: hierarchy.ChangeLog{
		{BodyID: id("moon"), OldParent: id("earth"), NewParent: id("sun"), Reason: hierarchy.ReasonEscaped},
	}}

	// Registration races the first publish, so keep publishing until one lands
	received := make(chan []byte, 1)
	go func() {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- data
		}
		close(received)
	}()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case data, ok := <-received:
			if !ok {
				t.Fatal("connection closed before a message arrived")
			}
			var msg struct {
				Type    string      `json:"type"`
				Sender  string      `json:"sender"`
				Payload ChangeBatch `json:"payload"`
			}
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if msg.Type != "changes" || msg.Sender != "test-system" {
				t.Errorf("envelope = %s/%s", msg.Type, msg.Sender)
			}
			if msg.Payload.Tick != 7 || len(msg.Payload.Changes) != 1 || msg.Payload.Changes[0].NewParent != id("sun") {
				t.Errorf("payload = %+v", msg.Payload)
			}
			return
		case <-ticker.C:
			hub.Publish("changes", batch)
		case <-timeout:
			t.Fatal("no message received")
		}
	}
}

func TestHub_PublishDoesNotBlock(t *testing.T) {
	// No Run loop: the queue fills and further events are dropped
	hub := NewHub("test-system", nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(hub.Broadcast)+10; i++ {
			hub.Publish("changes", ChangeBatch{Tick: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	if len(hub.Broadcast) != cap(hub.Broadcast) {
		t.Errorf("queued %d events, want %d", len(hub.Broadcast), cap(hub.Broadcast))
	}
}
