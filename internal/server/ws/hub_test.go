package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

func startHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Mode: "run"})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return hub, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return m
}

func TestHubPushesSinkRecords(t *testing.T) {
	hub, conn := startHub(t)

	if m := readMessage(t, conn); m.Type != "bot_status" {
		t.Fatalf("first message = %q, want bot_status", m.Type)
	}

	opp := domain.Opportunity{Key: common.HexToHash("0xabc"), State: domain.OppAdmitted}
	if err := hub.OpportunityUpdated(context.Background(), opp); err != nil {
		t.Fatalf("opportunity: %v", err)
	}
	m := readMessage(t, conn)
	if m.Type != "opportunity" {
		t.Fatalf("type = %q", m.Type)
	}
	payload := m.Payload.(map[string]any)
	if payload["state"] != string(domain.OppAdmitted) {
		t.Fatalf("payload = %v", payload)
	}
}

func TestHubHonoursUnsubscribe(t *testing.T) {
	hub, conn := startHub(t)
	readMessage(t, conn)

	sub, _ := json.Marshal(subscribeMsg{Action: "unsubscribe", Channels: []string{ChannelOpportunities}})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The unsubscribe is applied asynchronously. Each round publishes an
	// opportunity then an attempt; once a round starts with the attempt the
	// opportunity was filtered.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.OpportunityUpdated(context.Background(), domain.Opportunity{State: domain.OppSized})
		hub.AttemptUpdated(context.Background(), domain.ExecutionAttempt{ID: "a1", State: domain.AttemptPending})
		if m := readMessage(t, conn); m.Type == "attempt" {
			return
		}
		if m := readMessage(t, conn); m.Type != "attempt" {
			t.Fatalf("expected attempt to follow opportunity, got %q", m.Type)
		}
	}
	t.Fatal("opportunities still delivered after unsubscribe")
}

type fakeStreams struct {
	mu      sync.Mutex
	entries map[string][]domain.StreamMessage
	reads   map[string][]string
}

func (f *fakeStreams) StreamRead(_ context.Context, stream, lastID string, _ int) ([]domain.StreamMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[stream] = append(f.reads[stream], lastID)
	out := f.entries[stream]
	f.entries[stream] = nil
	return out, nil
}

func TestFollowBroadcastsStreamEntries(t *testing.T) {
	hub, conn := startHub(t)
	readMessage(t, conn)

	streams := &fakeStreams{
		entries: map[string][]domain.StreamMessage{
			domain.StreamAttempts: {{ID: "99999999999999-0", Payload: []byte(`{"id":"a7","state":"confirmed"}`)}},
		},
		reads: map[string][]string{},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Follow(ctx, streams, 10*time.Millisecond)

	m := readMessage(t, conn)
	if m.Type != "attempt" {
		t.Fatalf("type = %q", m.Type)
	}
	if m.Payload.(map[string]any)["id"] != "a7" {
		t.Fatalf("payload = %v", m.Payload)
	}

	// The cursor advances past the delivered entry.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		streams.mu.Lock()
		reads := streams.reads[domain.StreamAttempts]
		last := ""
		if len(reads) > 0 {
			last = reads[len(reads)-1]
		}
		streams.mu.Unlock()
		if last == "99999999999999-0" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("cursor did not advance")
}
