package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

type recordingSender struct {
	name   string
	titles []string
	bodies []string
	err    error
}

func (r *recordingSender) Send(_ context.Context, title, message string) error {
	if r.err != nil {
		return r.err
	}
	r.titles = append(r.titles, title)
	r.bodies = append(r.bodies, message)
	return nil
}

func (r *recordingSender) Name() string { return r.name }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventAttemptConfirmed, " "}, quietLogger())

	_ = n.Notify(context.Background(), EventAttemptReverted, "t", "m")
	if len(s.titles) != 0 {
		t.Fatal("filtered event delivered")
	}
	_ = n.Notify(context.Background(), EventAttemptConfirmed, "t", "m")
	if len(s.titles) != 1 {
		t.Fatalf("deliveries = %d", len(s.titles))
	}
}

func TestNotifierContinuesPastFailingSender(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, quietLogger())

	err := n.Notify(context.Background(), EventDegraded, "t", "m")
	if err == nil || !strings.Contains(err.Error(), "bad: boom") {
		t.Fatalf("err = %v", err)
	}
	if len(good.titles) != 1 {
		t.Fatal("good sender skipped")
	}
}

func TestAttemptSinkFormatsResolvedAttempts(t *testing.T) {
	s := &recordingSender{name: "rec"}
	sink := NewAttemptSink(NewNotifier([]Sender{s}, nil, quietLogger()))
	ctx := context.Background()

	profit, _ := new(big.Int).SetString("12500000000000000", 10)
	a := domain.ExecutionAttempt{
		OpportunityKey: common.HexToHash("0x01"),
		TxHash:         common.HexToHash("0x02"),
		Nonce:          9,
		GasPrice:       big.NewInt(31_500_000_000),
		RealizedProfit: profit,
		BlockNumber:    100,
		GasUsed:        210_000,
		State:          domain.AttemptPending,
	}
	_ = sink.AttemptUpdated(ctx, a)
	if len(s.titles) != 0 {
		t.Fatal("pending attempt notified")
	}

	a.State = domain.AttemptConfirmed
	if err := sink.AttemptUpdated(ctx, a); err != nil {
		t.Fatal(err)
	}
	if len(s.titles) != 1 || s.titles[0] != "Sandwich confirmed" {
		t.Fatalf("titles = %v", s.titles)
	}
	body := s.bodies[0]
	for _, want := range []string{"nonce 9", "31.5 gwei", "realized: 0.0125 ETH", "block: 100"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestTelegramSenderPostsMessage(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42")
	s.baseURL = srv.URL
	if err := s.Send(context.Background(), "Title", "body"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if path != "/bottok/sendMessage" {
		t.Errorf("path = %q", path)
	}
	if got["chat_id"] != "42" || got["text"] != "*Title*\nbody" {
		t.Errorf("payload = %v", got)
	}
}

func TestDiscordSenderReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v", err)
	}
}
