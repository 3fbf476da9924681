package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	msg := Message{Subject: "Price alert @ 2026-10-18 12:20", Body: "HAY2201=$1200.00"}

	if err := notifier.Send(context.Background(), msg); err != nil {
		t.Fatalf("telegram send should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "HAY2201=$1200.00") {
		t.Fatalf("text should carry the alert body: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	err := notifier.Send(context.Background(), Message{Body: "x"})
	if !errors.Is(err, ErrSend) {
		t.Fatalf("ok=false should be a send error, got %v", err)
	}
}

func TestTelegramNotifierUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	notifier := NewTelegramNotifier("token", "chat", url, time.Second, testLogger())
	if err := notifier.Send(context.Background(), Message{Body: "x"}); !errors.Is(err, ErrConnection) {
		t.Fatalf("closed server should be a connection error, got %v", err)
	}
}

type recordingNotifier struct {
	sent []Message
	err  error
}

func (r *recordingNotifier) Send(ctx context.Context, msg Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestMultiSendsToAll(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{err: ErrSend}
	err := Multi{a, b}.Send(context.Background(), Message{Body: "x"})
	if !errors.Is(err, ErrSend) {
		t.Fatalf("expected joined send error, got %v", err)
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Fatalf("every notifier should be called")
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
