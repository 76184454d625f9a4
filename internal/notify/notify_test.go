package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Notify(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestEventText(t *testing.T) {
	ev := Event{
		Kind:    KindPositionClosed,
		Subject: "MINT",
		Symbol:  "CAT",
		Message: "exit profit",
		Fields:  map[string]string{"pnl_percent": "52.0", "exit": "sig"},
	}
	want := "POSITION CLOSED CAT (MINT)\nexit profit\nexit: sig\npnl_percent: 52.0"
	if got := ev.Text(); got != want {
		t.Fatalf("text=%q\nwant=%q", got, want)
	}
}

func TestMultiJoinsErrorsAndDeliversAll(t *testing.T) {
	a := &recorder{err: errors.New("a down")}
	b := &recorder{}
	err := Multi{a, nil, b}.Notify(context.Background(), Event{Kind: KindBatchSummary})
	if err == nil || !strings.Contains(err.Error(), "a down") {
		t.Fatalf("err=%v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("deliveries a=%d b=%d", len(a.events), len(b.events))
	}
}

func TestLogNotifierLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	n := Log{Logger: zap.New(core)}
	_ = n.Notify(context.Background(), Event{Kind: KindPositionFailed, Message: "buy failed"})
	_ = n.Notify(context.Background(), Event{Kind: KindPositionOpened, Message: "opened"})
	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries=%d want=2", len(entries))
	}
	if entries[0].Level != zap.WarnLevel || entries[1].Level != zap.InfoLevel {
		t.Fatalf("levels=%s,%s", entries[0].Level, entries[1].Level)
	}
}

func TestSendStampsTime(t *testing.T) {
	r := &recorder{}
	Send(r, nil, Event{Kind: KindTargetAdmitted})
	if len(r.events) != 1 || r.events[0].At.IsZero() {
		t.Fatalf("events=%+v", r.events)
	}
	Send(nil, nil, Event{})
}

func TestPaaSClientLogsInOnceAndPostsLogs(t *testing.T) {
	var logins, posts atomic.Int32
	var last CreateLogRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			logins.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"token":      "tok",
				"expires_at": time.Now().Add(time.Hour).Format(time.RFC3339),
			})
		case "/api/v1/logs":
			posts.Add(1)
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewDecoder(r.Body).Decode(&last)
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := &PaaSClient{BaseURL: srv.URL + "/", APIKey: "k"}
	for i := 0; i < 2; i++ {
		if err := c.Notify(context.Background(), Event{Kind: KindPositionOpened, Subject: "MINT"}); err != nil {
			t.Fatalf("Notify err=%v", err)
		}
	}
	if logins.Load() != 1 || posts.Load() != 2 {
		t.Fatalf("logins=%d posts=%d", logins.Load(), posts.Load())
	}
	if last.Agent != "solsniper" || last.Action != "sniper_position_opened" || last.Details["subject"] != "MINT" {
		t.Fatalf("last=%+v", last)
	}
}

func TestPaaSClientRequiresConfig(t *testing.T) {
	c := &PaaSClient{}
	if err := c.Login(context.Background()); err == nil {
		t.Fatalf("expected error without base url")
	}
	c.BaseURL = "http://127.0.0.1:1"
	if err := c.Login(context.Background()); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestNewTelegramValidates(t *testing.T) {
	if _, err := NewTelegram("", 1); err == nil {
		t.Fatalf("expected error for empty token")
	}
	if _, err := NewTelegram("123:abc", 0); err == nil {
		t.Fatalf("expected error for empty chat id")
	}
}
