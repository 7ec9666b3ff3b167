package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/okrsync/internal/initiative"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFormatDigest(t *testing.T) {
	changes := []initiative.Change{
		{
			Identity: "I1",
			Kind:     initiative.ChangeUpdated,
			Fields:   []string{"status", "blockers"},
			After:    initiative.Initiative{ID: "I1", Status: initiative.StatusBlocked, Progress: 40, Blockers: "waiting on legal"},
		},
		{
			Identity: "I2",
			Kind:     initiative.ChangeAdded,
			After:    initiative.Initiative{ID: "I2", Status: initiative.StatusOnTrack, Progress: 5},
		},
		{Identity: "I3", Kind: initiative.ChangeRemoved, After: initiative.Initiative{ID: "I3"}},
	}

	msg := formatDigest(changes)

	checks := []string{
		"Initiative updates: 3",
		":red_circle: *I1* now blocked, 40% (status, blockers)",
		"Blockers: waiting on legal",
		":new: *I2* (on track, 5%)",
		"*I3* removed",
	}
	for _, check := range checks {
		if !strings.Contains(msg, check) {
			t.Errorf("expected message to contain %q, got:\n%s", check, msg)
		}
	}
}

func TestFormatDigest_Truncates(t *testing.T) {
	var changes []initiative.Change
	for i := 0; i < maxDigestLines+5; i++ {
		id := fmt.Sprintf("I%d", i)
		changes = append(changes, initiative.Change{Identity: id, Kind: initiative.ChangeAdded, After: initiative.Initiative{ID: id}})
	}

	msg := formatDigest(changes)
	if !strings.Contains(msg, "and 5 more") {
		t.Errorf("expected truncation note, got:\n%s", msg)
	}
	if strings.Contains(msg, fmt.Sprintf("*I%d*", maxDigestLines)) {
		t.Error("expected changes beyond the cap to be omitted")
	}
}

func TestNotifyChanges_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("expected Bearer xoxb-test, got %q", r.Header.Get("Authorization"))
		}

		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		json.Unmarshal(body, &payload)

		if payload["channel"] != "C123" {
			t.Errorf("expected channel C123, got %v", payload["channel"])
		}
		if text, _ := payload["text"].(string); !strings.Contains(text, "I1") {
			t.Errorf("expected digest text, got %v", payload["text"])
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"ts": "1234567890.123456",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	err := p.NotifyChanges(context.Background(), []initiative.Change{
		{Identity: "I1", Kind: initiative.ChangeAdded, After: initiative.Initiative{ID: "I1"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNotifyChanges_NoChangesSkipsPost(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	if err := p.NotifyChanges(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("expected no slack call for an empty digest")
	}
}

func TestNotifyChanges_SlackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok":    false,
			"error": "channel_not_found",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	err := p.NotifyChanges(context.Background(), []initiative.Change{
		{Identity: "I1", Kind: initiative.ChangeRemoved},
	})
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected slack error, got %v", err)
	}
}
