package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/okrsync/internal/objectstore"
	"github.com/MikeSquared-Agency/okrsync/internal/transform"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEngine parses CSV positionally and merges the first JSON object found
// in chat_updates into initiatives_data.
type fakeEngine struct {
	store objectstore.Store

	mu        sync.Mutex
	requests  []transform.Request
	parseErr  error
	mergeErr  error
	mergeText string

	entered chan struct{}
	release chan struct{}
}

func (f *fakeEngine) Apply(ctx context.Context, req transform.Request) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	switch req.Outputs[0] {
	case objectstore.InitiativesData:
		if f.parseErr != nil {
			return f.parseErr
		}
		return f.parse(ctx)
	case objectstore.UpdatedInitiatives:
		if f.mergeErr != nil {
			return f.mergeErr
		}
		return f.merge(ctx)
	}
	return errors.New("fake engine: unexpected output " + req.Outputs[0])
}

func (f *fakeEngine) count(output string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Outputs[0] == output {
			n++
		}
	}
	return n
}

func (f *fakeEngine) parse(ctx context.Context) error {
	text, err := f.store.Get(ctx, objectstore.InitiativesCSV)
	if err != nil {
		return err
	}
	rows, err := csv.NewReader(strings.NewReader(text)).ReadAll()
	if err != nil {
		return err
	}

	var out []map[string]any
	for _, row := range rows[1:] {
		for len(row) < 7 {
			row = append(row, "")
		}
		progress, _ := strconv.ParseFloat(row[3], 64)
		out = append(out, map[string]any{
			"id":                  row[0],
			"owner":               row[1],
			"status":              row[2],
			"progress_percentage": progress,
			"due_date":            row[4],
			"description":         row[5],
			"related_okr":         row[6],
		})
	}
	b, _ := json.Marshal(out)
	return f.store.Put(ctx, objectstore.InitiativesData, string(b))
}

func (f *fakeEngine) merge(ctx context.Context) error {
	if f.mergeText != "" {
		return f.store.Put(ctx, objectstore.UpdatedInitiatives, f.mergeText)
	}

	data, err := f.store.Get(ctx, objectstore.InitiativesData)
	if err != nil {
		return err
	}
	reply, err := f.store.Get(ctx, objectstore.ChatUpdates)
	if err != nil {
		return err
	}

	var items []map[string]any
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return err
	}

	var update map[string]any
	start, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}")
	if start >= 0 && end > start {
		_ = json.Unmarshal([]byte(reply[start:end+1]), &update)
	}
	target, _ := update["initiative_name"].(string)

	for _, it := range items {
		if it["id"] != target && it["name"] != target {
			continue
		}
		for _, key := range []string{"status", "blockers", "progress_percentage"} {
			if v, ok := update[key]; ok {
				it[key] = v
			}
		}
	}
	b, _ := json.Marshal(items)
	return f.store.Put(ctx, objectstore.UpdatedInitiatives, string(b))
}

type fakeAgent struct {
	createErr error
	reply     func(message string) (string, error)

	mu       sync.Mutex
	messages []string
}

func (a *fakeAgent) Create(_ context.Context, _, _ string) (string, error) {
	if a.createErr != nil {
		return "", a.createErr
	}
	return "agent-1", nil
}

func (a *fakeAgent) Turn(_ context.Context, _ string, message string) (string, error) {
	a.mu.Lock()
	a.messages = append(a.messages, message)
	a.mu.Unlock()
	if a.reply == nil {
		return "ok", nil
	}
	return a.reply(message)
}

func replyWith(text string) func(string) (string, error) {
	return func(string) (string, error) { return text, nil }
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (r *recordingPublisher) Publish(subject string, _ any) error {
	r.mu.Lock()
	r.subjects = append(r.subjects, subject)
	r.mu.Unlock()
	return nil
}

func (r *recordingPublisher) count(subject string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

// failingDeleteStore wraps a store and refuses to delete one name.
type failingDeleteStore struct {
	objectstore.Store
	failName string
}

func (s *failingDeleteStore) Delete(ctx context.Context, name string) error {
	if name == s.failName {
		return errors.New("connection reset")
	}
	return s.Store.Delete(ctx, name)
}

// cancelOnReadStore cancels the caller's context once a read of name returns
// trigger, as when a client disconnects mid-operation.
type cancelOnReadStore struct {
	objectstore.Store
	name    string
	trigger string
	cancel  context.CancelFunc
}

func (s *cancelOnReadStore) Get(ctx context.Context, name string) (string, error) {
	text, err := s.Store.Get(ctx, name)
	if err == nil && name == s.name && text == s.trigger {
		s.cancel()
	}
	return text, err
}

type harness struct {
	store     *objectstore.Memory
	engine    *fakeEngine
	agent     *fakeAgent
	publisher *recordingPublisher
	pipeline  *Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := objectstore.NewMemory()
	h := &harness{
		store:     store,
		engine:    &fakeEngine{store: store},
		agent:     &fakeAgent{},
		publisher: &recordingPublisher{},
	}
	h.pipeline = New(Deps{
		Store:       store,
		Engine:      h.engine,
		Agent:       h.agent,
		Publisher:   h.publisher,
		CallTimeout: 5 * time.Second,
		Logger:      discardLogger(),
	})
	if err := h.pipeline.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return h
}
