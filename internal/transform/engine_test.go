package transform

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/okrsync/internal/llm"
	"github.com/MikeSquared-Agency/okrsync/internal/objectstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubCompleter struct {
	reply   string
	err     error
	prompts []string
	system  string
}

func (s *stubCompleter) Complete(_ context.Context, system string, messages []llm.Message, _ int) (string, error) {
	s.system = system
	s.prompts = append(s.prompts, messages[len(messages)-1].Content)
	return s.reply, s.err
}

func TestApply_SubstitutesInputsAndStagesOutput(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemory()
	_ = store.Put(ctx, "initiatives_data", `[{"id":"I1"}]`)
	_ = store.Put(ctx, "chat_updates", `{"initiative_name":"I1","status":"blocked"}`)

	llmStub := &stubCompleter{reply: "```json\n[{\"id\":\"I1\",\"status\":\"blocked\"}]\n```"}
	e := New(store, llmStub, discardLogger())

	err := e.Apply(ctx, Request{
		Outputs:     []string{"updated_initiatives"},
		Instruction: "Update {initiatives_data} with {chat_updates}.",
		Inputs: []Input{
			{Name: "initiatives_data", Mode: CombineEvents},
			{Name: "chat_updates", Mode: CombineEvents},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := llmStub.prompts[0]
	if !strings.HasPrefix(prompt, `Update [{"id":"I1"}] with {"initiative_name":"I1","status":"blocked"}.`) {
		t.Errorf("placeholders not substituted: %q", prompt)
	}
	if llmStub.system == "" {
		t.Error("expected system prompt")
	}

	got, err := store.Get(ctx, "updated_initiatives")
	if err != nil {
		t.Fatalf("output not staged: %v", err)
	}
	if got != `[{"id":"I1","status":"blocked"}]` {
		t.Errorf("expected fences stripped, got %q", got)
	}
}

func TestApply_StagedTextIsNotResubstituted(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemory()
	_ = store.Put(ctx, "initiatives_data", `[{"id":"I1","description":"see {chat_updates}"}]`)
	_ = store.Put(ctx, "chat_updates", `{"initiative_name":"I1"}`)

	llmStub := &stubCompleter{reply: `[]`}
	e := New(store, llmStub, discardLogger())

	err := e.Apply(ctx, Request{
		Outputs:     []string{"updated_initiatives"},
		Instruction: "Update {initiatives_data} with {chat_updates}.",
		Inputs: []Input{
			{Name: "initiatives_data", Mode: CombineEvents},
			{Name: "chat_updates", Mode: CombineEvents},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `Update [{"id":"I1","description":"see {chat_updates}"}] with {"initiative_name":"I1"}.`
	if !strings.HasPrefix(llmStub.prompts[0], want) {
		t.Errorf("expected staged text kept verbatim, got %q", llmStub.prompts[0])
	}
}

func TestApply_MissingInputSubstitutesEmpty(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemory()
	llmStub := &stubCompleter{reply: "[]"}
	e := New(store, llmStub, discardLogger())

	err := e.Apply(ctx, Request{
		Outputs:     []string{"out"},
		Instruction: "Parse <{initiatives_csv}>",
		Inputs:      []Input{{Name: "initiatives_csv"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(llmStub.prompts[0], "Parse <>") {
		t.Errorf("expected empty substitution, got %q", llmStub.prompts[0])
	}
}

func TestApply_MultipleOutputs(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemory()
	llmStub := &stubCompleter{reply: `{"summary":"two blocked","items":[{"id":"I1"}]}`}
	e := New(store, llmStub, discardLogger())

	err := e.Apply(ctx, Request{Outputs: []string{"summary", "items"}, Instruction: "split"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := store.Get(ctx, "summary"); got != "two blocked" {
		t.Errorf("expected string output verbatim, got %q", got)
	}
	if got, _ := store.Get(ctx, "items"); got != `[{"id":"I1"}]` {
		t.Errorf("expected JSON output re-encoded, got %q", got)
	}
	if !strings.Contains(llmStub.prompts[0], "summary, items") {
		t.Errorf("expected output names in prompt, got %q", llmStub.prompts[0])
	}
}

func TestApply_MultipleOutputsMissingKey(t *testing.T) {
	e := New(objectstore.NewMemory(), &stubCompleter{reply: `{"summary":"x"}`}, discardLogger())
	if err := e.Apply(context.Background(), Request{Outputs: []string{"summary", "items"}, Instruction: "split"}); err == nil {
		t.Fatal("expected error for missing output key")
	}
}

func TestApply_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no outputs", func(t *testing.T) {
		e := New(objectstore.NewMemory(), &stubCompleter{}, discardLogger())
		if err := e.Apply(ctx, Request{Instruction: "x"}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		e := New(objectstore.NewMemory(), &stubCompleter{}, discardLogger())
		err := e.Apply(ctx, Request{Outputs: []string{"o"}, Instruction: "{a}", Inputs: []Input{{Name: "a", Mode: "per_event"}}})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("missing placeholder", func(t *testing.T) {
		e := New(objectstore.NewMemory(), &stubCompleter{}, discardLogger())
		err := e.Apply(ctx, Request{Outputs: []string{"o"}, Instruction: "no placeholder", Inputs: []Input{{Name: "a"}}})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("llm failure leaves output unstaged", func(t *testing.T) {
		store := objectstore.NewMemory()
		e := New(store, &stubCompleter{err: errors.New("overloaded")}, discardLogger())
		if err := e.Apply(ctx, Request{Outputs: []string{"o"}, Instruction: "x"}); err == nil {
			t.Fatal("expected error")
		}
		if _, err := store.Get(ctx, "o"); !errors.Is(err, objectstore.ErrNotFound) {
			t.Fatalf("expected output absent, got %v", err)
		}
	})
}
