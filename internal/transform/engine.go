package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/okrsync/internal/initiative"
	"github.com/MikeSquared-Agency/okrsync/internal/llm"
	"github.com/MikeSquared-Agency/okrsync/internal/objectstore"
)

const defaultMaxTokens = 8192

// CombineMode controls how a named input is folded into the instruction.
type CombineMode string

// CombineEvents substitutes the whole current text of the named object.
const CombineEvents CombineMode = "combine_events"

type Input struct {
	Name string      `json:"input_object_name"`
	Mode CombineMode `json:"mode"`
}

// Request mirrors an apply-prompt call: placeholders like {initiatives_csv}
// in Instruction are replaced by the inputs' current content and the result
// is written under Outputs.
type Request struct {
	Outputs     []string `json:"created_object_names"`
	Instruction string   `json:"prompt_string"`
	Inputs      []Input  `json:"inputs"`
}

// Engine applies natural-language instructions to staged objects with an LLM.
type Engine struct {
	store     objectstore.Store
	llm       llm.Completer
	logger    *slog.Logger
	maxTokens int
}

func New(store objectstore.Store, completer llm.Completer, logger *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		llm:       completer,
		logger:    logger,
		maxTokens: defaultMaxTokens,
	}
}

// Apply runs one transformation and stages its output.
func (e *Engine) Apply(ctx context.Context, req Request) error {
	if len(req.Outputs) == 0 {
		return fmt.Errorf("transform: no output names")
	}

	prompt, err := e.render(ctx, req)
	if err != nil {
		return err
	}

	e.logger.Info("applying transformation",
		"outputs", req.Outputs,
		"inputs", len(req.Inputs),
		"prompt_len", len(prompt),
	)

	raw, err := e.llm.Complete(ctx, systemPrompt, []llm.Message{
		{Role: llm.RoleUser, Content: prompt + outputSuffix(req.Outputs)},
	}, e.maxTokens)
	if err != nil {
		return fmt.Errorf("llm transform: %w", err)
	}
	out := initiative.StripFences(raw)

	if len(req.Outputs) == 1 {
		if err := e.store.Put(ctx, req.Outputs[0], out); err != nil {
			return fmt.Errorf("stage %s: %w", req.Outputs[0], err)
		}
		return nil
	}

	var byName map[string]json.RawMessage
	if err := json.Unmarshal([]byte(out), &byName); err != nil {
		e.logger.Error("failed to parse multi-output transformation", "error", err, "raw", raw)
		return fmt.Errorf("parse outputs: %w", err)
	}
	for _, name := range req.Outputs {
		value, ok := byName[name]
		if !ok {
			return fmt.Errorf("transform output %s missing", name)
		}
		if err := e.store.Put(ctx, name, outputText(value)); err != nil {
			return fmt.Errorf("stage %s: %w", name, err)
		}
	}
	return nil
}

func (e *Engine) render(ctx context.Context, req Request) (string, error) {
	// All placeholders are replaced in one pass so staged text that happens
	// to contain "{name}" is never substituted again.
	pairs := make([]string, 0, 2*len(req.Inputs))
	for _, in := range req.Inputs {
		mode := in.Mode
		if mode == "" {
			mode = CombineEvents
		}
		if mode != CombineEvents {
			return "", fmt.Errorf("input %s: unsupported combine mode %q", in.Name, in.Mode)
		}

		placeholder := "{" + in.Name + "}"
		if !strings.Contains(req.Instruction, placeholder) {
			return "", fmt.Errorf("input %s has no placeholder in instruction", in.Name)
		}

		text, err := e.store.Get(ctx, in.Name)
		if err != nil {
			if !errors.Is(err, objectstore.ErrNotFound) {
				return "", fmt.Errorf("read input %s: %w", in.Name, err)
			}
			e.logger.Warn("transformation input not staged, substituting empty text", "input", in.Name)
			text = ""
		}
		pairs = append(pairs, placeholder, text)
	}
	return strings.NewReplacer(pairs...).Replace(req.Instruction), nil
}

func outputSuffix(outputs []string) string {
	if len(outputs) == 1 {
		return singleOutputSuffix
	}
	return fmt.Sprintf(multiOutputSuffix, strings.Join(outputs, ", "))
}

// outputText keeps JSON strings verbatim and re-encodes anything else.
func outputText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
