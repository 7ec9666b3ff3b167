package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/okrsync/internal/calllog"
	"github.com/MikeSquared-Agency/okrsync/internal/initiative"
	"github.com/MikeSquared-Agency/okrsync/internal/transform"
)

// Every collaborator call goes through one of these helpers: it runs under
// the call timeout, is recorded in the call log, and comes back classified.

func (p *Pipeline) record(ctx context.Context, method, endpoint string, req, resp any, err error, start time.Time) {
	e := calllog.Entry{
		Method:     method,
		Endpoint:   endpoint,
		Request:    req,
		Response:   resp,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
		e.Response = nil
	}
	p.calls.Record(ctx, e)
}

func (p *Pipeline) put(ctx context.Context, stage, name, text string) error {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	start := time.Now()
	err := p.store.Put(callCtx, name, text)
	p.record(ctx, "POST", "/input_data",
		map[string]any{"created_object_name": name, "data_type": "strings", "input_data": []string{text}},
		map[string]any{"created_object_name": name, "stored_bytes": len(text)},
		err, start)
	if err != nil {
		return classify(stage, fmt.Errorf("stage %s: %w", name, err))
	}
	return nil
}

func (p *Pipeline) get(ctx context.Context, stage, name string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	start := time.Now()
	text, err := p.store.Get(callCtx, name)
	p.record(ctx, "POST", "/return_data",
		map[string]any{"object_name": name, "return_type": "json"},
		map[string]any{"value": text},
		err, start)
	if err != nil {
		return "", classify(stage, fmt.Errorf("read %s: %w", name, err))
	}
	return text, nil
}

func (p *Pipeline) remove(ctx context.Context, stage, name string) error {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	start := time.Now()
	err := p.store.Delete(callCtx, name)
	p.record(ctx, "DELETE", "/objects/"+name, nil, map[string]any{"deleted": name}, err, start)
	if err != nil {
		return classify(stage, fmt.Errorf("delete %s: %w", name, err))
	}
	return nil
}

func (p *Pipeline) apply(ctx context.Context, stage string, req transform.Request) error {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	start := time.Now()
	err := p.engine.Apply(callCtx, req)
	p.record(ctx, "POST", "/apply_prompt", req,
		map[string]any{"created_object_names": req.Outputs},
		err, start)
	if err != nil {
		return classify(stage, fmt.Errorf("apply prompt: %w", err))
	}
	return nil
}

func (p *Pipeline) createAgent(ctx context.Context) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	start := time.Now()
	id, err := p.agent.Create(callCtx, agentInstructions, agentName)
	p.record(ctx, "POST", "/create-agent",
		map[string]any{"instructions": agentInstructions, "agent_name": agentName},
		map[string]any{"agent_id": id},
		err, start)
	if err != nil {
		return "", classify(stageStart, fmt.Errorf("create agent: %w", err))
	}
	return id, nil
}

func (p *Pipeline) turn(ctx context.Context, agentID, message string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	start := time.Now()
	reply, err := p.agent.Turn(callCtx, agentID, message)
	p.record(ctx, "POST", "/chat",
		map[string]any{"agent_id": agentID, "message": message},
		map[string]any{"response": reply},
		err, start)
	if err != nil {
		// Agent failures are transport defects regardless of their cause.
		return "", &Defect{Kind: DefectTransport, Stage: stageChat, Err: fmt.Errorf("chat turn: %w", err)}
	}
	return reply, nil
}

// load reads a staged object and decodes it into a snapshot.
func (p *Pipeline) load(ctx context.Context, stage, name string) ([]initiative.Initiative, error) {
	text, err := p.get(ctx, stage, name)
	if err != nil {
		return nil, err
	}
	items, err := initiative.Decode(text)
	if err != nil {
		return nil, classify(stage, fmt.Errorf("decode %s: %w", name, err))
	}
	return items, nil
}
