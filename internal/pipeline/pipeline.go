// Package pipeline keeps the initiative snapshot in sync with CSV uploads and
// chat-derived updates. A single Pipeline owns the snapshot, the chat
// transcript and the ingest progress; every mutation goes through it.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/okrsync/internal/calllog"
	"github.com/MikeSquared-Agency/okrsync/internal/hermes"
	"github.com/MikeSquared-Agency/okrsync/internal/initiative"
	"github.com/MikeSquared-Agency/okrsync/internal/transform"
)

const defaultCallTimeout = 90 * time.Second

var (
	ErrChatDisabled   = errors.New("chat disabled: no update agent available")
	ErrEmptyCSV       = errors.New("csv upload is empty")
	ErrEmptyUtterance = errors.New("chat message is empty")
)

// ObjectStore stages named text blobs between pipeline steps.
type ObjectStore interface {
	Put(ctx context.Context, name, text string) error
	Get(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, name string) error
}

// Transformer applies an instruction with placeholders to staged objects.
type Transformer interface {
	Apply(ctx context.Context, req transform.Request) error
}

// Agent is the conversational update service.
type Agent interface {
	Create(ctx context.Context, instructions, name string) (string, error)
	Turn(ctx context.Context, agentID, message string) (string, error)
}

// Publisher emits pipeline events, e.g. on NATS.
type Publisher interface {
	Publish(subject string, data any) error
}

// Notifier receives the changes between consecutive snapshots.
type Notifier interface {
	NotifyChanges(ctx context.Context, changes []initiative.Change) error
}

type Step int

const (
	StepUpload     Step = 1
	StepProcessing Step = 2
	StepDashboard  Step = 3
)

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepProcessing:
		return "processing"
	case StepDashboard:
		return "dashboard"
	}
	return "unknown"
}

// IngestState is the progress signal of the most recent ingestion.
type IngestState struct {
	Step      Step   `json:"step"`
	StepName  string `json:"step_name"`
	Percent   int    `json:"percent"`
	LastError string `json:"last_error,omitempty"`
}

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

type ChatTurn struct {
	Speaker Speaker   `json:"speaker"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Deps wires a Pipeline to its collaborators. Publisher, Notifier, Calls and
// Detector are optional.
type Deps struct {
	Store       ObjectStore
	Engine      Transformer
	Agent       Agent
	Publisher   Publisher
	Notifier    Notifier
	Calls       *calllog.Recorder
	Detector    UpdateDetector
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// Pipeline is the synchronization coordinator.
type Pipeline struct {
	store       ObjectStore
	engine      Transformer
	agent       Agent
	publisher   Publisher
	notifier    Notifier
	calls       *calllog.Recorder
	detector    UpdateDetector
	callTimeout time.Duration
	logger      *slog.Logger

	// op serializes mutations; mu guards the state below for readers.
	op sync.Mutex

	mu         sync.RWMutex
	agentID    string
	snapshot   []initiative.Initiative
	transcript []ChatTurn
	progress   IngestState
}

func New(d Deps) *Pipeline {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Calls == nil {
		d.Calls = calllog.NewRecorder(0, nil, d.Logger)
	}
	if d.Detector == nil {
		d.Detector = BraceDetector
	}
	if d.CallTimeout <= 0 {
		d.CallTimeout = defaultCallTimeout
	}
	return &Pipeline{
		store:       d.Store,
		engine:      d.Engine,
		agent:       d.Agent,
		publisher:   d.Publisher,
		notifier:    d.Notifier,
		calls:       d.Calls,
		detector:    d.Detector,
		callTimeout: d.CallTimeout,
		logger:      d.Logger,
		progress:    initialProgress(),
	}
}

func initialProgress() IngestState {
	return IngestState{Step: StepUpload, StepName: StepUpload.String()}
}

// Start creates the update agent. A failure is logged and leaves chat
// disabled; the rest of the pipeline keeps working.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.agent == nil {
		p.logger.Warn("no update agent configured, chat disabled")
		return ErrChatDisabled
	}

	p.op.Lock()
	defer p.op.Unlock()

	id, err := p.createAgent(ctx)
	if err != nil {
		p.logger.Error("failed to create update agent, chat disabled", "error", err)
		return err
	}

	p.mu.Lock()
	p.agentID = id
	p.mu.Unlock()

	p.logger.Info("update agent ready", "agent_id", id)
	return nil
}

// Snapshot returns a copy of the current initiatives.
func (p *Pipeline) Snapshot() []initiative.Initiative {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return initiative.Clone(p.snapshot)
}

// Find looks an initiative up by identity.
func (p *Pipeline) Find(identity string) (initiative.Initiative, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, it := range p.snapshot {
		if it.Identity() == identity {
			return it, true
		}
	}
	return initiative.Initiative{}, false
}

func (p *Pipeline) Transcript() []ChatTurn {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ChatTurn, len(p.transcript))
	copy(out, p.transcript)
	return out
}

func (p *Pipeline) Progress() IngestState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progress
}

func (p *Pipeline) ChatEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.agentID != ""
}

// Calls returns the recorded boundary calls, oldest first.
func (p *Pipeline) Calls() []calllog.Entry {
	return p.calls.Entries()
}

// Export renders the snapshot as CSV.
func (p *Pipeline) Export() (string, error) {
	return initiative.ExportCSV(p.Snapshot())
}

func (p *Pipeline) setProgress(step Step, percent int, lastError string) {
	state := IngestState{Step: step, StepName: step.String(), Percent: percent, LastError: lastError}
	p.mu.Lock()
	p.progress = state
	p.mu.Unlock()
	p.publish(hermes.SubjectIngestProgress, state)
}

func (p *Pipeline) setPercent(percent int) {
	p.mu.RLock()
	step := p.progress.Step
	p.mu.RUnlock()
	p.setProgress(step, percent, "")
}

func (p *Pipeline) appendTurn(speaker Speaker, message string) {
	p.mu.Lock()
	p.transcript = append(p.transcript, ChatTurn{Speaker: speaker, Message: message, At: time.Now().UTC()})
	p.mu.Unlock()
}

// replace installs a new snapshot and announces what changed.
func (p *Pipeline) replace(ctx context.Context, items []initiative.Initiative, source string) {
	p.mu.Lock()
	before := p.snapshot
	p.snapshot = initiative.Clone(items)
	p.mu.Unlock()

	changes := initiative.Diff(before, items)
	p.logger.Info("snapshot replaced",
		"source", source,
		"initiatives", len(items),
		"changes", len(changes),
	)

	p.publish(hermes.SubjectSnapshotReplaced, hermes.SnapshotReplaced{
		Source:     source,
		Count:      len(items),
		Identities: initiative.Identities(items),
		Changes:    changes,
		ReplacedAt: time.Now().UTC(),
	})

	if p.notifier != nil && len(changes) > 0 {
		if err := p.notifier.NotifyChanges(ctx, changes); err != nil {
			p.logger.Error("failed to notify snapshot changes", "error", err)
		}
	}
}

func (p *Pipeline) publish(subject string, data any) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(subject, data); err != nil {
		p.logger.Error("failed to publish event", "subject", subject, "error", err)
	}
}
