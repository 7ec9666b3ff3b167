package hermes

import (
	"time"

	"github.com/MikeSquared-Agency/okrsync/internal/initiative"
)

// Inbound subjects.
const (
	SubjectCSVUploaded   = "okr.csv.uploaded"
	SubjectChatUtterance = "okr.chat.utterance"
)

// Outbound subjects.
const (
	SubjectIngestProgress   = "okr.ingest.progress"
	SubjectSnapshotReplaced = "okr.snapshot.replaced"
	SubjectChatReply        = "okr.chat.reply"
	SubjectRegistered       = "okrsync.registered"
)

// CSVUploaded asks the service to ingest a CSV document.
type CSVUploaded struct {
	CSV    string `json:"csv"`
	Source string `json:"source,omitempty"`
}

// ChatUtterance carries one free-text status update from a user.
type ChatUtterance struct {
	Message string `json:"message"`
	User    string `json:"user,omitempty"`
}

// ChatReply is emitted after every successful agent turn.
type ChatReply struct {
	Utterance string `json:"utterance"`
	Reply     string `json:"reply"`
	Merged    bool   `json:"merged"`
}

// SnapshotReplaced is emitted whenever a new snapshot is installed.
type SnapshotReplaced struct {
	Source     string              `json:"source"`
	Count      int                 `json:"count"`
	Identities []string            `json:"identities"`
	Changes    []initiative.Change `json:"changes,omitempty"`
	ReplacedAt time.Time           `json:"replaced_at"`
}

// Registered announces the service on startup.
type Registered struct {
	Service     string   `json:"service"`
	Version     string   `json:"version"`
	Subscribes  []string `json:"subscribes"`
	Publishes   []string `json:"publishes"`
	ChatEnabled bool     `json:"chat_enabled"`
}
