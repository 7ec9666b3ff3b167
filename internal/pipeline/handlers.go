package pipeline

import (
	"context"
	"encoding/json"

	"github.com/MikeSquared-Agency/okrsync/internal/hermes"
)

// HandleCSVUploaded ingests a CSV document received on the event bus.
func (p *Pipeline) HandleCSVUploaded(subject string, data []byte) {
	var evt hermes.CSVUploaded
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Warn("failed to parse csv upload event", "subject", subject, "error", err)
		return
	}

	items, err := p.Ingest(context.Background(), evt.CSV)
	if err != nil {
		p.logger.Error("failed to ingest csv from event", "source", evt.Source, "error", err)
		return
	}

	p.logger.Info("csv ingested from event",
		"source", evt.Source,
		"initiatives", len(items),
	)
}

// HandleChatUtterance runs one chat turn for an utterance received on the
// event bus. The reply is published by Converse.
func (p *Pipeline) HandleChatUtterance(subject string, data []byte) {
	var evt hermes.ChatUtterance
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Warn("failed to parse chat utterance event", "subject", subject, "error", err)
		return
	}

	if _, err := p.Converse(context.Background(), evt.Message); err != nil {
		p.logger.Error("failed to handle chat utterance", "user", evt.User, "error", err)
	}
}
