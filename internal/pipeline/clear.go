package pipeline

import (
	"context"
	"errors"

	"github.com/MikeSquared-Agency/okrsync/internal/hermes"
	"github.com/MikeSquared-Agency/okrsync/internal/objectstore"
)

// Clear deletes every well-known object and resets the snapshot, transcript
// and progress. Each deletion is attempted independently; the joined
// failures are returned for information and never stop the reset.
func (p *Pipeline) Clear(ctx context.Context) error {
	p.op.Lock()
	defer p.op.Unlock()

	var errs []error
	for _, name := range objectstore.WellKnown {
		if err := p.remove(ctx, stageClear, name); err != nil {
			p.logger.Warn("failed to delete object during clear", "object", name, "error", err)
			errs = append(errs, err)
		}
	}

	p.mu.Lock()
	p.snapshot = nil
	p.transcript = nil
	p.progress = initialProgress()
	p.mu.Unlock()
	p.publish(hermes.SubjectIngestProgress, initialProgress())

	p.logger.Info("pipeline cleared", "delete_failures", len(errs))
	return errors.Join(errs...)
}
