package pipeline

import (
	"context"
	"strings"

	"github.com/MikeSquared-Agency/okrsync/internal/initiative"
	"github.com/MikeSquared-Agency/okrsync/internal/objectstore"
	"github.com/MikeSquared-Agency/okrsync/internal/transform"
)

const (
	stageStart  = "start"
	stageIngest = "ingest"
	stageChat   = "chat"
	stageMerge  = "merge"
	stageReload = "reload"
	stageClear  = "clear"
)

func parseRequest() transform.Request {
	return transform.Request{
		Outputs:     []string{objectstore.InitiativesData},
		Instruction: parseInstruction,
		Inputs:      []transform.Input{{Name: objectstore.InitiativesCSV, Mode: transform.CombineEvents}},
	}
}

// Ingest turns raw CSV text into a new snapshot. On any failure the previous
// snapshot stays installed, the progress returns to the upload step with the
// error recorded, and the classified defect is returned.
func (p *Pipeline) Ingest(ctx context.Context, csv string) ([]initiative.Initiative, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, ErrEmptyCSV
	}

	p.op.Lock()
	defer p.op.Unlock()

	p.logger.Info("ingesting initiatives csv", "bytes", len(csv))
	p.setProgress(StepProcessing, 0, "")

	items, err := p.ingest(ctx, csv)
	if err != nil {
		p.logger.Error("ingest failed", "kind", KindOf(err), "error", err)
		p.setProgress(StepUpload, 0, err.Error())
		return nil, err
	}

	p.setProgress(StepDashboard, 100, "")
	return items, nil
}

func (p *Pipeline) ingest(ctx context.Context, csv string) ([]initiative.Initiative, error) {
	if err := p.put(ctx, stageIngest, objectstore.InitiativesCSV, csv); err != nil {
		return nil, err
	}
	p.setPercent(33)

	if err := p.apply(ctx, stageIngest, parseRequest()); err != nil {
		return nil, err
	}
	p.setPercent(66)

	items, err := p.load(ctx, stageIngest, objectstore.InitiativesData)
	if err != nil {
		return nil, err
	}

	p.replace(ctx, items, stageIngest)
	return initiative.Clone(items), nil
}

// Reload rebuilds the snapshot from the staged initiatives_data object.
func (p *Pipeline) Reload(ctx context.Context) ([]initiative.Initiative, error) {
	p.op.Lock()
	defer p.op.Unlock()

	items, err := p.load(ctx, stageReload, objectstore.InitiativesData)
	if err != nil {
		p.logger.Error("reload failed", "kind", KindOf(err), "error", err)
		return nil, err
	}
	p.replace(ctx, items, stageReload)
	return initiative.Clone(items), nil
}
