package pipeline

import (
	"errors"
	"fmt"

	"github.com/MikeSquared-Agency/okrsync/internal/initiative"
	"github.com/MikeSquared-Agency/okrsync/internal/objectstore"
)

type DefectKind string

const (
	DefectTransport DefectKind = "transport"
	DefectDecode    DefectKind = "decode"
	DefectNotFound  DefectKind = "not_found"
)

// Defect is a classified boundary failure. Stage names the pipeline
// operation that hit it (ingest, merge, reload, chat, start).
type Defect struct {
	Kind  DefectKind
	Stage string
	Err   error
}

func (d *Defect) Error() string {
	return fmt.Sprintf("%s: %s defect: %v", d.Stage, d.Kind, d.Err)
}

func (d *Defect) Unwrap() error { return d.Err }

// KindOf returns the defect kind carried by err, or "" when err is not a
// Defect.
func KindOf(err error) DefectKind {
	var d *Defect
	if errors.As(err, &d) {
		return d.Kind
	}
	return ""
}

func classify(stage string, err error) *Defect {
	var d *Defect
	if errors.As(err, &d) {
		return d
	}
	kind := DefectTransport
	switch {
	case errors.Is(err, objectstore.ErrNotFound):
		kind = DefectNotFound
	case errors.Is(err, initiative.ErrDecode):
		kind = DefectDecode
	}
	return &Defect{Kind: kind, Stage: stage, Err: err}
}
