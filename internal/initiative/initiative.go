// Package initiative defines the tracked initiative record and the rules that
// keep a snapshot canonical: status normalization, progress bounds, and
// identity uniqueness.
package initiative

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrDecode marks structured output that could not be read as initiatives.
var ErrDecode = errors.New("decode initiatives")

// Status is the three-value rendering enumeration. The zero value means the
// source gave no status.
type Status string

const (
	StatusUnknown Status = ""
	StatusOnTrack Status = "on_track"
	StatusAtRisk  Status = "at_risk"
	StatusBlocked Status = "blocked"
)

var statusSynonyms = map[string]Status{
	"on_track":  StatusOnTrack,
	"ontrack":   StatusOnTrack,
	"green":     StatusOnTrack,
	"good":      StatusOnTrack,
	"on_target": StatusOnTrack,
	"at_risk":   StatusAtRisk,
	"atrisk":    StatusAtRisk,
	"risk":      StatusAtRisk,
	"amber":     StatusAtRisk,
	"yellow":    StatusAtRisk,
	"delayed":   StatusAtRisk,
	"blocked":   StatusBlocked,
	"red":       StatusBlocked,
	"stuck":     StatusBlocked,
	"off_track": StatusBlocked,
}

// ParseStatus folds case, whitespace and separators and maps known synonyms.
// Empty input yields StatusUnknown; any other unmapped value is an error.
func ParseStatus(raw string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return StatusUnknown, nil
	}
	key = strings.Join(strings.FieldsFunc(key, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
	if s, ok := statusSynonyms[key]; ok {
		return s, nil
	}
	return StatusUnknown, fmt.Errorf("%w: unrecognized status %q", ErrDecode, raw)
}

// Label is the human form used in tables, e.g. "on track".
func (s Status) Label() string {
	if s == StatusUnknown {
		return "unknown"
	}
	return strings.ReplaceAll(string(s), "_", " ")
}

// Progress is a completion percentage in [0, 100]. It decodes from a JSON
// number or a numeric string with an optional trailing percent sign.
type Progress float64

func (p *Progress) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*p = Progress(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("progress must be a number or string: %s", data)
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		*p = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("progress %q is not numeric", s)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("progress %q is not a finite number", s)
	}
	*p = Progress(n)
	return nil
}

func (p Progress) String() string {
	return strconv.FormatFloat(float64(p), 'f', -1, 64)
}

// Initiative is a tracked strategic work item.
type Initiative struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Owner       string   `json:"owner"`
	Status      Status   `json:"status"`
	Progress    Progress `json:"progress_percentage"`
	DueDate     string   `json:"due_date"`
	Description string   `json:"description"`
	RelatedOKR  string   `json:"related_okr"`
	Blockers    string   `json:"blockers,omitempty"`
}

// Identity is the explicit id, or the name when no id was supplied.
func (i Initiative) Identity() string {
	if id := strings.TrimSpace(i.ID); id != "" {
		return id
	}
	return strings.TrimSpace(i.Name)
}

// HasBlockers reports whether the blockers affordance should be shown.
func (i Initiative) HasBlockers() bool {
	return strings.TrimSpace(i.Blockers) != ""
}

// Identities lists snapshot identities in order.
func Identities(items []Initiative) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.Identity()
	}
	return ids
}

// Clone returns an independent copy of a snapshot.
func Clone(items []Initiative) []Initiative {
	if items == nil {
		return nil
	}
	out := make([]Initiative, len(items))
	copy(out, items)
	return out
}

// wireInitiative accepts the loose shapes engines return: status as free text
// and alternative keys for identity and progress.
type wireInitiative struct {
	ID                 json.RawMessage `json:"id"`
	InitiativeID       json.RawMessage `json:"initiative_id"`
	Name               string          `json:"name"`
	InitiativeName     string          `json:"initiative_name"`
	Owner              string          `json:"owner"`
	Status             string          `json:"status"`
	ProgressPercentage *Progress       `json:"progress_percentage"`
	ProgressAlt        *Progress       `json:"progress"`
	DueDate            string          `json:"due_date"`
	Description        string          `json:"description"`
	RelatedOKR         string          `json:"related_okr"`
	Blockers           json.RawMessage `json:"blockers"`
	Notes              string          `json:"notes"`
}

func (w wireInitiative) hasProgress() bool {
	return w.ProgressPercentage != nil || w.ProgressAlt != nil
}

func (w wireInitiative) normalize() (Initiative, error) {
	it := Initiative{
		ID:          rawText(w.ID),
		Name:        strings.TrimSpace(w.Name),
		Owner:       strings.TrimSpace(w.Owner),
		DueDate:     strings.TrimSpace(w.DueDate),
		Description: w.Description,
		RelatedOKR:  w.RelatedOKR,
		Blockers:    rawText(w.Blockers),
	}
	if it.ID == "" {
		it.ID = rawText(w.InitiativeID)
	}
	if it.Name == "" {
		it.Name = strings.TrimSpace(w.InitiativeName)
	}
	if it.Description == "" {
		it.Description = w.Notes
	}

	status, err := ParseStatus(w.Status)
	if err != nil {
		return Initiative{}, err
	}
	it.Status = status

	switch {
	case w.ProgressPercentage != nil:
		it.Progress = *w.ProgressPercentage
	case w.ProgressAlt != nil:
		it.Progress = *w.ProgressAlt
	}
	if !(it.Progress >= 0 && it.Progress <= 100) {
		return Initiative{}, fmt.Errorf("%w: progress %s out of range for %q", ErrDecode, it.Progress, it.Identity())
	}

	if it.Identity() == "" {
		return Initiative{}, fmt.Errorf("%w: initiative without id or name", ErrDecode)
	}
	return it, nil
}

// rawText renders a loosely typed JSON value as text: strings verbatim,
// numbers as written, arrays of strings joined with "; ".
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.TrimSpace(strings.Join(list, "; "))
	}
	return strings.TrimSpace(string(raw))
}
