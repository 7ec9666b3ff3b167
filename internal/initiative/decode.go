package initiative

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Decode reads engine output into a canonical snapshot. It accepts an array,
// a double-encoded JSON string, an object wrapping the array, or a single
// object, optionally inside markdown code fences.
func Decode(text string) ([]Initiative, error) {
	payload := StripFences(text)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	wires, err := decodeWire([]byte(payload), 0)
	if err != nil {
		return nil, err
	}

	records := make([]record, 0, len(wires))
	for i, w := range wires {
		it, err := w.normalize()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, record{Initiative: it, hasProgress: w.hasProgress()})
	}
	return dedupe(records), nil
}

// record is a normalized initiative plus what the engine actually supplied.
type record struct {
	Initiative
	hasProgress bool
}

func decodeWire(data []byte, depth int) ([]wireInitiative, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	switch data[0] {
	case '[':
		var list []wireInitiative
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return list, nil

	case '"':
		// Engines sometimes return the array as a JSON string.
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil || depth > 0 {
			return nil, fmt.Errorf("%w: string payload is not JSON", ErrDecode)
		}
		return decodeWire([]byte(StripFences(inner)), depth+1)

	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		for _, key := range []string{"initiatives", "data", "items", "value"} {
			if inner, ok := wrapper[key]; ok {
				trimmed := bytes.TrimSpace(inner)
				if len(trimmed) > 0 && trimmed[0] == '[' {
					return decodeWire(trimmed, depth)
				}
			}
		}
		// A single initiative becomes a one-element snapshot.
		var single wireInitiative
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return []wireInitiative{single}, nil
	}

	return nil, fmt.Errorf("%w: payload is not JSON", ErrDecode)
}

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// dedupe collapses repeated identities into the first occurrence. Later
// non-empty fields overwrite earlier ones; order of first appearance holds.
// The identity a record was indexed under never changes.
func dedupe(records []record) []Initiative {
	out := make([]Initiative, 0, len(records))
	index := make(map[string]int, len(records))
	for _, r := range records {
		key := r.Identity()
		pos, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, r.Initiative)
			continue
		}
		out[pos] = overlay(out[pos], r)
	}
	return out
}

func overlay(base Initiative, next record) Initiative {
	key := base.Identity()
	// A name-keyed record adopts the id it was matched by, so renaming it
	// does not move its identity.
	if strings.TrimSpace(base.ID) == "" && strings.TrimSpace(next.ID) != "" {
		base.ID = next.ID
	}
	pick := func(a, b string) string {
		if strings.TrimSpace(b) != "" {
			return b
		}
		return a
	}
	base.Name = pick(base.Name, next.Name)
	base.Owner = pick(base.Owner, next.Owner)
	base.DueDate = pick(base.DueDate, next.DueDate)
	base.Description = pick(base.Description, next.Description)
	base.RelatedOKR = pick(base.RelatedOKR, next.RelatedOKR)
	base.Blockers = pick(base.Blockers, next.Blockers)
	if next.Status != StatusUnknown {
		base.Status = next.Status
	}
	if next.hasProgress {
		base.Progress = next.Progress
	}
	if base.Identity() != key {
		base.ID = key
	}
	return base
}
