package pipeline

import (
	"encoding/json"
	"strings"
)

// UpdateDetector decides whether an assistant reply carries a structured
// update worth merging.
type UpdateDetector interface {
	Detect(reply string) bool
}

// UpdateDetectorFunc adapts a plain function to UpdateDetector.
type UpdateDetectorFunc func(reply string) bool

func (f UpdateDetectorFunc) Detect(reply string) bool { return f(reply) }

// BraceDetector fires when the reply contains both an opening and a closing
// brace. False positives are expected; the engine receives the whole reply.
var BraceDetector UpdateDetector = UpdateDetectorFunc(func(reply string) bool {
	return strings.Contains(reply, "{") && strings.Contains(reply, "}")
})

// JSONDetector fires only when some brace-delimited span of the reply decodes
// as a JSON object.
var JSONDetector UpdateDetector = UpdateDetectorFunc(func(reply string) bool {
	for start := strings.IndexByte(reply, '{'); start >= 0; {
		dec := json.NewDecoder(strings.NewReader(reply[start:]))
		var obj map[string]json.RawMessage
		if dec.Decode(&obj) == nil {
			return true
		}
		next := strings.IndexByte(reply[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return false
})
