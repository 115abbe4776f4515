// Package results accumulates probe outcomes for a run and persists them as a
// JSON (or YAML) document mapping each probe file name to its result lines.
package results

import (
	"fmt"
	"sync"

	"github.com/andresmejia3/faceid/internal/types"
)

// NoFacesMessage is the line recorded for a probe image without any face.
const NoFacesMessage = "No faces detected in the probe image."

// Line renders a single face result the way it is printed and persisted.
func Line(r types.MatchResult) string {
	switch r.Status {
	case types.Identified:
		return fmt.Sprintf("Face %d: Identified as %s (Confidence: %.2f)", r.Face, r.Label, r.Confidence)
	case types.NoMatchBelowThreshold:
		return fmt.Sprintf("Face %d: No match found (Below confidence threshold).", r.Face)
	default:
		return fmt.Sprintf("Face %d: No match found.", r.Face)
	}
}

// Lines renders every result of an outcome, or the no-faces sentinel.
func Lines(o types.ProbeOutcome) []string {
	if o.NoFaces {
		return []string{NoFacesMessage}
	}
	lines := make([]string, 0, len(o.Results))
	for _, r := range o.Results {
		lines = append(lines, Line(r))
	}
	return lines
}

// Set maps probe file names to outcomes, remembering insertion order for
// console output. It is safe for concurrent use.
type Set struct {
	mu       sync.Mutex
	order    []string
	outcomes map[string]types.ProbeOutcome
}

// NewSet returns an empty result set.
func NewSet() *Set {
	return &Set{outcomes: make(map[string]types.ProbeOutcome)}
}

// Add records the outcome for name, replacing any earlier one.
func (s *Set) Add(name string, o types.ProbeOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outcomes[name]; !ok {
		s.order = append(s.order, name)
	}
	s.outcomes[name] = o
}

// Outcome returns the outcome recorded for name.
func (s *Set) Outcome(name string) (types.ProbeOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[name]
	return o, ok
}

// Names returns probe names in insertion order.
func (s *Set) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Len reports the number of probes recorded.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Document returns the persisted form: probe name to ordered result lines.
func (s *Set) Document() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := make(map[string][]string, len(s.outcomes))
	for name, o := range s.outcomes {
		doc[name] = Lines(o)
	}
	return doc
}

// Summary counts faces by status across the set.
type Summary struct {
	Probes         int
	NoFaces        int
	Faces          int
	Identified     int
	NoMatch        int
	BelowThreshold int
}

// Summarize tallies the set.
func (s *Set) Summarize() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{Probes: len(s.order)}
	for _, o := range s.outcomes {
		if o.NoFaces {
			sum.NoFaces++
			continue
		}
		for _, r := range o.Results {
			sum.Faces++
			switch r.Status {
			case types.Identified:
				sum.Identified++
			case types.NoMatchBelowThreshold:
				sum.BelowThreshold++
			default:
				sum.NoMatch++
			}
		}
	}
	return sum
}
