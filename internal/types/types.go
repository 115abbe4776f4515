package types

import "image"

// Embedding is a fixed-length face descriptor produced by an extractor.
type Embedding []float64

// Box is a face bounding box in face_recognition order (top, right, bottom, left).
type Box struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// FaceResult matches the JSON structure coming back from the Python worker
type FaceResult struct {
	Loc []int     `json:"loc"` // [top, right, bottom, left]
	Vec []float64 `json:"vec"` // 128-d face encoding
}

// Box returns the location as a Box. Malformed locations yield a zero box.
func (f FaceResult) Box() Box {
	if len(f.Loc) != 4 {
		return Box{}
	}
	return Box{Top: f.Loc[0], Right: f.Loc[1], Bottom: f.Loc[2], Left: f.Loc[3]}
}

// ErrorResult captures the error object returned by Python on failure
type ErrorResult struct {
	Error string `json:"error"`
}

// GalleryEntry is one labeled reference face.
type GalleryEntry struct {
	Label     string
	Embedding Embedding
	Source    string // file the embedding came from
}

// Gallery is the ordered reference set. It is built once per run and never
// mutated while probes are matched.
type Gallery []GalleryEntry

// Embeddings returns the gallery embeddings in load order.
func (g Gallery) Embeddings() []Embedding {
	out := make([]Embedding, len(g))
	for i, e := range g {
		out[i] = e.Embedding
	}
	return out
}

// Labels returns the gallery labels in load order.
func (g Gallery) Labels() []string {
	out := make([]string, len(g))
	for i, e := range g {
		out[i] = e.Label
	}
	return out
}

// MatchStatus is the decision taken for a single probe face.
type MatchStatus int

const (
	NoMatch MatchStatus = iota
	NoMatchBelowThreshold
	Identified
)

func (s MatchStatus) String() string {
	switch s {
	case Identified:
		return "identified"
	case NoMatchBelowThreshold:
		return "below_threshold"
	default:
		return "no_match"
	}
}

// MatchResult is the outcome for one detected probe face.
type MatchResult struct {
	Face       int // 1-based, extractor order
	Status     MatchStatus
	Label      string
	Distance   float64
	Confidence float64 // 1 - Distance, display only
	Box        *Box
}

// ProbeOutcome holds the results for one probe image. NoFaces is set when the
// extractor found no face at all, which is distinct from an empty Results.
type ProbeOutcome struct {
	NoFaces bool
	Results []MatchResult
}
