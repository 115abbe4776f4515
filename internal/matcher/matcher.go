package matcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/andresmejia3/faceid/internal/extractor"
	"github.com/andresmejia3/faceid/internal/logging"
	"github.com/andresmejia3/faceid/internal/types"
)

// Identify matches every face found in img against the gallery.
//
// A probe without faces yields ProbeOutcome{NoFaces: true}. Otherwise there
// is one MatchResult per face, numbered in extractor order. Bounding boxes are
// attached when the extractor can locate the faces; a location failure is
// logged and never changes a decision.
func Identify(ctx context.Context, ext extractor.Extractor, img *extractor.Image, gallery types.Gallery, threshold float64, logger *slog.Logger) (types.ProbeOutcome, error) {
	encodings, err := ext.Encode(ctx, img)
	if err != nil {
		return types.ProbeOutcome{}, fmt.Errorf("encode %s: %w", img.Name, err)
	}
	if len(encodings) == 0 {
		return types.ProbeOutcome{NoFaces: true}, nil
	}

	boxes, err := ext.Locate(ctx, img)
	if err != nil {
		logging.Component(logger, "matcher").Warn("face locations unavailable",
			slog.String("file", img.Name), logging.Error(err))
		boxes = nil
	} else if len(boxes) != len(encodings) {
		logging.Component(logger, "matcher").Warn("face locations do not line up with encodings",
			slog.String("file", img.Name), slog.Int("boxes", len(boxes)), slog.Int("faces", len(encodings)))
		boxes = nil
	}

	known := gallery.Embeddings()
	labels := gallery.Labels()

	results := make([]types.MatchResult, 0, len(encodings))
	for i, probe := range encodings {
		var matches []bool
		var distances []float64
		if len(known) > 0 {
			matches = ext.CompareFaces(known, probe)
			distances = ext.FaceDistance(known, probe)
		}

		res := Decide(matches, distances, labels, threshold)
		res.Face = i + 1
		if boxes != nil {
			box := boxes[i]
			res.Box = &box
		}
		results = append(results, res)
	}
	return types.ProbeOutcome{Results: results}, nil
}

// Decide applies the matching policy to one probe face.
//
// The library match vector gates first: with no gallery entry matching, the
// face is NoMatch and the distances are not consulted. Otherwise the nearest
// entry (first one on ties) is Identified only if its distance is strictly
// below threshold, and NoMatchBelowThreshold if not.
func Decide(matches []bool, distances []float64, labels []string, threshold float64) types.MatchResult {
	if !anyTrue(matches) || len(distances) == 0 {
		return types.MatchResult{Status: types.NoMatch}
	}

	best := argmin(distances)
	dist := distances[best]
	if dist < threshold {
		return types.MatchResult{
			Status:     types.Identified,
			Label:      labels[best],
			Distance:   dist,
			Confidence: 1 - dist,
		}
	}
	return types.MatchResult{Status: types.NoMatchBelowThreshold, Distance: dist}
}

func anyTrue(v []bool) bool {
	for _, b := range v {
		if b {
			return true
		}
	}
	return false
}

// argmin returns the index of the smallest value, preferring the earliest.
func argmin(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] < v[best] {
			best = i
		}
	}
	return best
}
