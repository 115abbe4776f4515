// Package dlib provides an in-process Extractor backed by dlib through
// github.com/Kagami/go-face. It needs cgo and the dlib libraries, so it is
// only compiled with the "dlib" build tag; default builds get a stub whose
// New returns ErrUnavailable.
package dlib

import "errors"

// ErrUnavailable is returned by New in builds without the dlib tag.
var ErrUnavailable = errors.New("faceid was built without dlib support (rebuild with -tags dlib)")

// Config selects the model directory and matching tolerance.
type Config struct {
	// ModelDir holds shape_predictor_5_face_landmarks.dat,
	// dlib_face_recognition_resnet_model_v1.dat and mmod_human_face_detector.dat.
	ModelDir  string
	Tolerance float64
	UseCNN    bool
}
