package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const indent = "    "

// SerializationError means the result document could not be written, so the
// run cannot guarantee its results were persisted.
type SerializationError struct {
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("failed to write results to %s: %v", e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Marshal encodes the set's document. YAML is used for .yaml/.yml paths and
// JSON otherwise, both with four-space indentation.
func Marshal(path string, s *Set) ([]byte, error) {
	doc := s.Document()
	if isYAML(path) {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(len(indent))
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write persists the set to path, replacing any existing file.
func Write(path string, s *Set) error {
	data, err := Marshal(path, s)
	if err != nil {
		return &SerializationError{Path: path, Err: err}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &SerializationError{Path: path, Err: err}
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &SerializationError{Path: path, Err: err}
	}
	return nil
}

// Read parses a document written by Write.
func Read(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := make(map[string][]string)
	if isYAML(path) {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}
