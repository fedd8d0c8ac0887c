// Package phasefile loads the phase definition input — the YAML or JSON
// document that lists the phases a run should execute — into the phase
// data model, tolerant of unrecognized fields and strict about the handful
// that actually matter structurally.
package phasefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgehq/forge/internal/phase"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk shape of a phase definition input: a content hash
// and generation timestamp for provenance, plus the phase list itself.
type Document struct {
	SpecHash    string       `yaml:"spec_hash" json:"spec_hash"`
	GeneratedAt string       `yaml:"generated_at" json:"generated_at"`
	Phases      []phase.Phase `yaml:"phases" json:"phases"`
}

// Load reads a phase definition input from path, dispatching on its
// extension (.json uses encoding/json, anything else is treated as YAML),
// validates it, and builds the resulting dependency graph.
func Load(path string) (*phase.Graph, *Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read phase file: %w", err)
	}

	doc, err := parse(data, path)
	if err != nil {
		return nil, nil, err
	}

	if err := validate(doc); err != nil {
		return nil, nil, err
	}

	g, err := phase.NewGraph(doc.Phases)
	if err != nil {
		return nil, nil, fmt.Errorf("build phase graph: %w", err)
	}

	return g, doc, nil
}

func parse(data []byte, path string) (*Document, error) {
	var doc Document
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(strings.NewReader(string(data)))
		// Unknown fields are tolerated deliberately: a phase file produced
		// by a newer generator may carry fields this version doesn't know
		// about yet.
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse phase file as json: %w", err)
		}
		return &doc, nil
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse phase file as yaml: %w", err)
	}
	return &doc, nil
}

// validate checks the document-level invariants that NewGraph's own
// validation doesn't cover: provenance fields present, and every depends_on
// reference resolves to a declared phase before the graph is even built (so
// the error message names the phase file, not an opaque graph error).
func validate(doc *Document) error {
	if strings.TrimSpace(doc.SpecHash) == "" {
		return fmt.Errorf("phase file: missing spec_hash")
	}
	if strings.TrimSpace(doc.GeneratedAt) == "" {
		return fmt.Errorf("phase file: missing generated_at")
	}
	if len(doc.Phases) == 0 {
		return fmt.Errorf("phase file: no phases declared")
	}

	known := make(map[string]bool, len(doc.Phases))
	for _, p := range doc.Phases {
		known[p.ID] = true
	}
	for _, p := range doc.Phases {
		for _, dep := range p.DependsOn {
			if !known[dep] {
				return fmt.Errorf("phase file: phase %q depends on undeclared phase %q", p.ID, dep)
			}
		}
	}
	return nil
}
