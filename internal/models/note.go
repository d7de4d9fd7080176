// Package models defines the domain types for mnemo.
package models

import (
	"slices"
	"strings"
	"time"
)

// NoteType classifies a note.
type NoteType string

const (
	TypeProject   NoteType = "project"
	TypeConcept   NoteType = "concept"
	TypeReference NoteType = "reference"
	TypeInsight   NoteType = "insight"
	TypeGeneral   NoteType = "general"
)

// NoteTypes lists every accepted note type.
var NoteTypes = []NoteType{TypeProject, TypeConcept, TypeReference, TypeInsight, TypeGeneral}

// Valid reports whether t is one of NoteTypes.
func (t NoteType) Valid() bool {
	return slices.Contains(NoteTypes, t)
}

// ReverseSuffix is appended to a relation type to name its reverse edge.
const ReverseSuffix = "-reverse"

// Relations maps a relation type to the ordered ids it points at.
type Relations map[string][]string

// Add appends target under relType unless it is already there.
// It reports whether the relations changed.
func (r Relations) Add(relType, target string) bool {
	if slices.Contains(r[relType], target) {
		return false
	}
	r[relType] = append(r[relType], target)
	return true
}

// Has reports whether target is listed under relType.
func (r Relations) Has(relType, target string) bool {
	return slices.Contains(r[relType], target)
}

// Header is the YAML block at the top of every note file.
type Header struct {
	Title     string    `yaml:"title" json:"title"`
	Created   time.Time `yaml:"created" json:"created"`
	Modified  time.Time `yaml:"modified" json:"modified"`
	Type      NoteType  `yaml:"type" json:"type"`
	Tags      []string  `yaml:"tags" json:"tags"`
	Relations Relations `yaml:"relations" json:"relations"`
	// Extra keeps header keys mnemo does not know about so hand-added
	// metadata survives rewrites.
	Extra map[string]any `yaml:",inline" json:"extra,omitempty"`
}

// Normalize fills defaults and replaces nil collections with empty ones.
func (h *Header) Normalize() {
	if h.Type == "" {
		h.Type = TypeGeneral
	}
	h.Tags = UniqueStrings(h.Tags)
	if h.Relations == nil {
		h.Relations = Relations{}
	}
}

// Touch sets Modified to now, never moving it before Created.
func (h *Header) Touch(now time.Time) {
	if now.Before(h.Created) {
		now = h.Created
	}
	h.Modified = now
}

// Observation is one entry of a note's observation log.
type Observation struct {
	Method string `json:"method,omitempty"`
	Text   string `json:"text"`
}

// String renders the observation as it appears after "- " in the log.
func (o Observation) String() string {
	if o.Method == "" {
		return o.Text
	}
	return "[" + o.Method + "] " + o.Text
}

// Note is a parsed note document.
type Note struct {
	ID     string
	Header Header
	// Body is the prose preceding the observation log, whitespace-trimmed.
	Body         string
	Observations []Observation
	// Trailer is whatever follows the observation log (further sections).
	Trailer string
}

// ObservationStrings returns the literal form of every observation, in order.
func (n *Note) ObservationStrings() []string {
	out := make([]string, len(n.Observations))
	for i, o := range n.Observations {
		out[i] = o.String()
	}
	return out
}

// NoteMetadata is a lightweight representation returned by store listings.
type NoteMetadata struct {
	ID        string    `json:"id"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Edge is a typed relation between two notes as seen by the index.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// UniqueStrings trims items, drops empty ones and duplicates, and keeps first
// occurrence order. The result is never nil.
func UniqueStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}
