package noteservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/checksum"
	"github.com/starford/mnemo/internal/index"
	"github.com/starford/mnemo/internal/models"
	"github.com/starford/mnemo/internal/parser"
)

// Format selects the representation returned by Read.
type Format string

const (
	FormatMarkdown Format = "markdown" // the raw note file
	FormatJSON     Format = "json"     // header, body and observations as JSON
	FormatDetail   Format = "detail"   // NoteDetail as JSON, with relations in both directions
)

// ParseFormat maps a user-supplied format name to a Format. "raw" and "md"
// are accepted for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md", "raw":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "detail":
		return FormatDetail, nil
	default:
		return "", fmt.Errorf("noteservice: unknown format %q: %w", s, apperr.ErrInvalidInput)
	}
}

// document is the JSON shape of a note returned by Read.
type document struct {
	ID           string        `json:"id"`
	Frontmatter  models.Header `json:"frontmatter"`
	Content      string        `json:"content"`
	Observations []string      `json:"observations"`
}

// NoteDetail is the full structured representation of a note.
type NoteDetail struct {
	ID           string               `json:"id"`
	Header       models.Header        `json:"frontmatter"`
	Content      string               `json:"content"`
	Body         string               `json:"body"`
	Observations []models.Observation `json:"observations"`
	Trailer      string               `json:"trailer,omitempty"`
	Checksum     string               `json:"checksum"`
	Outgoing     []models.Edge        `json:"outgoing"`
	Incoming     []models.Edge        `json:"incoming"`
}

// Read returns a note in the requested format. Malformed files are reported
// with their apperr sentinel in the JSON format; the markdown format returns
// the file as it is.
func (s *Service) Read(ctx context.Context, id string, format Format) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch format {
	case FormatJSON:
	case FormatDetail:
		d, err := s.detail(ctx, id)
		if err != nil {
			return "", err
		}
		return encode(id, d)
	default:
		data, err := s.store.Read(id)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	n, _, err := load(s.store, id)
	if err != nil {
		return "", err
	}
	return encode(id, document{
		ID:           id,
		Frontmatter:  n.Header,
		Content:      parser.BodyText(n),
		Observations: n.ObservationStrings(),
	})
}

func encode(id string, v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("noteservice: encode %s: %w", id, err)
	}
	return string(out), nil
}

// Get returns the parsed note with its outgoing relations (from the header)
// and incoming relations (from the index).
func (s *Service) Get(ctx context.Context, id string) (*NoteDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detail(ctx, id)
}

func (s *Service) detail(ctx context.Context, id string) (*NoteDetail, error) {
	n, data, err := load(s.store, id)
	if err != nil {
		return nil, err
	}
	edges, err := s.idx.Related(ctx, id)
	if err != nil {
		return nil, err
	}
	incoming := []models.Edge{}
	for _, e := range edges {
		if e.Target == id {
			incoming = append(incoming, e)
		}
	}
	outgoing := index.Edges(id, n.Header.Relations)
	if outgoing == nil {
		outgoing = []models.Edge{}
	}
	observations := n.Observations
	if observations == nil {
		observations = []models.Observation{}
	}
	return &NoteDetail{
		ID:           id,
		Header:       n.Header,
		Content:      parser.BodyText(n),
		Body:         n.Body,
		Observations: observations,
		Trailer:      n.Trailer,
		Checksum:     checksum.Sum(data),
		Outgoing:     outgoing,
		Incoming:     incoming,
	}, nil
}
