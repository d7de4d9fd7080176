// Package parser reads and writes the on-disk note document: a YAML header
// between "---" delimiters, a Markdown body, and an optional observation log.
//
// The grammar is line oriented:
//
//	document    := blank* "---" header "---" body
//	body        := prose [ "## Observations" (blank | item)* trailer ]
//	item        := "- " text | "- [" method "] " text
//
// The trailer starts at the first line after the observation heading that is
// neither blank nor a list item. Prose and trailer are whitespace-trimmed, so
// surrounding blank lines are not preserved across a parse/serialize cycle.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/models"
)

var methodRe = regexp.MustCompile(`^\[([^\[\]\n]+)\] (.+)$`)

// Parse decodes a note document. The returned note has no ID; callers know
// which file it came from.
func Parse(data []byte) (*models.Note, error) {
	toks := lex(string(data))

	i := 0
	for i < len(toks) && toks[i].kind == tokBlank {
		i++
	}
	if i == len(toks) || toks[i].kind != tokDelim {
		return nil, fmt.Errorf("parser: no header block: %w", apperr.ErrMalformedDocument)
	}
	start := i + 1
	end := -1
	for j := start; j < len(toks); j++ {
		if toks[j].kind == tokDelim {
			end = j
			break
		}
	}
	if end < 0 {
		return nil, fmt.Errorf("parser: unclosed header block: %w", apperr.ErrMalformedDocument)
	}

	header, err := decodeHeader(toks[start:end])
	if err != nil {
		return nil, err
	}

	note := &models.Note{Header: header}
	note.Body, note.Observations, note.Trailer = parseBody(toks[end+1:])
	return note, nil
}

// ParseBody splits free Markdown text into prose, observations and trailer
// using the same rules as the body of a full document.
func ParseBody(text string) (body string, observations []models.Observation, trailer string) {
	return parseBody(lex(text))
}

// ParseObservation parses one observation literal such as "[research] Built
// in 1889". Its String form always equals the trimmed input.
func ParseObservation(s string) models.Observation {
	s = strings.TrimSpace(s)
	if m := methodRe.FindStringSubmatch(s); m != nil {
		return models.Observation{Method: m[1], Text: m[2]}
	}
	return models.Observation{Text: s}
}

func decodeHeader(toks []token) (models.Header, error) {
	lines := make([]string, len(toks))
	for i, t := range toks {
		lines[i] = t.line
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(strings.Join(lines, "\n")), &doc); err != nil {
		return models.Header{}, fmt.Errorf("parser: decode header: %v: %w", err, apperr.ErrMalformedHeader)
	}
	if doc.Kind == 0 {
		return models.Header{}, fmt.Errorf("parser: empty header: %w", apperr.ErrMalformedHeader)
	}
	if err := normalizeTimestamps(&doc); err != nil {
		return models.Header{}, err
	}

	var h models.Header
	if err := doc.Decode(&h); err != nil {
		return models.Header{}, fmt.Errorf("parser: decode header: %v: %w", err, apperr.ErrMalformedHeader)
	}
	if strings.TrimSpace(h.Title) == "" {
		return models.Header{}, fmt.Errorf("parser: header has no title: %w", apperr.ErrMalformedHeader)
	}
	h.Normalize()
	return h, nil
}

// timestampLayouts are accepted for created/modified. Zone-less values are
// read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// normalizeTimestamps rewrites the created/modified scalars of a header
// mapping into canonical !!timestamp form, accepting quoted and zone-less
// ISO-8601 values.
func normalizeTimestamps(doc *yaml.Node) error {
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil
	}
	m := doc.Content[0]
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i].Value, m.Content[i+1]
		if (key != "created" && key != "modified") || val.Kind != yaml.ScalarNode {
			continue
		}
		if val.Tag == "!!null" || val.Value == "" {
			continue
		}
		t, err := parseTimestamp(val.Value)
		if err != nil {
			return fmt.Errorf("parser: %s: %v: %w", key, err, apperr.ErrMalformedHeader)
		}
		val.Value = t.Format(time.RFC3339Nano)
		val.Tag = "!!timestamp"
		val.Style = 0
	}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseBody(toks []token) (string, []models.Observation, string) {
	i := 0
	for i < len(toks) && toks[i].kind != tokObsHeading {
		i++
	}
	prose := joinLines(toks[:i])
	if i == len(toks) {
		return prose, nil, ""
	}

	var observations []models.Observation
	i++
loop:
	for ; i < len(toks); i++ {
		switch toks[i].kind {
		case tokBlank:
		case tokItem:
			observations = append(observations, ParseObservation(toks[i].text))
		default:
			break loop
		}
	}
	return prose, observations, joinLines(toks[i:])
}

// Serialize renders a note in the document format. It does not modify n.
func Serialize(n *models.Note) ([]byte, error) {
	if err := checkSerializable(n); err != nil {
		return nil, err
	}

	h := n.Header
	h.Normalize()

	var buf bytes.Buffer
	buf.WriteString(Delimiter + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&h); err != nil {
		return nil, fmt.Errorf("parser: encode header: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("parser: encode header: %w", err)
	}
	buf.WriteString(Delimiter + "\n")

	buf.WriteString(renderBody(n))
	return buf.Bytes(), nil
}

// BodyText returns everything a serialized note carries below its header:
// prose, observation section and trailer.
func BodyText(n *models.Note) string {
	return strings.TrimSpace(renderBody(n))
}

func renderBody(n *models.Note) string {
	body, trailer := strings.TrimSpace(n.Body), strings.TrimSpace(n.Trailer)
	var sections []string
	if body != "" {
		sections = append(sections, body)
	}
	if len(n.Observations) > 0 || trailer != "" {
		var sb strings.Builder
		sb.WriteString(ObservationHeading)
		if len(n.Observations) > 0 {
			sb.WriteString("\n")
		}
		for _, o := range n.Observations {
			sb.WriteString("\n" + itemPrefix + o.String())
		}
		sections = append(sections, sb.String())
	}
	if trailer != "" {
		sections = append(sections, trailer)
	}
	var out strings.Builder
	for _, s := range sections {
		out.WriteString("\n" + s + "\n")
	}
	return out.String()
}

// checkSerializable rejects notes whose text would parse back differently.
func checkSerializable(n *models.Note) error {
	if strings.TrimSpace(n.Header.Title) == "" {
		return fmt.Errorf("parser: note has no title: %w", apperr.ErrInvalidInput)
	}
	if strings.ContainsAny(n.Header.Title, "\n\r") {
		return fmt.Errorf("parser: title spans lines: %w", apperr.ErrInvalidInput)
	}
	for _, t := range lex(n.Body) {
		if t.kind == tokObsHeading {
			return fmt.Errorf("parser: body contains %q: %w", ObservationHeading, apperr.ErrInvalidInput)
		}
	}
	for _, o := range n.Observations {
		lit := o.String()
		if strings.TrimSpace(o.Text) == "" || lit != strings.TrimSpace(lit) || strings.ContainsAny(lit, "\n\r") {
			return fmt.Errorf("parser: observation %q must be a single trimmed line: %w", lit, apperr.ErrInvalidInput)
		}
	}
	if toks := lex(strings.TrimSpace(n.Trailer)); len(toks) > 0 && toks[0].kind == tokItem {
		return fmt.Errorf("parser: trailer must start with a non-item line: %w", apperr.ErrInvalidInput)
	}
	return nil
}
