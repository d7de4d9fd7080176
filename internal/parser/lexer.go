package parser

import "strings"

// Literals of the note document grammar.
const (
	Delimiter          = "---"
	ObservationHeading = "## Observations"
	itemPrefix         = "- "
)

type tokenKind int

const (
	tokBlank tokenKind = iota
	tokDelim
	tokObsHeading
	tokItem
	tokText
)

func (k tokenKind) String() string {
	switch k {
	case tokBlank:
		return "blank"
	case tokDelim:
		return "delimiter"
	case tokObsHeading:
		return "observation-heading"
	case tokItem:
		return "item"
	default:
		return "text"
	}
}

// token is one classified line of a document.
type token struct {
	kind tokenKind
	line string // raw line without the newline
	text string // item payload for tokItem
}

// lex splits s into lines and classifies each one. It never fails: every
// line is at least text. A trailing "\r" is dropped from each line.
func lex(s string) []token {
	if s == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	toks := make([]token, 0, len(lines))
	for _, line := range lines {
		toks = append(toks, classify(strings.TrimSuffix(line, "\r")))
	}
	return toks
}

func classify(line string) token {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return token{kind: tokBlank, line: line}
	case strings.TrimRight(line, " \t") == Delimiter:
		return token{kind: tokDelim, line: line}
	case trimmed == ObservationHeading:
		return token{kind: tokObsHeading, line: line}
	case strings.HasPrefix(trimmed, itemPrefix):
		return token{kind: tokItem, line: line, text: strings.TrimSpace(trimmed[len(itemPrefix):])}
	default:
		return token{kind: tokText, line: line}
	}
}

// joinLines reassembles the raw lines of toks and trims surrounding whitespace.
func joinLines(toks []token) string {
	lines := make([]string, len(toks))
	for i, t := range toks {
		lines[i] = t.line
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
