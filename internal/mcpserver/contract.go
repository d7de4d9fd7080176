package mcpserver

// NoteFormatContract describes the canonical Markdown note format that
// LLM consumers should follow when creating notes.
const NoteFormatContract = `# mnemo Note Format Contract

Every note is one Markdown file named ` + "`<id>.md`" + ` in the knowledge directory.
The id is derived from the title: lowercased, non-alphanumeric runs become
single hyphens, leading and trailing hyphens are dropped.

## Structure

` + "```" + `markdown
---
title: Eiffel Tower                  # REQUIRED, single line
created: 2026-10-17T10:00:00Z        # set on creation, RFC 3339 UTC
modified: 2026-10-17T10:05:00Z       # bumped on every change
type: concept                        # project | concept | reference | insight | general
tags:
  - paris
  - landmark
relations:                           # relation type -> list of note ids
  located-in:
    - paris
---

Body text in standard Markdown.

## Observations

- [research] Built in 1889
- Repainted every seven years
` + "```" + `

## Rules

1. **The header comes first.** The ` + "`---`" + ` fences open the file; leading blank
   lines are tolerated on read.
2. **` + "`title`" + ` is required.** It is the only mandatory header key.
3. **Observations** live under a single ` + "`## Observations`" + ` heading, one
   ` + "`- `" + ` item per line, optionally prefixed with ` + "`[method]`" + `. Append new
   observations with the ` + "`add_observation`" + ` tool instead of rewriting the note.
4. **Relations are bidirectional.** Create them with ` + "`create_relation`" + `; the target
   note receives the same type with a ` + "`-reverse`" + ` suffix. Do not edit them by hand.
5. **Unknown header keys** are preserved when mnemo rewrites a note.
6. **Encoding** is UTF-8 with a trailing newline.

## Tools

- ` + "`create_note`" + `: title, optional content, note_type, tags, observations.
- ` + "`read_note`" + `: id and format (markdown or json).
- ` + "`search_notes`" + `: full-text query, optional note_type and limit.
- ` + "`add_observation`" + `: note_id, text, optional method.
- ` + "`create_relation`" + `: from_id, to_id, relation_type.
- ` + "`list_notes`" + `: optional note_type and limit.
- ` + "`get_relations`" + `: id.
`
