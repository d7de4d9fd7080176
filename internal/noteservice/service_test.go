package noteservice

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/checksum"
	"github.com/starford/mnemo/internal/index"
	"github.com/starford/mnemo/internal/models"
	"github.com/starford/mnemo/internal/parser"
	"github.com/starford/mnemo/internal/storage"
	"github.com/starford/mnemo/internal/testutil"
)

var start = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

type env struct {
	svc   *Service
	store *storage.FS
	db    *index.DB
	clock *testutil.Clock
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	e := &env{
		store: testutil.TestStore(t),
		db:    testutil.TestDB(t),
		clock: &testutil.Clock{T: start, Step: time.Second},
	}
	opts = append([]Option{WithClock(e.clock.Now), WithLogger(testutil.DiscardLogger())}, opts...)
	e.svc = New(e.store, e.db, opts...)
	return e
}

func (e *env) create(t *testing.T, title string) string {
	t.Helper()
	id, err := e.svc.Create(context.Background(), CreateParams{Title: title, Content: "About " + title + "."})
	require.NoError(t, err)
	return id
}

func (e *env) raw(t *testing.T, id string) string {
	t.Helper()
	data, err := e.store.Read(id)
	require.NoError(t, err)
	return string(data)
}

func (e *env) note(t *testing.T, id string) *models.Note {
	t.Helper()
	n, err := parser.Parse([]byte(e.raw(t, id)))
	require.NoError(t, err)
	return n
}

// assertIndexed checks that the index row for id mirrors the file on disk.
func (e *env) assertIndexed(t *testing.T, id string) {
	t.Helper()
	data := []byte(e.raw(t, id))
	n, err := parser.Parse(data)
	require.NoError(t, err)

	row, err := e.db.GetNote(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, checksum.Sum(data), row.Checksum)
	assert.Equal(t, n.Header.Title, row.Title)
	assert.Equal(t, n.Header.Type, row.Type)
	assert.Equal(t, n.Header.Tags, row.Tags)
	assert.Equal(t, n.ObservationStrings(), row.Observations)
	assert.Equal(t, n.Header.Relations, row.Relations)
	assert.True(t, n.Header.Modified.Equal(row.Modified))
}

func TestEiffelTowerScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	id, err := e.svc.Create(ctx, CreateParams{Title: "Eiffel Tower", Content: "A landmark.", Type: models.TypeConcept})
	require.NoError(t, err)
	assert.Equal(t, "eiffel-tower", id)

	raw, err := e.svc.Read(ctx, id, FormatMarkdown)
	require.NoError(t, err)
	n, err := parser.Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, models.TypeConcept, n.Header.Type)
	assert.Equal(t, "A landmark.", n.Body)

	list, err := e.svc.List(ctx, index.ListOptions{Type: models.TypeConcept, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	require.NoError(t, e.svc.AppendObservation(ctx, id, "Built in 1889", "research"))
	raw, err = e.svc.Read(ctx, id, FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, strings.Split(raw, "\n"), "- [research] Built in 1889")

	hits, err := e.svc.Search(ctx, "1889", index.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].ID)

	before := e.raw(t, id)
	err = e.svc.Relate(ctx, id, "paris", "located-in")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, before, e.raw(t, id), "from note must be untouched")
	ok, err := e.store.Exists("paris")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreate_WritesHeaderAndIndexes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	id, err := e.svc.Create(ctx, CreateParams{
		Title:        "Go Concurrency",
		Content:      "Notes on channels.\n\n## Observations\n\n- [reading] Channels are typed\n",
		Type:         models.TypeReference,
		Tags:         []string{"go", "go", " concurrency "},
		Observations: []string{"Select\nblocks", "[talk] Share memory by communicating", "  "},
	})
	require.NoError(t, err)
	assert.Equal(t, "go-concurrency", id)

	n := e.note(t, id)
	assert.Equal(t, "Go Concurrency", n.Header.Title)
	assert.Equal(t, []string{"go", "concurrency"}, n.Header.Tags)
	assert.True(t, n.Header.Created.Equal(start))
	assert.True(t, n.Header.Modified.Equal(n.Header.Created))
	assert.Equal(t, "Notes on channels.", n.Body)
	assert.Equal(t, []string{
		"[reading] Channels are typed",
		"Select blocks",
		"[talk] Share memory by communicating",
	}, n.ObservationStrings())
	e.assertIndexed(t, id)
}

func TestCreate_DefaultsToGeneral(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "Plain")
	assert.Equal(t, models.TypeGeneral, e.note(t, id).Header.Type)
}

func TestCreate_InvalidInput(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	cases := map[string]CreateParams{
		"empty title":      {Title: ""},
		"blank title":      {Title: "   "},
		"no usable chars":  {Title: "!!!"},
		"multiline title":  {Title: "a\nb"},
		"unknown type":     {Title: "x", Type: "diary"},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.svc.Create(ctx, p)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}
	entries, _ := os.ReadDir(e.store.Root())
	assert.Empty(t, entries)
}

func TestCreate_CollisionRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.create(t, "Eiffel Tower")
	before := e.raw(t, id)

	_, err := e.svc.Create(ctx, CreateParams{Title: "eiffel  TOWER!", Content: "other"})
	require.ErrorIs(t, err, apperr.ErrIDCollision)
	assert.Equal(t, before, e.raw(t, id), "existing note must not be overwritten")
}

func TestCreate_CollisionSuffixed(t *testing.T) {
	e := newEnv(t, WithCollisionPolicy(CollisionSuffix))
	assert.Equal(t, "eiffel-tower", e.create(t, "Eiffel Tower"))
	assert.Equal(t, "eiffel-tower-2", e.create(t, "Eiffel-Tower"))
	assert.Equal(t, "eiffel-tower-3", e.create(t, "EIFFEL TOWER"))
	assert.Equal(t, "EIFFEL TOWER", e.note(t, "eiffel-tower-3").Header.Title)
}

func TestAppendObservation_OrderAndTimestamps(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.create(t, "Log")
	created := e.note(t, id).Header.Created

	require.NoError(t, e.svc.AppendObservation(ctx, id, "first", ""))
	require.NoError(t, e.svc.AppendObservation(ctx, id, "second\nline", "survey"))
	require.NoError(t, e.svc.AppendObservation(ctx, id, "third", ""))

	n := e.note(t, id)
	assert.Equal(t, []string{"first", "[survey] second line", "third"}, n.ObservationStrings())
	assert.True(t, n.Header.Created.Equal(created))
	assert.True(t, n.Header.Modified.After(created))
	assert.Equal(t, "About Log.", n.Body)
	e.assertIndexed(t, id)
}

func TestAppendObservation_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.create(t, "Target")

	assert.ErrorIs(t, e.svc.AppendObservation(ctx, "missing", "x", ""), apperr.ErrNotFound)
	assert.ErrorIs(t, e.svc.AppendObservation(ctx, id, " \n ", ""), apperr.ErrInvalidInput)
	assert.ErrorIs(t, e.svc.AppendObservation(ctx, id, "x", "bad]method"), apperr.ErrInvalidInput)
	assert.ErrorIs(t, e.svc.AppendObservation(ctx, id, "x", "two\nlines"), apperr.ErrInvalidInput)
	assert.Empty(t, e.note(t, id).Observations)
}

func TestAppendObservation_MalformedFile(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.Write("broken", []byte("no header")))
	err := e.svc.AppendObservation(context.Background(), "broken", "x", "")
	assert.ErrorIs(t, err, apperr.ErrMalformedDocument)
	assert.Equal(t, "no header", e.raw(t, "broken"))
}

func TestRead_JSON(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id, err := e.svc.Create(ctx, CreateParams{Title: "Eiffel Tower", Content: "A landmark.", Tags: []string{"paris"}})
	require.NoError(t, err)
	require.NoError(t, e.svc.AppendObservation(ctx, id, "Built in 1889", "research"))

	out, err := e.svc.Read(ctx, id, FormatJSON)
	require.NoError(t, err)

	var doc struct {
		ID          string `json:"id"`
		Frontmatter struct {
			Title string   `json:"title"`
			Type  string   `json:"type"`
			Tags  []string `json:"tags"`
		} `json:"frontmatter"`
		Content      string   `json:"content"`
		Observations []string `json:"observations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, "Eiffel Tower", doc.Frontmatter.Title)
	assert.Equal(t, "general", doc.Frontmatter.Type)
	assert.Equal(t, []string{"paris"}, doc.Frontmatter.Tags)
	assert.Equal(t, "A landmark.\n\n## Observations\n\n- [research] Built in 1889", doc.Content)
	assert.Equal(t, []string{"[research] Built in 1889"}, doc.Observations)
}

func TestRead_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Read(ctx, "missing", FormatMarkdown)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, e.store.Write("broken", []byte("---\ntitle: [oops\n---\n")))
	raw, err := e.svc.Read(ctx, "broken", FormatMarkdown)
	require.NoError(t, err, "markdown read returns the file as is")
	assert.Contains(t, raw, "[oops")
	_, err = e.svc.Read(ctx, "broken", FormatJSON)
	assert.ErrorIs(t, err, apperr.ErrMalformedHeader)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatMarkdown, "raw": FormatMarkdown, "Markdown": FormatMarkdown, "json": FormatJSON, "detail": FormatDetail} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestGet_IncludesRelations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, "Alpha")
	b := e.create(t, "Beta")
	require.NoError(t, e.svc.Relate(ctx, a, b, "cites"))

	d, err := e.svc.Get(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []models.Edge{{Source: b, Target: a, Type: "cites-reverse"}}, d.Outgoing)
	assert.Equal(t, []models.Edge{{Source: a, Target: b, Type: "cites"}}, d.Incoming)
	assert.Equal(t, "About Beta.", d.Body)
	assert.Equal(t, checksum.Sum([]byte(e.raw(t, b))), d.Checksum)

	_, err = e.svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRead_Detail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, "Alpha")
	b := e.create(t, "Beta")
	require.NoError(t, e.svc.AppendObservation(ctx, b, "Second letter", ""))
	require.NoError(t, e.svc.Relate(ctx, a, b, "cites"))

	out, err := e.svc.Read(ctx, b, FormatDetail)
	require.NoError(t, err)

	var doc struct {
		ID           string               `json:"id"`
		Body         string               `json:"body"`
		Checksum     string               `json:"checksum"`
		Observations []models.Observation `json:"observations"`
		Outgoing     []models.Edge        `json:"outgoing"`
		Incoming     []models.Edge        `json:"incoming"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, b, doc.ID)
	assert.Equal(t, "About Beta.", doc.Body)
	assert.Equal(t, checksum.Sum([]byte(e.raw(t, b))), doc.Checksum)
	assert.Equal(t, []models.Observation{{Text: "Second letter"}}, doc.Observations)
	assert.Equal(t, []models.Edge{{Source: b, Target: a, Type: "cites-reverse"}}, doc.Outgoing)
	assert.Equal(t, []models.Edge{{Source: a, Target: b, Type: "cites"}}, doc.Incoming)

	_, err = e.svc.Read(ctx, "missing", FormatDetail)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSearchAndList_Limits(t *testing.T) {
	e := newEnv(t, WithLimits(2, 3))
	ctx := context.Background()
	for _, title := range []string{"Shared One", "Shared Two", "Shared Three", "Shared Four"} {
		e.create(t, title)
	}

	hits, err := e.svc.Search(ctx, "shared", index.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	list, err := e.svc.List(ctx, index.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "shared-four", list[0].ID, "newest first")

	list, err = e.svc.List(ctx, index.ListOptions{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, list, 4)

	none, err := e.svc.List(ctx, index.ListOptions{Type: "diary"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0, 10))
	assert.Equal(t, 10, clampLimit(-5, 10))
	assert.Equal(t, 7, clampLimit(7, 10))
	assert.Equal(t, MaxLimit, clampLimit(MaxLimit+1, 10))
}

func TestReindex_PicksUpExternalFiles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.create(t, "Known")

	doc := "---\ntitle: Hand Written\ntype: insight\n---\n\nWritten with an editor: zeppelin.\n"
	require.NoError(t, os.WriteFile(filepath.Join(e.store.Root(), "hand-written.md"), []byte(doc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(e.store.Root(), "junk.md"), []byte("junk"), 0o644))

	report, err := e.svc.Reindex(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"hand-written"}, report.Indexed)
	assert.Equal(t, 1, report.Unchanged)
	assert.Contains(t, report.Failed, "junk")

	hits, err := e.svc.Search(ctx, "zeppelin", index.SearchOptions{Type: models.TypeInsight})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "hand-written", hits[0].ID)

	report, err = e.svc.Reindex(ctx, true)
	require.NoError(t, err)
	assert.Len(t, report.Indexed, 2)
}

func TestRelated_UnknownNote(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Related(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
