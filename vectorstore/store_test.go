package vectorstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fabfab/course-rag/course"
)

// fakeBackend is an order-preserving in-memory Backend whose Query
// ranks by naive substring containment instead of embeddings.
type fakeBackend struct {
	collections map[string][]Record
	queryCalls  int
	lastWhere   map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{collections: map[string][]Record{}}
}

func (f *fakeBackend) Upsert(ctx context.Context, collection string, records []Record) error {
	for _, record := range records {
		replaced := false
		for i, existing := range f.collections[collection] {
			if existing.ID == record.ID {
				f.collections[collection][i] = record
				replaced = true
				break
			}
		}
		if !replaced {
			f.collections[collection] = append(f.collections[collection], record)
		}
	}
	return nil
}

func (f *fakeBackend) Query(ctx context.Context, collection, text string, where map[string]string, limit int) ([]Match, error) {
	f.queryCalls++
	f.lastWhere = where

	var matches []Match
	for _, record := range f.collections[collection] {
		skip := false
		for key, want := range where {
			if record.Metadata[key] != want {
				skip = true
				break
			}
		}
		if skip {
			continue
		}

		distance := 1.0
		if strings.Contains(strings.ToLower(record.Content), strings.ToLower(text)) {
			distance = 0.1
		}
		matches = append(matches, Match{
			ID:       record.ID,
			Content:  record.Content,
			Metadata: record.Metadata,
			Distance: distance,
		})
	}

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (f *fakeBackend) Get(ctx context.Context, collection, id string) (*Record, error) {
	for _, record := range f.collections[collection] {
		if record.ID == id {
			r := record
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) ListIDs(ctx context.Context, collection string) ([]string, error) {
	ids := make([]string, 0, len(f.collections[collection]))
	for _, record := range f.collections[collection] {
		ids = append(ids, record.ID)
	}
	return ids, nil
}

func (f *fakeBackend) Count(ctx context.Context, collection string) (int, error) {
	return len(f.collections[collection]), nil
}

func (f *fakeBackend) Drop(ctx context.Context, collection string) error {
	delete(f.collections, collection)
	return nil
}

var _ Backend = (*fakeBackend)(nil)

func lessonPtr(n int) *int { return &n }

func testCourse() *course.Course {
	return &course.Course{
		Title:      "Building RAG Applications",
		CourseLink: "https://example.com/rag",
		Instructor: "Ada Lovelace",
		Lessons: []course.Lesson{
			{LessonNumber: 0, Title: "Introduction", LessonLink: "https://example.com/rag/0"},
			{LessonNumber: 1, Title: "Retrieval"},
		},
	}
}

func seedStore(t *testing.T) (*Store, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	store := NewStore(backend, 5)
	ctx := context.Background()

	if err := store.AddCourseMetadata(ctx, testCourse()); err != nil {
		t.Fatalf("add metadata: %v", err)
	}
	chunks := []course.Chunk{
		{Content: "Welcome to the course.", CourseTitle: "Building RAG Applications", LessonNumber: lessonPtr(0), ChunkIndex: 0},
		{Content: "Vector search finds passages.", CourseTitle: "Building RAG Applications", LessonNumber: lessonPtr(1), ChunkIndex: 1},
		{Content: "Some preamble text.", CourseTitle: "Building RAG Applications", ChunkIndex: 2},
	}
	if err := store.AddCourseContent(ctx, chunks); err != nil {
		t.Fatalf("add content: %v", err)
	}
	return store, backend
}

func TestAddCourseMetadataKeyedByTitle(t *testing.T) {
	_, backend := seedStore(t)

	record, err := backend.Get(context.Background(), "course_catalog", "Building RAG Applications")
	if err != nil || record == nil {
		t.Fatalf("catalog record missing: %v", err)
	}
	if record.Metadata["instructor"] != "Ada Lovelace" {
		t.Fatalf("unexpected instructor: %q", record.Metadata["instructor"])
	}
	if !strings.Contains(record.Metadata["lessons_json"], "Introduction") {
		t.Fatalf("lessons not encoded: %q", record.Metadata["lessons_json"])
	}
}

func TestAddCourseMetadataRequiresTitle(t *testing.T) {
	store := NewStore(newFakeBackend(), 5)
	if err := store.AddCourseMetadata(context.Background(), &course.Course{}); err == nil {
		t.Fatal("expected error for course without title")
	}
}

func TestAddCourseContentIDsCombineTitleAndIndex(t *testing.T) {
	_, backend := seedStore(t)

	record, err := backend.Get(context.Background(), "course_content", "Building RAG Applications_1")
	if err != nil || record == nil {
		t.Fatalf("content record missing: %v", err)
	}
	if record.Metadata["lesson_number"] != "1" {
		t.Fatalf("unexpected lesson metadata: %q", record.Metadata["lesson_number"])
	}
}

func TestSearchMapsMetadata(t *testing.T) {
	store, _ := seedStore(t)

	results, err := store.Search(context.Background(), "vector search", "", nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	for _, result := range results {
		if result.CourseTitle != "Building RAG Applications" {
			t.Fatalf("unexpected course title: %q", result.CourseTitle)
		}
	}
}

func TestSearchBuildsEqualityFilters(t *testing.T) {
	store, backend := seedStore(t)

	_, err := store.Search(context.Background(), "anything", "Building RAG Applications", lessonPtr(1), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.lastWhere["course_title"] != "Building RAG Applications" {
		t.Fatalf("course filter not applied: %#v", backend.lastWhere)
	}
	if backend.lastWhere["lesson_number"] != "1" {
		t.Fatalf("lesson filter not applied: %#v", backend.lastWhere)
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	store := NewStore(newFakeBackend(), 5)

	results, err := store.Search(context.Background(), "anything", "", nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %#v", results)
	}
}

func TestResolveCourseNameExactSkipsVectorLookup(t *testing.T) {
	store, backend := seedStore(t)

	title, err := store.ResolveCourseName(context.Background(), "Building RAG Applications")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "Building RAG Applications" {
		t.Fatalf("unexpected title: %q", title)
	}
	if backend.queryCalls != 0 {
		t.Fatalf("exact match should not query, got %d calls", backend.queryCalls)
	}
}

func TestResolveCourseNamePartialMatch(t *testing.T) {
	store, _ := seedStore(t)

	title, err := store.ResolveCourseName(context.Background(), "RAG")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "Building RAG Applications" {
		t.Fatalf("unexpected title: %q", title)
	}
}

func TestResolveCourseNameUnknown(t *testing.T) {
	store := NewStore(newFakeBackend(), 5)

	_, err := store.ResolveCourseName(context.Background(), "Nonexistent")
	if !errors.Is(err, ErrUnknownCourse) {
		t.Fatalf("expected ErrUnknownCourse, got %v", err)
	}
}

func TestResolveCourseNameEmpty(t *testing.T) {
	store := NewStore(newFakeBackend(), 5)
	if _, err := store.ResolveCourseName(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestGetCourseOutlineRoundTripsLessons(t *testing.T) {
	store, _ := seedStore(t)

	c, err := store.GetCourseOutline(context.Background(), "Building RAG Applications")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Instructor != "Ada Lovelace" || c.CourseLink != "https://example.com/rag" {
		t.Fatalf("unexpected course: %+v", c)
	}
	if len(c.Lessons) != 2 || c.Lessons[0].Title != "Introduction" {
		t.Fatalf("lessons not restored: %+v", c.Lessons)
	}
	if c.Lessons[0].LessonLink != "https://example.com/rag/0" {
		t.Fatalf("lesson link not restored: %q", c.Lessons[0].LessonLink)
	}
}

func TestGetCourseOutlineUnknown(t *testing.T) {
	store := NewStore(newFakeBackend(), 5)

	_, err := store.GetCourseOutline(context.Background(), "Nonexistent")
	if !errors.Is(err, ErrUnknownCourse) {
		t.Fatalf("expected ErrUnknownCourse, got %v", err)
	}
}

func TestCourseCountAndTitles(t *testing.T) {
	store, _ := seedStore(t)
	ctx := context.Background()

	count, err := store.CourseCount(ctx)
	if err != nil || count != 1 {
		t.Fatalf("expected 1 course, got %d (%v)", count, err)
	}

	titles, err := store.ExistingCourseTitles(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(titles) != 1 || titles[0] != "Building RAG Applications" {
		t.Fatalf("unexpected titles: %#v", titles)
	}
}

func TestClearAllDropsBothCollections(t *testing.T) {
	store, backend := seedStore(t)
	ctx := context.Background()

	if err := store.ClearAll(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.collections["course_catalog"]) != 0 || len(backend.collections["course_content"]) != 0 {
		t.Fatalf("collections not dropped: %#v", backend.collections)
	}
}

// cannedBackend returns a fixed match list verbatim, so ordering
// assertions see exactly what the backend produced.
type cannedBackend struct {
	fakeBackend
	matches []Match
}

func (c *cannedBackend) Query(ctx context.Context, collection, text string, where map[string]string, limit int) ([]Match, error) {
	return c.matches, nil
}

func TestSearchEqualDistancesKeepBackendOrder(t *testing.T) {
	backend := &cannedBackend{matches: []Match{
		{ID: "first", Content: "alpha", Metadata: map[string]string{"course_title": "C"}, Distance: 0.5},
		{ID: "second", Content: "beta", Metadata: map[string]string{"course_title": "C"}, Distance: 0.5},
		{ID: "third", Content: "gamma", Metadata: map[string]string{"course_title": "C"}, Distance: 0.5},
	}}
	store := NewStore(backend, 5)

	results, err := store.Search(context.Background(), "anything", "", nil, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := []string{"alpha", "beta", "gamma"}
	for i, result := range results {
		if result.Content != want[i] {
			t.Fatalf("tied results reordered: position %d is %q, want %q", i, result.Content, want[i])
		}
	}
}

func TestReingestReplacesRecords(t *testing.T) {
	store, backend := seedStore(t)
	ctx := context.Background()

	updated := testCourse()
	updated.Instructor = "Grace Hopper"
	if err := store.AddCourseMetadata(ctx, updated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, _ := store.CourseCount(ctx)
	if count != 1 {
		t.Fatalf("re-ingest duplicated the catalog record, count %d", count)
	}
	record, _ := backend.Get(ctx, "course_catalog", "Building RAG Applications")
	if record.Metadata["instructor"] != "Grace Hopper" {
		t.Fatalf("metadata not replaced: %q", record.Metadata["instructor"])
	}
}
