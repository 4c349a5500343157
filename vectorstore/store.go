package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/fabfab/course-rag/course"
)

const (
	collCatalog = "course_catalog"
	collContent = "course_content"

	metaCourseTitle  = "course_title"
	metaLessonNumber = "lesson_number"
	metaChunkIndex   = "chunk_index"
	metaInstructor   = "instructor"
	metaCourseLink   = "course_link"
	metaLessons      = "lessons_json"
)

// ErrUnknownCourse reports a catalog lookup for a title that was never
// ingested. Callers in the tool layer turn it into a message for the
// model instead of failing the query.
var ErrUnknownCourse = errors.New("unknown course")

// SearchResult is one content hit, ready for the tool layer.
type SearchResult struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	Distance     float64
}

// Store is the course-aware retrieval layer. Safe for concurrent use as
// long as the Backend is.
type Store struct {
	backend    Backend
	maxResults int
}

func NewStore(backend Backend, maxResults int) *Store {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Store{backend: backend, maxResults: maxResults}
}

// AddCourseMetadata upserts one catalog record keyed by course title.
// Re-ingesting a title overwrites the previous record, so the last
// writer's metadata wins.
func (s *Store) AddCourseMetadata(ctx context.Context, c *course.Course) error {
	if c == nil || c.Title == "" {
		return fmt.Errorf("course metadata requires a title")
	}

	lessons, err := json.Marshal(c.Lessons)
	if err != nil {
		return fmt.Errorf("encode lessons for %s: %w", c.Title, err)
	}

	record := Record{
		ID:      c.Title,
		Content: catalogText(c),
		Metadata: map[string]string{
			metaCourseTitle: c.Title,
			metaInstructor:  c.Instructor,
			metaCourseLink:  c.CourseLink,
			metaLessons:     string(lessons),
		},
	}

	if err := s.backend.Upsert(ctx, collCatalog, []Record{record}); err != nil {
		return fmt.Errorf("index course metadata for %s: %w", c.Title, err)
	}
	return nil
}

// AddCourseContent upserts the chunk sequence into the content
// collection. Chunk ids combine course title and chunk index, so a
// re-ingest replaces rather than duplicates.
func (s *Store) AddCourseContent(ctx context.Context, chunks []course.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	records := make([]Record, 0, len(chunks))
	for _, chunk := range chunks {
		metadata := map[string]string{
			metaCourseTitle: chunk.CourseTitle,
			metaChunkIndex:  strconv.Itoa(chunk.ChunkIndex),
		}
		if chunk.LessonNumber != nil {
			metadata[metaLessonNumber] = strconv.Itoa(*chunk.LessonNumber)
		}
		records = append(records, Record{
			ID:       fmt.Sprintf("%s_%d", chunk.CourseTitle, chunk.ChunkIndex),
			Content:  chunk.Content,
			Metadata: metadata,
		})
	}

	if err := s.backend.Upsert(ctx, collContent, records); err != nil {
		return fmt.Errorf("index course content: %w", err)
	}
	return nil
}

// Search runs a nearest-neighbor query over the content collection.
// Filters are equality predicates on metadata; a nil lesson filter
// matches every lesson. An empty index yields an empty result.
func (s *Store) Search(ctx context.Context, query, courseFilter string, lessonFilter *int, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = s.maxResults
	}

	where := map[string]string{}
	if courseFilter != "" {
		where[metaCourseTitle] = courseFilter
	}
	if lessonFilter != nil {
		where[metaLessonNumber] = strconv.Itoa(*lessonFilter)
	}
	if len(where) == 0 {
		where = nil
	}

	matches, err := s.backend.Query(ctx, collContent, query, where, limit)
	if err != nil {
		return nil, fmt.Errorf("search course content: %w", err)
	}

	results := make([]SearchResult, 0, len(matches))
	for _, match := range matches {
		result := SearchResult{
			Content:     match.Content,
			CourseTitle: match.Metadata[metaCourseTitle],
			Distance:    match.Distance,
		}
		if raw, ok := match.Metadata[metaLessonNumber]; ok && raw != "" {
			if number, convErr := strconv.Atoi(raw); convErr == nil {
				result.LessonNumber = &number
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// ResolveCourseName maps a possibly partial or misspelled course name to
// the closest known title. An exact title wins without a vector lookup.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("course name is required")
	}

	if record, err := s.backend.Get(ctx, collCatalog, name); err == nil && record != nil {
		return record.ID, nil
	}

	matches, err := s.backend.Query(ctx, collCatalog, name, nil, 1)
	if err != nil {
		return "", fmt.Errorf("resolve course name %q: %w", name, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownCourse, name)
	}
	return matches[0].ID, nil
}

// GetCourseOutline reads the catalog record for an exact title and
// rebuilds the course, lesson list included.
func (s *Store) GetCourseOutline(ctx context.Context, title string) (*course.Course, error) {
	record, err := s.backend.Get(ctx, collCatalog, title)
	if err != nil {
		return nil, fmt.Errorf("read course catalog for %s: %w", title, err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCourse, title)
	}

	c := &course.Course{
		Title:      record.Metadata[metaCourseTitle],
		Instructor: record.Metadata[metaInstructor],
		CourseLink: record.Metadata[metaCourseLink],
	}
	if c.Title == "" {
		c.Title = record.ID
	}
	if raw := record.Metadata[metaLessons]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &c.Lessons); err != nil {
			return nil, fmt.Errorf("decode lessons for %s: %w", title, err)
		}
	}
	return c, nil
}

// CourseCount reports how many courses the catalog holds.
func (s *Store) CourseCount(ctx context.Context) (int, error) {
	count, err := s.backend.Count(ctx, collCatalog)
	if err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return count, nil
}

// ExistingCourseTitles lists every indexed course title. Folder
// ingestion uses it to skip documents that are already in the store.
func (s *Store) ExistingCourseTitles(ctx context.Context) ([]string, error) {
	titles, err := s.backend.ListIDs(ctx, collCatalog)
	if err != nil {
		return nil, fmt.Errorf("list course titles: %w", err)
	}
	return titles, nil
}

// ClearAll drops both collections for a full re-ingest.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.backend.Drop(ctx, collCatalog); err != nil {
		return fmt.Errorf("drop course catalog: %w", err)
	}
	if err := s.backend.Drop(ctx, collContent); err != nil {
		return fmt.Errorf("drop course content: %w", err)
	}
	return nil
}

// catalogText is what the catalog record embeds: enough signal for
// fuzzy course-name resolution.
func catalogText(c *course.Course) string {
	text := c.Title
	if c.Instructor != "" {
		text += " by " + c.Instructor
	}
	return text
}
