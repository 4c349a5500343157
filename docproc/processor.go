// Package docproc parses structured course documents and splits their
// text into overlapping chunks ready for similarity indexing.
package docproc

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/fabfab/course-rag/course"
)

const (
	courseTitleKey      = "Course Title:"
	courseLinkKey       = "Course Link:"
	courseInstructorKey = "Course Instructor:"
	lessonLinkKey       = "Lesson Link:"
)

var lessonMarkerRE = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// Processor turns raw course text into a Course plus its ordered chunks.
// Construction-time parameters only; safe for concurrent use.
type Processor struct {
	chunkSize int
	overlap   int
}

func NewProcessor(chunkSize, overlap int) *Processor {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return &Processor{chunkSize: chunkSize, overlap: overlap}
}

// ProcessFile reads and processes one course document. PDF files are
// converted to plain text first; everything else is read as UTF-8 text.
func (p *Processor) ProcessFile(path string) (*course.Course, []course.Chunk, error) {
	var raw string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err := extractPDFText(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read pdf %s: %w", path, err)
		}
		raw = text
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read course document %s: %w", path, err)
		}
		raw = string(data)
	}

	fallback := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return p.Process(raw, fallback)
}

// Process parses the course header grammar and lesson blocks, then
// chunks each body segment. The header keys may appear in any order,
// each at most once; a malformed or repeated header line is ignored.
// Text before the first lesson marker chunks with no lesson number.
func (p *Processor) Process(raw, fallbackTitle string) (*course.Course, []course.Chunk, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	c := &course.Course{}
	idx := parseHeader(lines, c)
	if c.Title == "" {
		c.Title = strings.TrimSpace(fallbackTitle)
	}
	if c.Title == "" {
		return nil, nil, fmt.Errorf("course document has no title")
	}

	var chunks []course.Chunk
	nextIndex := 0

	emit := func(body []string, lesson *int) {
		for _, content := range chunkText(strings.Join(body, "\n"), p.chunkSize, p.overlap) {
			chunks = append(chunks, course.Chunk{
				Content:      content,
				CourseTitle:  c.Title,
				LessonNumber: lesson,
				ChunkIndex:   nextIndex,
			})
			nextIndex++
		}
	}

	var body []string
	var currentLesson *int

	flush := func() {
		emit(body, currentLesson)
		body = body[:0]
	}

	for i := idx; i < len(lines); i++ {
		line := lines[i]

		if m := lessonMarkerRE.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flush()

			// Lesson numbering starts at 0 in course documents.
			number, err := strconv.Atoi(m[1])
			if err != nil {
				body = append(body, line)
				continue
			}

			lesson := course.Lesson{LessonNumber: number, Title: strings.TrimSpace(m[2])}
			if i+1 < len(lines) {
				if link, ok := headerValue(lines[i+1], lessonLinkKey); ok {
					lesson.LessonLink = link
					i++
				}
			}
			if c.Lesson(number) == nil {
				c.Lessons = append(c.Lessons, lesson)
			}
			currentLesson = &lesson.LessonNumber
			continue
		}

		body = append(body, line)
	}
	flush()

	return c, chunks, nil
}

// parseHeader consumes the leading course metadata lines and returns the
// index of the first line that belongs to the document body.
func parseHeader(lines []string, c *course.Course) int {
	i := 0
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}

		if value, ok := headerValue(trimmed, courseTitleKey); ok {
			if c.Title == "" {
				c.Title = value
			}
			continue
		}
		if value, ok := headerValue(trimmed, courseLinkKey); ok {
			if c.CourseLink == "" {
				c.CourseLink = value
			}
			continue
		}
		if value, ok := headerValue(trimmed, courseInstructorKey); ok {
			if c.Instructor == "" {
				c.Instructor = value
			}
			continue
		}

		break
	}
	return i
}

func headerValue(line, key string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, key) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, key)), true
}
