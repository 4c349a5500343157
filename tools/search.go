package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fabfab/course-rag/llm"
	"github.com/fabfab/course-rag/vectorstore"
)

const SearchToolName = "search_course_content"

// SearchTool runs a similarity search over course content, optionally
// narrowed to one course and one lesson. Not safe for concurrent use;
// the orchestrator builds a fresh registry per query.
type SearchTool struct {
	store      *vectorstore.Store
	maxResults int
	sources    []Source
}

func NewSearchTool(store *vectorstore.Store, maxResults int) *SearchTool {
	return &SearchTool{store: store, maxResults: maxResults}
}

func (t *SearchTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        SearchToolName,
		Description: "Search course materials for content relevant to a question. Optionally restrict the search to one course and one lesson.",
		InputSchema: llm.Schema{
			Type: "object",
			Properties: map[string]llm.Property{
				"query": {
					Type:        "string",
					Description: "What to look for in the course content",
				},
				"course_name": {
					Type:        "string",
					Description: "Course title to search within; partial titles are matched to the closest course",
				},
				"lesson_number": {
					Type:        "integer",
					Description: "Restrict results to one lesson number",
				},
			},
			Required: []string{"query"},
		},
	}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, ok := stringArg(args, "query")
	if !ok {
		return "", fmt.Errorf("%w: query argument is required", ErrInvalidArguments)
	}

	courseFilter := ""
	if name, ok := stringArg(args, "course_name"); ok {
		resolved, err := t.store.ResolveCourseName(ctx, name)
		if err != nil {
			if errors.Is(err, vectorstore.ErrUnknownCourse) {
				t.sources = nil
				return fmt.Sprintf("No course found matching %q.", name), nil
			}
			return "", err
		}
		courseFilter = resolved
	}

	var lessonFilter *int
	if number, ok, err := intArg(args, "lesson_number"); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	} else if ok {
		lessonFilter = &number
	}

	results, err := t.store.Search(ctx, query, courseFilter, lessonFilter, t.maxResults)
	if err != nil {
		return "", err
	}

	if len(results) == 0 {
		t.sources = nil
		return emptyResultMessage(courseFilter, lessonFilter), nil
	}

	t.sources = make([]Source, 0, len(results))
	var sb strings.Builder
	for i, result := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("%d. %s\n%s", i+1, resultLabel(result), result.Content))
		t.sources = append(t.sources, Source{
			Course:  result.CourseTitle,
			Lesson:  result.LessonNumber,
			Content: result.Content,
		})
	}
	return sb.String(), nil
}

func (t *SearchTool) LastSources() []Source { return t.sources }

func (t *SearchTool) ResetSources() { t.sources = nil }

func resultLabel(result vectorstore.SearchResult) string {
	if result.LessonNumber != nil {
		return fmt.Sprintf("[%s - Lesson %d]", result.CourseTitle, *result.LessonNumber)
	}
	return fmt.Sprintf("[%s]", result.CourseTitle)
}

func emptyResultMessage(courseFilter string, lessonFilter *int) string {
	msg := "No relevant content found"
	if courseFilter != "" {
		msg += fmt.Sprintf(" in course %q", courseFilter)
	}
	if lessonFilter != nil {
		msg += fmt.Sprintf(" in lesson %d", *lessonFilter)
	}
	return msg + "."
}

var _ Tool = (*SearchTool)(nil)
