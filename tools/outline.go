package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fabfab/course-rag/llm"
	"github.com/fabfab/course-rag/vectorstore"
)

const OutlineToolName = "get_course_outline"

// OutlineTool returns a course's metadata and full lesson list from the
// catalog, without touching the content collection.
type OutlineTool struct {
	store   *vectorstore.Store
	sources []Source
}

func NewOutlineTool(store *vectorstore.Store) *OutlineTool {
	return &OutlineTool{store: store}
}

func (t *OutlineTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        OutlineToolName,
		Description: "Get a course's title, link, instructor, and complete lesson list. Partial course titles are matched to the closest course.",
		InputSchema: llm.Schema{
			Type: "object",
			Properties: map[string]llm.Property{
				"course_name": {
					Type:        "string",
					Description: "Course title to look up",
				},
			},
			Required: []string{"course_name"},
		},
	}
}

func (t *OutlineTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	name, ok := stringArg(args, "course_name")
	if !ok {
		return "", fmt.Errorf("%w: course_name argument is required", ErrInvalidArguments)
	}

	title, err := t.store.ResolveCourseName(ctx, name)
	if err != nil {
		if errors.Is(err, vectorstore.ErrUnknownCourse) {
			t.sources = nil
			return fmt.Sprintf("No course found matching %q.", name), nil
		}
		return "", err
	}

	outline, err := t.store.GetCourseOutline(ctx, title)
	if err != nil {
		if errors.Is(err, vectorstore.ErrUnknownCourse) {
			t.sources = nil
			return fmt.Sprintf("No course found matching %q.", name), nil
		}
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Course: " + outline.Title)
	if outline.CourseLink != "" {
		sb.WriteString("\nCourse Link: " + outline.CourseLink)
	}
	if outline.Instructor != "" {
		sb.WriteString("\nInstructor: " + outline.Instructor)
	}
	sb.WriteString(fmt.Sprintf("\nLessons (%d):", len(outline.Lessons)))
	for _, lesson := range outline.Lessons {
		sb.WriteString(fmt.Sprintf("\n%d. %s", lesson.LessonNumber, lesson.Title))
		if lesson.LessonLink != "" {
			sb.WriteString(" (" + lesson.LessonLink + ")")
		}
	}

	t.sources = []Source{{Course: outline.Title, Content: outline.CourseLink}}
	return sb.String(), nil
}

func (t *OutlineTool) LastSources() []Source { return t.sources }

func (t *OutlineTool) ResetSources() { t.sources = nil }

var _ Tool = (*OutlineTool)(nil)
