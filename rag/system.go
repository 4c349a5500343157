// Package rag composes the document processor, retrieval store, tool
// layer, session manager, and LLM client into the query and ingestion
// pipelines.
package rag

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fabfab/course-rag/course"
	"github.com/fabfab/course-rag/docproc"
	"github.com/fabfab/course-rag/llm"
	"github.com/fabfab/course-rag/session"
	"github.com/fabfab/course-rag/tools"
	"github.com/fabfab/course-rag/vectorstore"
)

const capExceededAnswer = "I was not able to finish researching this question. Please try asking it again, perhaps more specifically."

// Config holds the orchestrator's construction-time bounds.
type Config struct {
	MaxResults    int
	MaxToolRounds int
}

type System struct {
	processor *docproc.Processor
	store     *vectorstore.Store
	llm       llm.Client
	sessions  *session.Manager
	logger    *log.Logger

	maxResults    int
	maxToolRounds int
}

func NewSystem(
	processor *docproc.Processor,
	store *vectorstore.Store,
	llmClient llm.Client,
	sessions *session.Manager,
	logger *log.Logger,
	cfg Config,
) *System {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 5
	}

	return &System{
		processor:     processor,
		store:         store,
		llm:           llmClient,
		sessions:      sessions,
		logger:        logger,
		maxResults:    cfg.MaxResults,
		maxToolRounds: cfg.MaxToolRounds,
	}
}

// Query answers one question, running the model/tool loop until the
// model returns final text or the round cap is hit. It returns the
// answer, the sources the tools consulted, and the session id (created
// when none was supplied). A failed turn leaves session history
// untouched.
func (s *System) Query(ctx context.Context, query, sessionID string) (string, []tools.Source, string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil, "", fmt.Errorf("query cannot be empty")
	}
	if s.llm == nil {
		return "", nil, "", fmt.Errorf("llm client is not configured")
	}

	var history []llm.Message
	if sessionID == "" {
		// Fresh conversation: nothing to fetch.
		sessionID = s.sessions.Create()
	} else if stored, ok := s.sessions.History(sessionID); ok {
		history = stored
	}

	// One registry per in-flight query keeps recorded sources isolated
	// between concurrent turns.
	registry := s.newRegistry()

	answer, err := s.runToolLoop(ctx, query, history, registry)
	if err != nil {
		return "", nil, sessionID, err
	}

	s.sessions.AddExchange(sessionID, query, answer)

	sources := registry.LastSources()
	registry.ResetSources()

	return answer, sources, sessionID, nil
}

func (s *System) newRegistry() *tools.Registry {
	registry := tools.NewRegistry()
	// Names are distinct by construction.
	_ = registry.Register(tools.NewSearchTool(s.store, s.maxResults))
	_ = registry.Register(tools.NewOutlineTool(s.store))
	return registry
}

// runToolLoop alternates model generation with sequential tool
// execution. Every round completes all requested tool calls before the
// next generation, so the transcript stays linear.
func (s *System) runToolLoop(ctx context.Context, query string, history []llm.Message, registry *tools.Registry) (string, error) {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt()})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	definitions := registry.Definitions()

	lastText := ""
	for round := 0; round < s.maxToolRounds; round++ {
		completion, err := s.llm.Generate(ctx, messages, definitions)
		if err != nil {
			return "", fmt.Errorf("llm generate: %w", err)
		}

		if len(completion.ToolCalls) == 0 {
			return strings.TrimSpace(completion.Content), nil
		}

		lastText = strings.TrimSpace(completion.Content)
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})

		for _, call := range completion.ToolCalls {
			result, execErr := registry.Execute(ctx, call.Name, call.Arguments)
			if execErr != nil {
				if errors.Is(execErr, tools.ErrUnknownTool) || errors.Is(execErr, tools.ErrInvalidArguments) {
					// Recoverable: tell the model what went wrong and
					// let it try again.
					result = fmt.Sprintf("Tool error: %v", execErr)
				} else {
					return "", fmt.Errorf("execute tool %s: %w", call.Name, execErr)
				}
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	s.logger.Printf("tool loop hit the %d-round cap, returning degraded answer", s.maxToolRounds)
	if lastText != "" {
		return lastText, nil
	}
	return capExceededAnswer, nil
}

// AddCourseDocument parses and indexes one course document.
func (s *System) AddCourseDocument(ctx context.Context, path string) (*course.Course, int, error) {
	c, chunks, err := s.processor.ProcessFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("process course document: %w", err)
	}

	if err := s.store.AddCourseMetadata(ctx, c); err != nil {
		return nil, 0, err
	}
	if err := s.store.AddCourseContent(ctx, chunks); err != nil {
		return nil, 0, err
	}

	return c, len(chunks), nil
}

// AddCourseFolder ingests every candidate document in dir, skipping
// titles that are already indexed so a re-run is idempotent. A bad
// document is logged and skipped, never aborting the batch. A missing
// folder ingests nothing.
func (s *System) AddCourseFolder(ctx context.Context, dir string, clearExisting bool) (int, int, error) {
	if clearExisting {
		s.logger.Printf("clearing existing course data")
		if err := s.store.ClearAll(ctx); err != nil {
			return 0, 0, err
		}
	}

	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Printf("course folder %s does not exist", dir)
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("course folder: %w", err)
	}

	titles, err := s.store.ExistingCourseTitles(ctx)
	if err != nil {
		return 0, 0, err
	}
	existing := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		existing[title] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read course folder: %w", err)
	}

	courses, totalChunks := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !isCourseDocument(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		c, chunks, err := s.processor.ProcessFile(path)
		if err != nil {
			s.logger.Printf("skipping %s: %v", path, err)
			continue
		}
		if _, ok := existing[c.Title]; ok {
			s.logger.Printf("course %q already indexed, skipping %s", c.Title, path)
			continue
		}

		if err := s.store.AddCourseMetadata(ctx, c); err != nil {
			s.logger.Printf("index metadata for %s: %v", path, err)
			continue
		}
		if err := s.store.AddCourseContent(ctx, chunks); err != nil {
			s.logger.Printf("index content for %s: %v", path, err)
			continue
		}

		existing[c.Title] = struct{}{}
		courses++
		totalChunks += len(chunks)
		s.logger.Printf("ingested %q (%d chunks)", c.Title, len(chunks))
	}

	return courses, totalChunks, nil
}

// CourseAnalytics reports the catalog size and the indexed titles.
func (s *System) CourseAnalytics(ctx context.Context) (int, []string, error) {
	count, err := s.store.CourseCount(ctx)
	if err != nil {
		return 0, nil, err
	}
	titles, err := s.store.ExistingCourseTitles(ctx)
	if err != nil {
		return 0, nil, err
	}
	return count, titles, nil
}

func isCourseDocument(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".pdf":
		return true
	default:
		return false
	}
}

func systemPrompt() string {
	return "You are an assistant for a course materials knowledge base. " +
		"Use the search_course_content tool to answer questions about specific course content, and the get_course_outline tool for questions about a course's structure, lessons, or instructor. " +
		"Answer general-knowledge questions directly without tools. " +
		"When you use tool results, keep the answer grounded in them; if the tools find nothing relevant, say so plainly. " +
		"Answer concisely and do not mention the tools themselves."
}
