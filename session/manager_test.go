package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/fabfab/course-rag/llm"
)

func TestCreateStartsEmptySession(t *testing.T) {
	m := NewManager(2)

	id := m.Create()
	if id == "" {
		t.Fatal("expected non-empty session id")
	}

	history, ok := m.History(id)
	if !ok {
		t.Fatal("expected session to exist")
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(history))
	}
}

func TestHistoryUnknownSession(t *testing.T) {
	m := NewManager(2)
	if _, ok := m.History("missing"); ok {
		t.Fatal("expected unknown session to report !ok")
	}
}

func TestAddExchangeTrimsOldestPairs(t *testing.T) {
	m := NewManager(2)
	id := m.Create()

	for i := 1; i <= 4; i++ {
		m.AddExchange(id, fmt.Sprintf("Q%d", i), fmt.Sprintf("A%d", i))
	}

	history, ok := m.History(id)
	if !ok {
		t.Fatal("expected session to exist")
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(history))
	}

	want := []struct {
		role    string
		content string
	}{
		{llm.RoleUser, "Q3"},
		{llm.RoleAssistant, "A3"},
		{llm.RoleUser, "Q4"},
		{llm.RoleAssistant, "A4"},
	}
	for i, w := range want {
		if history[i].Role != w.role || history[i].Content != w.content {
			t.Fatalf("entry %d = %+v, want %s %q", i, history[i], w.role, w.content)
		}
	}
}

func TestAddExchangeZeroHistoryKeepsNothing(t *testing.T) {
	m := NewManager(0)
	id := m.Create()

	m.AddExchange(id, "question", "answer")

	history, ok := m.History(id)
	if !ok {
		t.Fatal("expected session to exist")
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history with bound 0, got %d entries", len(history))
	}
}

func TestAddExchangeUnknownIDStartsSession(t *testing.T) {
	m := NewManager(2)

	m.AddExchange("external-id", "question", "answer")

	history, ok := m.History("external-id")
	if !ok {
		t.Fatal("expected session to exist after AddExchange")
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	m := NewManager(2)
	id := m.Create()
	m.AddExchange(id, "question", "answer")

	history, _ := m.History(id)
	history[0].Content = "mutated"

	fresh, _ := m.History(id)
	if fresh[0].Content != "question" {
		t.Fatal("History must return a copy, stored entries were mutated")
	}
}

func TestAddExchangeConcurrentPairsStayWhole(t *testing.T) {
	m := NewManager(10)
	id := m.Create()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.AddExchange(id, fmt.Sprintf("Q%d", n), fmt.Sprintf("A%d", n))
		}(i)
	}
	wg.Wait()

	history, _ := m.History(id)
	if len(history) != 16 {
		t.Fatalf("expected 16 entries, got %d", len(history))
	}
	for i := 0; i < len(history); i += 2 {
		if history[i].Role != llm.RoleUser || history[i+1].Role != llm.RoleAssistant {
			t.Fatalf("pair at %d interleaved: %s then %s", i, history[i].Role, history[i+1].Role)
		}
		if history[i].Content[1:] != history[i+1].Content[1:] {
			t.Fatalf("pair at %d mismatched: %q vs %q", i, history[i].Content, history[i+1].Content)
		}
	}
}

func TestClearDropsAllSessions(t *testing.T) {
	m := NewManager(2)
	id := m.Create()
	m.AddExchange(id, "question", "answer")

	m.Clear()

	if _, ok := m.History(id); ok {
		t.Fatal("expected session to be gone after Clear")
	}
}
