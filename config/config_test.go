package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"LLM_PROVIDER", "LLM_MODEL", "EMBEDDINGS_PROVIDER", "EMBEDDINGS_MODEL",
		"VECTOR_BACKEND", "CHUNK_SIZE", "CHUNK_OVERLAP", "MAX_RESULTS",
		"MAX_HISTORY", "MAX_TOOL_ROUNDS", "LISTEN_ADDR",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.LLM.Provider != ProviderOllama {
		t.Fatalf("unexpected default llm provider: %q", cfg.LLM.Provider)
	}
	if cfg.VectorBackend != BackendEmbedded {
		t.Fatalf("unexpected default backend: %q", cfg.VectorBackend)
	}
	if cfg.ChunkSize != 800 || cfg.ChunkOverlap != 100 {
		t.Fatalf("unexpected chunking defaults: %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.MaxResults != 5 || cfg.MaxHistory != 2 || cfg.MaxToolRounds != 5 {
		t.Fatalf("unexpected bounds: %d/%d/%d", cfg.MaxResults, cfg.MaxHistory, cfg.MaxToolRounds)
	}
	if cfg.ListenAddr != ":8000" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddr)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", ProviderOpenAI)
	t.Setenv("LLM_MODEL", "gpt-4o-mini")
	t.Setenv("CHUNK_SIZE", "400")
	t.Setenv("CHUNK_OVERLAP", "50")

	cfg := Load()

	if cfg.LLM.Provider != ProviderOpenAI || cfg.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("environment not applied: %+v", cfg.LLM)
	}
	if cfg.ChunkSize != 400 || cfg.ChunkOverlap != 50 {
		t.Fatalf("chunking not applied: %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
}

func TestLoadClampsOverlapBelowChunkSize(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "250")

	cfg := Load()

	if cfg.ChunkOverlap != 99 {
		t.Fatalf("overlap not clamped: %d", cfg.ChunkOverlap)
	}
}

func TestLoadIgnoresUnparsableInt(t *testing.T) {
	t.Setenv("MAX_RESULTS", "plenty")

	cfg := Load()

	if cfg.MaxResults != 5 {
		t.Fatalf("expected fallback for unparsable int, got %d", cfg.MaxResults)
	}
}

func TestValidate(t *testing.T) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	bad := cfg
	bad.VectorBackend = "filing-cabinet"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	bad = cfg
	bad.ChunkSize = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for zero chunk size")
	}

	bad = cfg
	bad.MaxHistory = -1
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for negative history bound")
	}
}
