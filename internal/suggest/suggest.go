// Package suggest generates starter questions for a database and caches
// them per schema hash.
package suggest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/lumen/internal/llm"
	"github.com/leapstack-labs/lumen/internal/schema"
	"github.com/leapstack-labs/lumen/internal/state"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// Count is the number of questions requested and returned.
const Count = 10

const userMessage = "Generate 10 suggestion questions."

var temperature float32 = 0.7

const systemPrompt = `You are a data analyst assistant. Given the database schema below, generate 10 diverse, natural-language questions that a business user might ask about this data.

%SCHEMA%

## Rules
1. Each question must be specific to the schema: reference real tables and concepts.
2. Vary question types: trends, comparisons, top-N, aggregations, distributions, outliers.
3. Use natural language a non-technical person would use. No SQL syntax or column names.
4. Keep each question under 60 characters.`

// Service produces suggestions.
type Service struct {
	llm    llm.Provider
	cache  state.SuggestionCache
	logger *slog.Logger
}

// New creates a Service. cache may be nil, in which case every call asks
// the model.
func New(provider llm.Provider, cache state.SuggestionCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{llm: provider, cache: cache, logger: logger}
}

// Suggestions returns questions for sc. Cached questions for sc's hash are
// returned unless refresh is set.
func (s *Service) Suggestions(ctx context.Context, sc *schema.Context, refresh bool) core.Result[[]string] {
	if sc == nil {
		return core.Fail[[]string](core.Errorf(core.CodeSchemaStale, "no schema available").
			WithHint("Run `lumen schema --refresh`"))
	}
	hash := sc.Hash
	if hash == "" {
		hash = schema.Hash(sc)
	}

	if s.cache != nil && !refresh {
		cached, ok, err := s.cache.Suggestions(ctx, hash)
		switch {
		case err != nil:
			s.logger.Warn("could not read suggestion cache", slog.String("error", err.Error()))
		case ok:
			s.logger.Debug("suggestions cache hit", slog.String("hash", hash))
			return core.Ok(cached)
		}
	}

	if s.llm == nil {
		return core.Fail[[]string](core.Errorf(core.CodeConfigError, "no llm provider configured"))
	}
	call, err := s.llm.Invoke(ctx, llm.Request{
		System:      strings.Replace(systemPrompt, "%SCHEMA%", schema.XML(sc), 1),
		Messages:    []llm.Message{llm.UserMessage(userMessage)},
		Tool:        llm.SuggestTool(),
		Temperature: &temperature,
		MaxTokens:   1024,
	})
	if err != nil {
		return core.Fail[[]string](core.Errorf(core.CodeLLMError, "suggestions call failed: %v", err))
	}
	raw, err := llm.ParseSuggestions(call)
	if err != nil {
		return core.Fail[[]string](core.Errorf(core.CodeLLMError, "suggestions call failed: %v", err))
	}

	questions := Clean(raw)
	if s.cache != nil && len(questions) > 0 {
		if err := s.cache.SaveSuggestions(ctx, hash, questions); err != nil {
			s.logger.Warn("could not save suggestion cache", slog.String("error", err.Error()))
		}
	}
	return core.Ok(questions)
}

// Clean trims questions, drops blanks and duplicates, and keeps at most
// Count of them.
func Clean(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, Count)
	for _, q := range raw {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) == Count {
			break
		}
	}
	return out
}
