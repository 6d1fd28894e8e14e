// Package assist implements the AI helpers: ticket triage suggestions and a
// read-only question answering agent over a single ticket.
package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/tadbeer/helpdesk/internal/assist/llm"
	"github.com/tadbeer/helpdesk/internal/docsearch"
	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/observability"
	"github.com/tadbeer/helpdesk/internal/ratelimit"
	"github.com/tadbeer/helpdesk/internal/service"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

const (
	maxToolRounds  = 2
	maxSuggestTags = 5
	maxSummary     = 280
	docResults     = 3
)

// TicketReader is the part of the ticket service the agent needs. Every call
// applies the access policy for the caller.
type TicketReader interface {
	GetTicket(ctx context.Context, caller domain.Principal, ticketID string) (*service.TicketDetail, error)
}

// Suggestion is a proposed classification for a draft ticket.
type Suggestion struct {
	Category domain.TicketCategory `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
	Tags     []string              `json:"tags"`
	Summary  string                `json:"summary"`
}

// ToolCallRecord describes one tool invocation made while answering.
type ToolCallRecord struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Error     string `json:"error,omitempty"`
}

// Answer is the agent's reply.
type Answer struct {
	Answer    string           `json:"answer"`
	ToolCalls []ToolCallRecord `json:"toolCalls"`
}

// Assistant wires the LLM provider to helpdesk data.
type Assistant struct {
	provider llm.Provider
	tickets  TicketReader
	docs     *docsearch.Index
	limiter  ratelimit.Limiter
	logger   *zap.Logger
	metrics  *observability.Metrics
	timeout  time.Duration
}

// Dependencies bundles collaborators for the assistant. A nil Provider makes
// every call fail with SERVICE_UNAVAILABLE.
type Dependencies struct {
	Provider llm.Provider
	Tickets  TicketReader
	Docs     *docsearch.Index
	Limiter  ratelimit.Limiter
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Timeout  time.Duration
}

// New builds the assistant.
func New(deps Dependencies) *Assistant {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{
		provider: deps.Provider,
		tickets:  deps.Tickets,
		docs:     deps.Docs,
		limiter:  deps.Limiter,
		logger:   logger,
		metrics:  deps.Metrics,
		timeout:  deps.Timeout,
	}
}

// Enabled reports whether an LLM provider is configured.
func (a *Assistant) Enabled() bool {
	return a.provider != nil
}

func (a *Assistant) admit(ctx context.Context, caller domain.Principal) error {
	if a.provider == nil {
		return apperrors.NewUnavailable("AI assistant is not configured", nil)
	}
	if a.limiter != nil && !a.limiter.Allow(ctx, caller.UserID) {
		a.metrics.LLMRequest("rate_limited")
		return apperrors.NewRateLimited("AI request quota exceeded, try again shortly")
	}
	return nil
}

func (a *Assistant) complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	resp, err := a.provider.Complete(ctx, req)
	if err != nil {
		a.metrics.LLMRequest("error")
		a.logger.Warn("llm request failed", zap.Error(err))
		return nil, apperrors.NewUnavailable("AI provider request failed", err)
	}
	a.metrics.LLMRequest("ok")
	return resp, nil
}

const suggestPrompt = `You triage IT helpdesk tickets. Reply with a JSON object only:
{"category": one of Technical, Security, Feature, Account, Bug,
 "priority": one of low, medium, high, urgent,
 "tags": up to 5 short lowercase keywords,
 "summary": one sentence restating the problem}`

// Suggest classifies a draft ticket. Values outside the allowed sets fall
// back to Technical and medium.
func (a *Assistant) Suggest(ctx context.Context, caller domain.Principal, title, description string) (*Suggestion, error) {
	if err := a.admit(ctx, caller); err != nil {
		return nil, err
	}
	resp, err := a.complete(ctx, llm.Request{
		System:   suggestPrompt,
		JSONMode: true,
		Messages: []llm.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Title: %s\n\nDescription:\n%s", strings.TrimSpace(title), strings.TrimSpace(description)),
		}},
	})
	if err != nil {
		return nil, err
	}
	return parseSuggestion(resp.Content), nil
}

func parseSuggestion(content string) *Suggestion {
	var raw struct {
		Category string   `json:"category"`
		Priority string   `json:"priority"`
		Tags     []string `json:"tags"`
		Summary  string   `json:"summary"`
	}
	_ = json.Unmarshal([]byte(stripFences(content)), &raw)

	s := &Suggestion{
		Category: domain.TicketCategoryTechnical,
		Priority: domain.TicketPriorityMedium,
		Tags:     []string{},
		Summary:  clip(strings.TrimSpace(raw.Summary), maxSummary),
	}
	for _, c := range domain.TicketCategories {
		if strings.EqualFold(strings.TrimSpace(raw.Category), string(c)) {
			s.Category = c
		}
	}
	for _, p := range domain.TicketPriorities {
		if strings.EqualFold(strings.TrimSpace(raw.Priority), string(p)) {
			s.Priority = p
		}
	}
	seen := map[string]bool{}
	for _, tag := range raw.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		s.Tags = append(s.Tags, tag)
		if len(s.Tags) == maxSuggestTags {
			break
		}
	}
	return s
}

// stripFences removes a surrounding ``` block some models add despite JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// isDomainError reports whether err should reach the caller unchanged.
func isDomainError(err error) bool {
	var domainErr *apperrors.DomainError
	return errors.As(err, &domainErr)
}
