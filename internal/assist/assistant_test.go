package assist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tadbeer/helpdesk/internal/assist/llm"
	"github.com/tadbeer/helpdesk/internal/docsearch"
	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/repository/memory"
	"github.com/tadbeer/helpdesk/internal/service"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

// scriptedProvider replays responses in order and records requests.
type scriptedProvider struct {
	responses []*llm.Response
	err       error
	requests  []llm.Request
}

func (p *scriptedProvider) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.requests) > len(p.responses) {
		return &llm.Response{Content: "out of script"}, nil
	}
	return p.responses[len(p.requests)-1], nil
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) bool { return false }

type helpdesk struct {
	tickets *service.TicketService
	owner   domain.Principal
	other   domain.Principal
	ticket  *domain.Ticket
}

func newHelpdesk(t *testing.T) *helpdesk {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	for _, u := range []domain.User{
		{ID: "agent", Name: "agent", Email: "agent@example.com", Role: domain.RoleAgent, Status: domain.UserStatusActive},
		{ID: "u2", Name: "u2", Email: "u2@example.com", Role: domain.RoleUser, Status: domain.UserStatusActive},
	} {
		u := u
		if err := store.Users().Create(ctx, &u); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	tickets := service.NewTicketService(service.TicketDependencies{Store: store})
	owner := domain.Principal{UserID: "agent", Role: domain.RoleAgent}
	ticket, err := tickets.CreateTicket(ctx, owner, service.TicketCreateInput{Title: "VPN down", Description: "client says auth failed", Category: domain.TicketCategoryTechnical})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if _, err := tickets.AddComment(ctx, owner, ticket.ID, "rebooted, still failing"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	return &helpdesk{
		tickets: tickets,
		owner:   owner,
		other:   domain.Principal{UserID: "u2", Role: domain.RoleUser},
		ticket:  ticket,
	}
}

func TestDisabledAssistantIsUnavailable(t *testing.T) {
	a := New(Dependencies{})
	_, err := a.Suggest(context.Background(), domain.Principal{UserID: "u1"}, "t", "d")
	if !apperrors.IsCode(err, "SERVICE_UNAVAILABLE") {
		t.Fatalf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
	if a.Enabled() {
		t.Fatalf("assistant without provider reports enabled")
	}
}

func TestQuotaExceeded(t *testing.T) {
	provider := &scriptedProvider{}
	a := New(Dependencies{Provider: provider, Limiter: denyAll{}})
	_, err := a.Suggest(context.Background(), domain.Principal{UserID: "u1"}, "t", "d")
	if !apperrors.IsCode(err, "RATE_LIMITED") {
		t.Fatalf("expected RATE_LIMITED, got %v", err)
	}
	if len(provider.requests) != 0 {
		t.Fatalf("provider must not be called over quota")
	}
}

func TestSuggestCoercesValues(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		category domain.TicketCategory
		priority domain.TicketPriority
		tags     int
	}{
		{"valid", `{"category":"security","priority":"URGENT","tags":["phishing","Email","email"],"summary":"Phishing mail."}`, domain.TicketCategorySecurity, domain.TicketPriorityUrgent, 2},
		{"unknown values", `{"category":"Hardware","priority":"critical","tags":[]}`, domain.TicketCategoryTechnical, domain.TicketPriorityMedium, 0},
		{"fenced", "```json\n{\"category\":\"Bug\",\"priority\":\"low\"}\n```", domain.TicketCategoryBug, domain.TicketPriorityLow, 0},
		{"not json", `I think this is a bug`, domain.TicketCategoryTechnical, domain.TicketPriorityMedium, 0},
		{"too many tags", `{"tags":["a","b","c","d","e","f","g"]}`, domain.TicketCategoryTechnical, domain.TicketPriorityMedium, maxSuggestTags},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &scriptedProvider{responses: []*llm.Response{{Content: tt.content}}}
			a := New(Dependencies{Provider: provider})
			got, err := a.Suggest(context.Background(), domain.Principal{UserID: "u1"}, "Title", "Body")
			if err != nil {
				t.Fatalf("Suggest: %v", err)
			}
			if got.Category != tt.category || got.Priority != tt.priority || len(got.Tags) != tt.tags {
				t.Fatalf("unexpected suggestion %+v", got)
			}
			if !provider.requests[0].JSONMode {
				t.Fatalf("suggest should request JSON output")
			}
		})
	}
}

func TestSuggestProviderFailure(t *testing.T) {
	a := New(Dependencies{Provider: &scriptedProvider{err: errors.New("boom")}})
	_, err := a.Suggest(context.Background(), domain.Principal{UserID: "u1"}, "t", "d")
	if !apperrors.IsCode(err, "SERVICE_UNAVAILABLE") {
		t.Fatalf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
}

func TestAskRunsToolsThenAnswers(t *testing.T) {
	h := newHelpdesk(t)
	docs, err := docsearch.NewBuiltin()
	if err != nil {
		t.Fatalf("docs: %v", err)
	}
	provider := &scriptedProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "get_ticket", Arguments: `{"ticket_id":"` + h.ticket.ID + `"}`},
			{ID: "c2", Name: "list_comments", Arguments: `{"ticket_id":"` + h.ticket.ID + `"}`},
		}},
		{ToolCalls: []llm.ToolCall{{ID: "c3", Name: "search_docs", Arguments: `{"query":"vpn will not connect"}`}}},
		{Content: "  Reinstall the VPN client.  "},
	}}
	a := New(Dependencies{Provider: provider, Tickets: h.tickets, Docs: docs})

	answer, err := a.Ask(context.Background(), h.owner, h.ticket.ID, "What should I try next?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Answer != "Reinstall the VPN client." || len(answer.ToolCalls) != 3 {
		t.Fatalf("unexpected answer %+v", answer)
	}
	for _, call := range answer.ToolCalls {
		if call.Error != "" {
			t.Fatalf("tool %s failed: %s", call.Name, call.Error)
		}
	}

	if len(provider.requests) != 3 {
		t.Fatalf("requests = %d, want 3", len(provider.requests))
	}
	if len(provider.requests[0].Tools) == 0 || len(provider.requests[1].Tools) == 0 {
		t.Fatalf("tool rounds should offer tools")
	}
	if len(provider.requests[2].Tools) != 0 {
		t.Fatalf("final round must not offer tools")
	}

	second := provider.requests[1].Messages
	var sawComment bool
	for _, m := range second {
		if m.Role == "tool" && strings.Contains(m.Content, "rebooted, still failing") {
			sawComment = true
		}
	}
	if !sawComment {
		t.Fatalf("list_comments output not passed back to the model")
	}
	final := provider.requests[2].Messages
	last := final[len(final)-1]
	if last.Role != "tool" || !strings.Contains(last.Content, "VPN will not connect") {
		t.Fatalf("search_docs output missing: %+v", last)
	}
}

func TestAskChecksAccess(t *testing.T) {
	h := newHelpdesk(t)
	provider := &scriptedProvider{}
	a := New(Dependencies{Provider: provider, Tickets: h.tickets})

	_, err := a.Ask(context.Background(), h.other, h.ticket.ID, "what is this?")
	if !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
	_, err = a.Ask(context.Background(), h.owner, "missing", "what is this?")
	if !apperrors.IsCode(err, "NOT_FOUND") {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if len(provider.requests) != 0 {
		t.Fatalf("provider must not see tickets the caller cannot read")
	}
}

func TestAskToolCallsRecheckPolicy(t *testing.T) {
	h := newHelpdesk(t)
	ctx := context.Background()
	foreign, err := h.tickets.CreateTicket(ctx, domain.Principal{UserID: "someone", Role: domain.RoleManager}, service.TicketCreateInput{Title: "HR only", Category: domain.TicketCategoryAccount})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	provider := &scriptedProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "get_ticket", Arguments: `{"ticket_id":"` + foreign.ID + `"}`},
			{ID: "c2", Name: "drop_tables", Arguments: `{}`},
		}},
		{Content: "I cannot see that ticket."},
	}}
	a := New(Dependencies{Provider: provider, Tickets: h.tickets})

	answer, err := a.Ask(ctx, h.owner, h.ticket.ID, "what does the HR ticket say?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(answer.ToolCalls) != 2 || answer.ToolCalls[0].Error == "" || answer.ToolCalls[1].Error == "" {
		t.Fatalf("denied and unknown tools should be reported as errors: %+v", answer.ToolCalls)
	}
	for _, m := range provider.requests[1].Messages {
		if m.Role == "tool" && strings.Contains(m.Content, "HR only") {
			t.Fatalf("foreign ticket leaked to the model")
		}
	}
}
