package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tadbeer/helpdesk/internal/assist/llm"
	"github.com/tadbeer/helpdesk/internal/domain"
)

const agentPrompt = `You are a helpdesk assistant answering questions about one ticket.
Use the tools to read the ticket, its comments and the help articles. Tools are
read-only. Answer concisely; say so when the data does not contain the answer.`

var agentTools = []llm.Tool{
	{
		Name:        "get_ticket",
		Description: "Fetch a ticket's fields by id.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"ticket_id":{"type":"string"}},"required":["ticket_id"]}`),
	},
	{
		Name:        "list_comments",
		Description: "List the visible comments on a ticket, oldest first.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"ticket_id":{"type":"string"}},"required":["ticket_id"]}`),
	},
	{
		Name:        "search_docs",
		Description: "Search the internal help articles.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
	},
}

// Ask answers a question about one ticket. The caller must be allowed to read
// the ticket, and every tool call is checked again for the same caller. After
// two tool rounds the model must answer without tools.
func (a *Assistant) Ask(ctx context.Context, caller domain.Principal, ticketID, question string) (*Answer, error) {
	if err := a.admit(ctx, caller); err != nil {
		return nil, err
	}
	if _, err := a.tickets.GetTicket(ctx, caller, ticketID); err != nil {
		return nil, err
	}

	messages := []llm.Message{{
		Role:    "user",
		Content: fmt.Sprintf("Ticket id: %s\n\nQuestion: %s", ticketID, strings.TrimSpace(question)),
	}}
	answer := &Answer{ToolCalls: []ToolCallRecord{}}

	for round := 0; ; round++ {
		req := llm.Request{System: agentPrompt, Messages: messages}
		if round < maxToolRounds {
			req.Tools = agentTools
		}
		resp, err := a.complete(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(resp.ToolCalls) == 0 || round >= maxToolRounds {
			answer.Answer = strings.TrimSpace(resp.Content)
			return answer, nil
		}

		messages = append(messages, llm.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			output, toolErr := a.runTool(ctx, caller, call)
			record := ToolCallRecord{Name: call.Name, Arguments: call.Arguments}
			if toolErr != nil {
				record.Error = toolErr.Error()
				output = fmt.Sprintf(`{"error":%q}`, toolErr.Error())
			}
			answer.ToolCalls = append(answer.ToolCalls, record)
			messages = append(messages, llm.Message{Role: "tool", ToolCallID: call.ID, Content: output})
		}
	}
}

type ticketView struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Priority     string   `json:"priority"`
	Status       string   `json:"status"`
	CreatedBy    string   `json:"createdBy"`
	Assignee     string   `json:"assignee,omitempty"`
	DueDate      string   `json:"dueDate,omitempty"`
	Tags         []string `json:"tags"`
	CreatedAt    string   `json:"createdAt"`
	CommentCount int      `json:"commentCount"`
}

type commentView struct {
	Author    string `json:"author"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

// runTool executes one tool call. Access denials and unknown tools are
// returned to the model as tool errors rather than failing the request.
func (a *Assistant) runTool(ctx context.Context, caller domain.Principal, call llm.ToolCall) (string, error) {
	var args struct {
		TicketID string `json:"ticket_id"`
		Query    string `json:"query"`
	}
	if strings.TrimSpace(call.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}

	switch call.Name {
	case "get_ticket", "list_comments":
		detail, err := a.tickets.GetTicket(ctx, caller, args.TicketID)
		if err != nil {
			if !isDomainError(err) {
				a.logger.Warn("agent tool failed", zap.String("tool", call.Name), zap.Error(err))
			}
			return "", err
		}
		if call.Name == "list_comments" {
			views := make([]commentView, 0, len(detail.Comments))
			for _, c := range detail.Comments {
				views = append(views, commentView{Author: c.UserID, Text: c.Content, CreatedAt: c.CreatedAt.Format(time.RFC3339)})
			}
			return marshal(views)
		}
		t := detail.Ticket
		view := ticketView{
			ID:           t.ID,
			Title:        t.Title,
			Description:  t.Description,
			Category:     string(t.Category),
			Priority:     string(t.Priority),
			Status:       string(t.Status),
			CreatedBy:    t.CreatedBy,
			Assignee:     t.Assignee(),
			Tags:         t.Tags,
			CreatedAt:    t.CreatedAt.Format(time.RFC3339),
			CommentCount: len(detail.Comments),
		}
		if t.DueDate != nil {
			view.DueDate = t.DueDate.Format(time.RFC3339)
		}
		return marshal(view)

	case "search_docs":
		if a.docs == nil {
			return "[]", nil
		}
		return marshal(a.docs.Search(args.Query, docResults))
	}
	return "", fmt.Errorf("unknown tool %q", call.Name)
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
