package service

import (
	"context"
	"sync"
	"testing"

	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/repository/memory"
)

func TestAdminCreatesTicketWithAssignee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	admin := f.seedUser(t, "admin", domain.RoleAdmin)
	f.seedUser(t, "u1", domain.RoleUser)

	ticket, err := f.tickets.CreateTicket(ctx, admin, TicketCreateInput{
		Title:      "X",
		Category:   domain.TicketCategoryBug,
		AssigneeID: strPtr("u1"),
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.Status != domain.TicketStatusOpen || ticket.Priority != domain.TicketPriorityMedium {
		t.Fatalf("unexpected defaults %s/%s", ticket.Status, ticket.Priority)
	}
	if ticket.CreatedBy != "admin" {
		t.Fatalf("createdBy should be the caller, got %q", ticket.CreatedBy)
	}

	got := f.notificationsFor(t, "u1")
	if len(got) != 1 || got[0].Type != domain.NotificationTicketAssigned {
		t.Fatalf("expected exactly one ticket_assigned for u1, got %+v", got)
	}
	if got[0].Link != "/tickets/"+ticket.ID {
		t.Fatalf("unexpected link %q", got[0].Link)
	}
	if len(f.notificationsFor(t, "admin")) != 0 {
		t.Fatalf("creator must not be notified")
	}
}

func TestCreateWithoutAssigneeIsSilent(t *testing.T) {
	f := newFixture(t, nil)
	agent := f.seedUser(t, "agent", domain.RoleAgent)

	if _, err := f.tickets.CreateTicket(context.Background(), agent, TicketCreateInput{Title: "Y", Category: domain.TicketCategoryAccount}); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if n, _ := f.store.Notifications().CountUnread(context.Background(), "agent"); n != 0 {
		t.Fatalf("expected no notifications, got %d", n)
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	admin := f.seedUser(t, "admin", domain.RoleAdmin)
	user := f.seedUser(t, "u1", domain.RoleUser)

	tests := []struct {
		name   string
		caller domain.Principal
		input  TicketCreateInput
		code   string
	}{
		{"user role", user, TicketCreateInput{Title: "a", Category: domain.TicketCategoryBug}, "FORBIDDEN"},
		{"missing title", admin, TicketCreateInput{Title: "  ", Category: domain.TicketCategoryBug}, "VALIDATION_FAILED"},
		{"bad category", admin, TicketCreateInput{Title: "a", Category: "Hardware"}, "VALIDATION_FAILED"},
		{"bad priority", admin, TicketCreateInput{Title: "a", Category: domain.TicketCategoryBug, Priority: "critical"}, "VALIDATION_FAILED"},
		{"bad status", admin, TicketCreateInput{Title: "a", Category: domain.TicketCategoryBug, Status: "done"}, "VALIDATION_FAILED"},
		{"unknown assignee", admin, TicketCreateInput{Title: "a", Category: domain.TicketCategoryBug, AssigneeID: strPtr("ghost")}, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tickets.CreateTicket(ctx, tt.caller, tt.input)
			requireCode(t, err, tt.code)
		})
	}
}

func TestUserListingNeverReturnsForeignTickets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	agent := f.seedUser(t, "agent", domain.RoleAgent)
	manager := f.seedUser(t, "manager", domain.RoleManager)
	u1 := f.seedUser(t, "u1", domain.RoleUser)
	f.seedUser(t, "u2", domain.RoleUser)

	mine, _ := f.tickets.CreateTicket(ctx, agent, TicketCreateInput{Title: "for u1", Category: domain.TicketCategoryBug, AssigneeID: strPtr("u1")})
	_, _ = f.tickets.CreateTicket(ctx, agent, TicketCreateInput{Title: "for u2", Category: domain.TicketCategoryBug, AssigneeID: strPtr("u2")})
	_, _ = f.tickets.CreateTicket(ctx, manager, TicketCreateInput{Title: "unassigned", Category: domain.TicketCategoryBug})

	list, err := f.tickets.ListTickets(ctx, u1, TicketListFilter{})
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(list) != 1 || list[0].ID != mine.ID {
		t.Fatalf("user saw foreign tickets: %+v", list)
	}

	// asking for someone else's tickets still stays inside the caller's scope
	list, _ = f.tickets.ListTickets(ctx, u1, TicketListFilter{AssigneeID: strPtr("u2")})
	if len(list) != 0 {
		t.Fatalf("filter escaped scope: %+v", list)
	}

	all, _ := f.tickets.ListTickets(ctx, manager, TicketListFilter{})
	if len(all) != 3 || all[0].Title != "unassigned" {
		t.Fatalf("manager should see all tickets newest first, got %+v", all)
	}

	agentList, _ := f.tickets.ListTickets(ctx, agent, TicketListFilter{})
	if len(agentList) != 2 {
		t.Fatalf("agent should see the tickets they created, got %d", len(agentList))
	}
}

func TestGetTicketAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	agent := f.seedUser(t, "agent", domain.RoleAgent)
	u1 := f.seedUser(t, "u1", domain.RoleUser)
	u2 := f.seedUser(t, "u2", domain.RoleUser)

	ticket, _ := f.tickets.CreateTicket(ctx, agent, TicketCreateInput{Title: "T", Category: domain.TicketCategoryBug, AssigneeID: strPtr("u1")})

	if _, err := f.tickets.GetTicket(ctx, u2, ticket.ID); err == nil {
		t.Fatalf("expected forbidden")
	} else {
		requireCode(t, err, "FORBIDDEN")
	}
	_, err := f.tickets.GetTicket(ctx, u2, "missing")
	requireCode(t, err, "NOT_FOUND")

	detail, err := f.tickets.GetTicket(ctx, u1, ticket.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if detail.Ticket.ID != ticket.ID || len(detail.Comments) != 0 {
		t.Fatalf("unexpected detail %+v", detail)
	}
}

func TestUpdateNotifiesOnlyOnNewAssignee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	admin := f.seedUser(t, "admin", domain.RoleAdmin)
	f.seedUser(t, "u1", domain.RoleAgent)
	f.seedUser(t, "u2", domain.RoleAgent)

	ticket, _ := f.tickets.CreateTicket(ctx, admin, TicketCreateInput{Title: "T", Category: domain.TicketCategoryBug, AssigneeID: strPtr("u1")})

	// other fields: silent
	if _, err := f.tickets.UpdateTicket(ctx, admin, ticket.ID, TicketUpdateInput{Title: strPtr("T2"), AssigneeID: strPtr("u1")}); err != nil {
		t.Fatalf("UpdateTicket: %v", err)
	}
	if got := len(f.notificationsFor(t, "u1")); got != 1 {
		t.Fatalf("expected only the creation notification for u1, got %d", got)
	}

	updated, err := f.tickets.UpdateTicket(ctx, admin, ticket.ID, TicketUpdateInput{AssigneeID: strPtr("u2")})
	if err != nil {
		t.Fatalf("UpdateTicket: %v", err)
	}
	if updated.Assignee() != "u2" || updated.Title != "T2" || updated.CreatedBy != "admin" {
		t.Fatalf("unexpected ticket %+v", updated)
	}
	got := f.notificationsFor(t, "u2")
	if len(got) != 1 || got[0].Type != domain.NotificationTicketAssigned {
		t.Fatalf("expected ticket_assigned for u2, got %+v", got)
	}

	// unassigning is silent
	if _, err := f.tickets.UpdateTicket(ctx, admin, ticket.ID, TicketUpdateInput{AssigneeID: strPtr("")}); err != nil {
		t.Fatalf("UpdateTicket: %v", err)
	}
	if len(f.notificationsFor(t, "u2")) != 1 || len(f.notificationsFor(t, "u1")) != 1 {
		t.Fatalf("unassign must not notify")
	}
}

func TestUpdateDeniedForStranger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	agent := f.seedUser(t, "agent", domain.RoleAgent)
	stranger := f.seedUser(t, "agent2", domain.RoleAgent)

	ticket, _ := f.tickets.CreateTicket(ctx, agent, TicketCreateInput{Title: "T", Category: domain.TicketCategoryBug})
	_, err := f.tickets.UpdateTicket(ctx, stranger, ticket.ID, TicketUpdateInput{Title: strPtr("hijack")})
	requireCode(t, err, "FORBIDDEN")

	stored, _ := f.store.Tickets().GetByID(ctx, ticket.ID)
	if stored.Title != "T" {
		t.Fatalf("denied update must not write")
	}
}

func TestChangeStatusIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	admin := f.seedUser(t, "admin", domain.RoleAdmin)
	f.seedUser(t, "u1", domain.RoleAgent)
	ticket, _ := f.tickets.CreateTicket(ctx, admin, TicketCreateInput{Title: "T", Category: domain.TicketCategoryBug, AssigneeID: strPtr("u1")})

	first, err := f.tickets.ChangeStatus(ctx, admin, ticket.ID, domain.TicketStatusResolved)
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	before := len(f.notificationsFor(t, "u1"))

	second, err := f.tickets.ChangeStatus(ctx, admin, ticket.ID, domain.TicketStatusResolved)
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if !second.UpdatedAt.Equal(first.UpdatedAt) || second.Status != first.Status {
		t.Fatalf("repeat status change should not write")
	}
	if after := len(f.notificationsFor(t, "u1")); after != before {
		t.Fatalf("repeat status change produced notifications")
	}

	// any-to-any: closed tickets may reopen
	if _, err := f.tickets.ChangeStatus(ctx, admin, ticket.ID, domain.TicketStatusClosed); err != nil {
		t.Fatalf("ChangeStatus closed: %v", err)
	}
	reopened, err := f.tickets.ChangeStatus(ctx, admin, ticket.ID, domain.TicketStatusOpen)
	if err != nil || reopened.Status != domain.TicketStatusOpen {
		t.Fatalf("reopen failed: %v", err)
	}

	_, err = f.tickets.ChangeStatus(ctx, admin, ticket.ID, "archived")
	requireCode(t, err, "VALIDATION_FAILED")
}

func TestCommentRecipients(t *testing.T) {
	tests := []struct {
		name                      string
		assignee, creator, author string
		want                      []string
	}{
		{"both notified", "a", "c", "x", []string{"a", "c"}},
		{"author is assignee", "a", "c", "a", []string{"c"}},
		{"author is creator", "a", "c", "c", []string{"a"}},
		{"assignee is creator", "a", "a", "x", []string{"a"}},
		{"self thread", "a", "a", "a", nil},
		{"unassigned", "", "c", "x", []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CommentRecipients(tt.assignee, tt.creator, tt.author)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestAddCommentNotifiesParticipants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	agent := f.seedUser(t, "agent", domain.RoleAgent)
	u1 := f.seedUser(t, "u1", domain.RoleUser)

	ticket, _ := f.tickets.CreateTicket(ctx, agent, TicketCreateInput{Title: "T", Category: domain.TicketCategoryBug, AssigneeID: strPtr("u1")})
	baseline := len(f.notificationsFor(t, "u1"))

	comment, err := f.tickets.AddComment(ctx, u1, ticket.ID, "  it still fails  ")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if comment.Content != "it still fails" || comment.UserID != "u1" {
		t.Fatalf("unexpected comment %+v", comment)
	}
	if len(f.notificationsFor(t, "u1")) != baseline {
		t.Fatalf("commenter must not notify themselves")
	}
	got := f.notificationsFor(t, "agent")
	if len(got) != 1 || got[0].Type != domain.NotificationCommentAdded {
		t.Fatalf("expected one comment_added for creator, got %+v", got)
	}

	_, err = f.tickets.AddComment(ctx, u1, ticket.ID, "   ")
	requireCode(t, err, "VALIDATION_FAILED")
}

func TestCommentOnOwnUnassignedTicketIsSilent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	agent := f.seedUser(t, "agent", domain.RoleAgent)
	ticket, _ := f.tickets.CreateTicket(ctx, agent, TicketCreateInput{Title: "T", Category: domain.TicketCategoryBug})

	if _, err := f.tickets.AddComment(ctx, agent, ticket.ID, "note to self"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if len(f.notificationsFor(t, "agent")) != 0 {
		t.Fatalf("no notification expected")
	}
}

func TestDeleteCommentSoftDeletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	agent := f.seedUser(t, "agent", domain.RoleAgent)
	u1 := f.seedUser(t, "u1", domain.RoleUser)
	manager := f.seedUser(t, "manager", domain.RoleManager)

	ticket, _ := f.tickets.CreateTicket(ctx, agent, TicketCreateInput{Title: "T", Category: domain.TicketCategoryBug, AssigneeID: strPtr("u1")})
	first, _ := f.tickets.AddComment(ctx, u1, ticket.ID, "first")
	second, _ := f.tickets.AddComment(ctx, agent, ticket.ID, "second")

	err := f.tickets.DeleteComment(ctx, u1, ticket.ID, second.ID)
	requireCode(t, err, "FORBIDDEN")

	if err := f.tickets.DeleteComment(ctx, u1, ticket.ID, first.ID); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	if err := f.tickets.DeleteComment(ctx, manager, ticket.ID, second.ID); err != nil {
		t.Fatalf("manager delete: %v", err)
	}
	err = f.tickets.DeleteComment(ctx, manager, ticket.ID, second.ID)
	requireCode(t, err, "NOT_FOUND")

	detail, _ := f.tickets.GetTicket(ctx, agent, ticket.ID)
	if len(detail.Comments) != 0 {
		t.Fatalf("deleted comments must be hidden, got %d", len(detail.Comments))
	}
	stored, _ := f.store.Comments().GetByID(ctx, first.ID)
	if !stored.Deleted() {
		t.Fatalf("comment row should remain with deletedAt set")
	}
}

func TestGetTicketCommentsAscending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	agent := f.seedUser(t, "agent", domain.RoleAgent)
	ticket, _ := f.tickets.CreateTicket(ctx, agent, TicketCreateInput{Title: "T", Category: domain.TicketCategoryBug})
	for _, text := range []string{"one", "two", "three"} {
		if _, err := f.tickets.AddComment(ctx, agent, ticket.ID, text); err != nil {
			t.Fatalf("AddComment: %v", err)
		}
	}
	detail, _ := f.tickets.GetTicket(ctx, agent, ticket.ID)
	if len(detail.Comments) != 3 || detail.Comments[0].Content != "one" || detail.Comments[2].Content != "three" {
		t.Fatalf("unexpected order %+v", detail.Comments)
	}
}

func TestDeleteTicket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	agent := f.seedUser(t, "agent", domain.RoleAgent)
	manager := f.seedUser(t, "manager", domain.RoleManager)

	ticket, _ := f.tickets.CreateTicket(ctx, agent, TicketCreateInput{Title: "T", Category: domain.TicketCategoryBug})
	comment, _ := f.tickets.AddComment(ctx, agent, ticket.ID, "kept")

	requireCode(t, f.tickets.DeleteTicket(ctx, agent, ticket.ID), "FORBIDDEN")
	if err := f.tickets.DeleteTicket(ctx, manager, ticket.ID); err != nil {
		t.Fatalf("DeleteTicket: %v", err)
	}
	requireCode(t, f.tickets.DeleteTicket(ctx, manager, ticket.ID), "NOT_FOUND")

	if _, err := f.store.Comments().GetByID(ctx, comment.ID); err != nil {
		t.Fatalf("comments are not cascaded: %v", err)
	}
}

func TestNotificationFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, brokenNotificationStore{memory.New()})
	admin := f.seedUser(t, "admin", domain.RoleAdmin)
	f.seedUser(t, "u1", domain.RoleAgent)

	ticket, err := f.tickets.CreateTicket(ctx, admin, TicketCreateInput{Title: "T", Category: domain.TicketCategoryBug, AssigneeID: strPtr("u1")})
	if err != nil {
		t.Fatalf("CreateTicket should succeed despite notification failure: %v", err)
	}
	if _, err := f.store.Tickets().GetByID(ctx, ticket.ID); err != nil {
		t.Fatalf("ticket must be persisted: %v", err)
	}
	if _, err := f.tickets.AddComment(ctx, admin, ticket.ID, "hello"); err != nil {
		t.Fatalf("AddComment should succeed despite notification failure: %v", err)
	}
}

func TestConcurrentAssigneeUpdatesLastWriteWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	admin := f.seedUser(t, "admin", domain.RoleAdmin)
	for _, id := range []string{"u1", "u2", "u3"} {
		f.seedUser(t, id, domain.RoleAgent)
	}
	ticket, _ := f.tickets.CreateTicket(ctx, admin, TicketCreateInput{Title: "T", Category: domain.TicketCategoryBug, AssigneeID: strPtr("u1")})

	var wg sync.WaitGroup
	for _, target := range []string{"u2", "u3"} {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			if _, err := f.tickets.UpdateTicket(ctx, admin, ticket.ID, TicketUpdateInput{AssigneeID: strPtr(target)}); err != nil {
				t.Errorf("UpdateTicket(%s): %v", target, err)
			}
		}(target)
	}
	wg.Wait()

	stored, _ := f.store.Tickets().GetByID(ctx, ticket.ID)
	final := stored.Assignee()
	if final != "u2" && final != "u3" {
		t.Fatalf("unexpected final assignee %q", final)
	}
	if len(f.notificationsFor(t, final)) != 1 {
		t.Fatalf("the winning assignee must have been notified exactly once")
	}
	for _, id := range []string{"u2", "u3"} {
		for _, n := range f.notificationsFor(t, id) {
			if n.Type != domain.NotificationTicketAssigned {
				t.Fatalf("unexpected notification type %s", n.Type)
			}
		}
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	agent := f.seedUser(t, "agent", domain.RoleAgent)
	other := f.seedUser(t, "agent2", domain.RoleAgent)

	a, _ := f.tickets.CreateTicket(ctx, agent, TicketCreateInput{Title: "a", Category: domain.TicketCategoryBug})
	_, _ = f.tickets.CreateTicket(ctx, agent, TicketCreateInput{Title: "b", Category: domain.TicketCategoryBug})
	_, _ = f.tickets.CreateTicket(ctx, other, TicketCreateInput{Title: "c", Category: domain.TicketCategoryBug})
	_, _ = f.tickets.ChangeStatus(ctx, agent, a.ID, domain.TicketStatusPending)

	stats, err := f.tickets.Stats(ctx, agent)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 || stats.ByStatus[domain.TicketStatusOpen] != 1 || stats.ByStatus[domain.TicketStatusPending] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if _, ok := stats.ByStatus[domain.TicketStatusClosed]; !ok {
		t.Fatalf("every status should be present")
	}
}
