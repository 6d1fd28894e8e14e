package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/repository"
)

func TestTicketListOrderAndScope(t *testing.T) {
	ctx := context.Background()
	store := New()
	u1, u2 := "u1", "u2"

	for _, tk := range []*domain.Ticket{
		{Title: "first", CreatedBy: "u1", Status: domain.TicketStatusOpen},
		{Title: "second", CreatedBy: "u2", AssigneeID: &u1, Status: domain.TicketStatusOpen},
		{Title: "third", CreatedBy: "u2", Status: domain.TicketStatusClosed},
	} {
		if err := store.Tickets().Create(ctx, tk); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	mine, err := store.Tickets().List(ctx, repository.TicketFilter{ParticipantID: &u1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mine) != 2 || mine[0].Title != "second" || mine[1].Title != "first" {
		t.Fatalf("unexpected scoped list %+v", mine)
	}

	theirs, _ := store.Tickets().List(ctx, repository.TicketFilter{CreatedBy: &u2, Statuses: []domain.TicketStatus{domain.TicketStatusClosed}})
	if len(theirs) != 1 || theirs[0].Title != "third" {
		t.Fatalf("unexpected filtered list %+v", theirs)
	}

	counts, _ := store.Tickets().CountByStatus(ctx, repository.TicketFilter{})
	if counts[domain.TicketStatusOpen] != 2 || counts[domain.TicketStatusClosed] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestTicketUpdateKeepsCreator(t *testing.T) {
	ctx := context.Background()
	store := New()
	tk := &domain.Ticket{Title: "a", CreatedBy: "u1"}
	if err := store.Tickets().Create(ctx, tk); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tk.CreatedBy = "intruder"
	tk.Title = "b"
	if err := store.Tickets().Update(ctx, tk); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := store.Tickets().GetByID(ctx, tk.ID)
	if got.CreatedBy != "u1" || got.Title != "b" {
		t.Fatalf("unexpected ticket %+v", got)
	}
}

func TestReturnedTicketsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := New()
	tk := &domain.Ticket{Title: "a", CreatedBy: "u1", Tags: []string{"x"}}
	_ = store.Tickets().Create(ctx, tk)

	got, _ := store.Tickets().GetByID(ctx, tk.ID)
	got.Tags[0] = "mutated"

	again, _ := store.Tickets().GetByID(ctx, tk.ID)
	if again.Tags[0] != "x" {
		t.Fatalf("stored ticket was mutated through a returned copy")
	}
}

func TestRollbackKeepsWritesMadeOutsideTx(t *testing.T) {
	ctx := context.Background()
	store := New()
	boom := errors.New("boom")

	entered := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- store.WithinTx(ctx, func(tx repository.Store) error {
			if err := tx.Users().Create(ctx, &domain.User{Name: "Ghost", Email: "ghost@example.com", Role: domain.RoleUser}); err != nil {
				return err
			}
			close(entered)
			<-release
			return boom
		})
	}()
	<-entered

	ticket := &domain.Ticket{Title: "outside", CreatedBy: "u1", Status: domain.TicketStatusOpen}
	created := make(chan error, 1)
	go func() { created <- store.Tickets().Create(ctx, ticket) }()
	close(release)

	if err := <-txDone; !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := <-created; err != nil {
		t.Fatalf("Create outside tx: %v", err)
	}
	if _, err := store.Tickets().GetByID(ctx, ticket.ID); err != nil {
		t.Fatalf("write made outside the transaction was lost: %v", err)
	}
	if _, err := store.Users().GetByEmail(ctx, "ghost@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected rolled back user to be gone, got %v", err)
	}
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := New()
	dept := &domain.Department{Name: "IT"}
	err := store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Departments().Create(ctx, dept); err != nil {
			return err
		}
		return tx.WithinTx(ctx, func(inner repository.Store) error {
			dept.Description = "helpdesk"
			return inner.Departments().Update(ctx, dept)
		})
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
	got, err := store.Departments().GetByID(ctx, dept.ID)
	if err != nil || got.Description != "helpdesk" {
		t.Fatalf("expected committed department, got %+v, %v", got, err)
	}
}

func TestWithinTxRestoresOnError(t *testing.T) {
	ctx := context.Background()
	store := New()
	user := &domain.User{Name: "M", Email: "m@example.com", Role: domain.RoleAgent}
	_ = store.Users().Create(ctx, user)

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx repository.Store) error {
		user.Role = domain.RoleManager
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := store.Users().GetByID(ctx, user.ID)
	if got.Role != domain.RoleAgent {
		t.Fatalf("expected rollback, role is %s", got.Role)
	}
}

func TestUniqueEmailAndDepartmentName(t *testing.T) {
	ctx := context.Background()
	store := New()
	_ = store.Users().Create(ctx, &domain.User{Email: "a@example.com"})
	if err := store.Users().Create(ctx, &domain.User{Email: "A@example.com"}); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict on email, got %v", err)
	}

	_ = store.Departments().Create(ctx, &domain.Department{Name: "IT"})
	if err := store.Departments().Create(ctx, &domain.Department{Name: "IT"}); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict on name, got %v", err)
	}
}

func TestListOverdue(t *testing.T) {
	ctx := context.Background()
	store := New()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	due := &domain.Ticket{Title: "due", CreatedBy: "u1", Status: domain.TicketStatusOpen, DueDate: &past}
	resolved := &domain.Ticket{Title: "done", CreatedBy: "u1", Status: domain.TicketStatusResolved, DueDate: &past}
	later := &domain.Ticket{Title: "later", CreatedBy: "u1", Status: domain.TicketStatusOpen, DueDate: &future}
	for _, tk := range []*domain.Ticket{due, resolved, later} {
		_ = store.Tickets().Create(ctx, tk)
	}

	overdue, _ := store.Tickets().ListOverdue(ctx, time.Now(), 10)
	if len(overdue) != 1 || overdue[0].ID != due.ID {
		t.Fatalf("unexpected overdue %+v", overdue)
	}

	_ = store.Tickets().MarkOverdueNotified(ctx, due.ID, time.Now())
	overdue, _ = store.Tickets().ListOverdue(ctx, time.Now(), 10)
	if len(overdue) != 0 {
		t.Fatalf("expected no overdue after marking, got %d", len(overdue))
	}
}

func TestNotificationsReadFlow(t *testing.T) {
	ctx := context.Background()
	store := New()
	for i := 0; i < 3; i++ {
		_ = store.Notifications().Create(ctx, &domain.Notification{UserID: "u1", Type: domain.NotificationSystem})
	}
	_ = store.Notifications().Create(ctx, &domain.Notification{UserID: "u2", Type: domain.NotificationSystem})

	list, _ := store.Notifications().ListByUser(ctx, "u1", false, 0)
	if len(list) != 3 || !list[0].CreatedAt.After(list[2].CreatedAt) {
		t.Fatalf("expected newest first, got %+v", list)
	}

	if err := store.Notifications().MarkRead(ctx, list[0].ID, time.Now()); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	unread, _ := store.Notifications().CountUnread(ctx, "u1")
	if unread != 2 {
		t.Fatalf("expected 2 unread, got %d", unread)
	}

	updated, _ := store.Notifications().MarkAllRead(ctx, "u1", time.Now())
	if updated != 2 {
		t.Fatalf("expected 2 updated, got %d", updated)
	}
	other, _ := store.Notifications().CountUnread(ctx, "u2")
	if other != 1 {
		t.Fatalf("other user's notifications must stay unread")
	}
}
