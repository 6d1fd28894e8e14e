package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/tadbeer/helpdesk/internal/domain"
)

func TestNotificationListUnreadOnly(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "user_id", "type", "title", "message", "link", "is_read", "read_at", "created_at"}).
		AddRow("n2", "u1", "comment_added", "New comment", "", "/tickets/t1", false, nil, now)
	mock.ExpectQuery("FROM notifications WHERE user_id=\\$1 AND is_read = FALSE ORDER BY created_at DESC LIMIT \\$2").
		WithArgs("u1", 50).
		WillReturnRows(rows)

	list, err := store.Notifications().ListByUser(context.Background(), "u1", true, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 1 || list[0].Type != domain.NotificationCommentAdded || list[0].ReadAt != nil {
		t.Fatalf("unexpected notifications %+v", list)
	}
}

func TestNotificationMarkAllRead(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE notifications SET is_read = TRUE").
		WithArgs(sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	updated, err := store.Notifications().MarkAllRead(context.Background(), "u1", time.Now())
	if err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if updated != 3 {
		t.Fatalf("expected 3 updated, got %d", updated)
	}
}

func TestNotificationMarkReadMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE notifications SET is_read = TRUE, read_at = COALESCE").
		WithArgs(sqlmock.AnyArg(), "n404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Notifications().MarkRead(context.Background(), "n404", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCommentListSkipsDeleted(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "ticket_id", "user_id", "content", "deleted_at", "created_at", "updated_at"}).
		AddRow("c1", "t1", "u1", "first", nil, now, now)
	mock.ExpectQuery("FROM comments\\s+WHERE ticket_id=\\$1 AND deleted_at IS NULL\\s+ORDER BY created_at ASC").
		WithArgs("t1").
		WillReturnRows(rows)

	comments, err := store.Comments().ListByTicket(context.Background(), "t1")
	if err != nil {
		t.Fatalf("ListByTicket: %v", err)
	}
	if len(comments) != 1 || comments[0].Deleted() {
		t.Fatalf("unexpected comments %+v", comments)
	}
}

func TestUserGetByEmailLowercases(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role", "status", "department_id", "created_at", "updated_at"}).
		AddRow("u1", "Sara", "sara@example.com", "hash", "agent", "active", "d1", now, now)
	mock.ExpectQuery("FROM users WHERE email=\\$1").WithArgs("sara@example.com").WillReturnRows(rows)

	user, err := store.Users().GetByEmail(context.Background(), "Sara@Example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if user.Role != domain.RoleAgent || user.DepartmentID == nil || *user.DepartmentID != "d1" {
		t.Fatalf("unexpected user %+v", user)
	}
}
