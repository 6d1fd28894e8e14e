package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/events"
	"github.com/tadbeer/helpdesk/internal/repository"
	"github.com/tadbeer/helpdesk/internal/repository/memory"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

type fixture struct {
	store         repository.Store
	tickets       *TicketService
	notifications *NotificationService
}

func newFixture(t *testing.T, store repository.Store) *fixture {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop(), nil)
	notifications := NewNotificationService(NotificationDependencies{Store: store})
	notifications.RegisterHandlers(dispatcher)
	return &fixture{
		store:         store,
		tickets:       NewTicketService(TicketDependencies{Store: store, Dispatcher: dispatcher}),
		notifications: notifications,
	}
}

// seedUser stores a user with a fixed id and returns its principal.
func (f *fixture) seedUser(t *testing.T, id string, role domain.Role) domain.Principal {
	t.Helper()
	user := &domain.User{
		ID:     id,
		Name:   id,
		Email:  id + "@example.com",
		Role:   role,
		Status: domain.UserStatusActive,
	}
	if err := f.store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return domain.PrincipalFor(user)
}

func (f *fixture) notificationsFor(t *testing.T, userID string) []domain.Notification {
	t.Helper()
	list, err := f.store.Notifications().ListByUser(context.Background(), userID, false, 100)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	return list
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func strPtr(s string) *string { return &s }

// brokenNotifications fails every notification insert.
type brokenNotifications struct {
	repository.NotificationRepository
}

func (brokenNotifications) Create(context.Context, *domain.Notification) error {
	return errors.New("notifications table unavailable")
}

type brokenNotificationStore struct {
	*memory.Store
}

func (s brokenNotificationStore) Notifications() repository.NotificationRepository {
	return brokenNotifications{s.Store.Notifications()}
}
