// Package memory provides an in-process repository.Store used by tests and by
// the API when no Postgres DSN is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/repository"
)

type state struct {
	tickets       map[string]domain.Ticket
	comments      map[string]domain.Comment
	notifications map[string]domain.Notification
	users         map[string]domain.User
	departments   map[string]domain.Department
}

func newState() state {
	return state{
		tickets:       map[string]domain.Ticket{},
		comments:      map[string]domain.Comment{},
		notifications: map[string]domain.Notification{},
		users:         map[string]domain.User{},
		departments:   map[string]domain.Department{},
	}
}

func (s state) clone() state {
	out := newState()
	for k, v := range s.tickets {
		out.tickets[k] = cloneTicket(v)
	}
	for k, v := range s.comments {
		out.comments[k] = v
	}
	for k, v := range s.notifications {
		out.notifications[k] = v
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.departments {
		out.departments[k] = v
	}
	return out
}

// Store keeps every entity in maps guarded by one mutex. txMu is held for the
// whole of a transaction and briefly by every write.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data state
	now  func() time.Time
	last time.Time
	inTx bool
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newState(), now: time.Now}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Tickets() repository.TicketRepository             { return ticketRepo{s} }
func (s *Store) Comments() repository.CommentRepository           { return commentRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }
func (s *Store) Users() repository.UserRepository                 { return userRepo{s} }
func (s *Store) Departments() repository.DepartmentRepository     { return departmentRepo{s} }

// WithinTx runs fn against a copy of the data and swaps the copy in when fn
// succeeds. Writers outside the transaction wait on txMu until it finishes,
// so a rollback never discards their writes.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	tx := &Store{data: s.data.clone(), now: s.now, last: s.last, inTx: true}
	s.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = tx.data
	s.last = tx.last
	s.mu.Unlock()
	return nil
}

// lockWrite takes the data lock after any open transaction has finished.
func (s *Store) lockWrite() func() {
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// stamp returns strictly increasing times so listings order by insertion.
func (s *Store) stamp() time.Time {
	now := s.now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

func conflict(what string) error {
	return fmt.Errorf("%w: %s", repository.ErrConflict, what)
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	if t.Tags != nil {
		t.Tags = append([]string{}, t.Tags...)
	}
	if t.Attachments != nil {
		t.Attachments = append([]domain.Attachment{}, t.Attachments...)
	}
	if t.AssigneeID != nil {
		v := *t.AssigneeID
		t.AssigneeID = &v
	}
	if t.DueDate != nil {
		v := *t.DueDate
		t.DueDate = &v
	}
	if t.OverdueNotifiedAt != nil {
		v := *t.OverdueNotifiedAt
		t.OverdueNotifiedAt = &v
	}
	return t
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func normalizeTicket(t domain.Ticket) domain.Ticket {
	t = cloneTicket(t)
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Attachments == nil {
		t.Attachments = []domain.Attachment{}
	}
	if t.AssigneeID != nil && *t.AssigneeID == "" {
		t.AssigneeID = nil
	}
	return t
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	defer r.s.lockWrite()()

	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if _, exists := r.s.data.tickets[ticket.ID]; exists {
		return conflict("tickets_pkey")
	}
	now := r.s.stamp()
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	stored := normalizeTicket(*ticket)
	r.s.data.tickets[ticket.ID] = stored
	*ticket = cloneTicket(stored)
	return nil
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	defer r.s.lockWrite()()

	existing, ok := r.s.data.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	ticket.CreatedBy = existing.CreatedBy
	ticket.CreatedAt = existing.CreatedAt
	ticket.OverdueNotifiedAt = existing.OverdueNotifiedAt
	if !sameTime(existing.DueDate, ticket.DueDate) {
		ticket.OverdueNotifiedAt = nil
	}
	ticket.UpdatedAt = r.s.stamp()
	stored := normalizeTicket(*ticket)
	r.s.data.tickets[ticket.ID] = stored
	*ticket = cloneTicket(stored)
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.data.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneTicket(t)
	return &out, nil
}

func (r ticketRepo) Delete(_ context.Context, id string) error {
	defer r.s.lockWrite()()

	if _, ok := r.s.data.tickets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.tickets, id)
	return nil
}

func (r ticketRepo) matching(filter repository.TicketFilter) []domain.Ticket {
	out := []domain.Ticket{}
	for _, t := range r.s.data.tickets {
		if matchesTicket(t, filter) {
			out = append(out, cloneTicket(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	all := r.matching(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []domain.Ticket{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r ticketRepo) CountByStatus(_ context.Context, filter repository.TicketFilter) (map[domain.TicketStatus]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	counts := map[domain.TicketStatus]int{}
	for _, t := range r.matching(filter) {
		counts[t.Status]++
	}
	return counts, nil
}

func (r ticketRepo) ListOverdue(_ context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []domain.Ticket{}
	for _, t := range r.s.data.tickets {
		if t.DueDate == nil || !t.DueDate.Before(now) || t.OverdueNotifiedAt != nil || t.Status.Terminal() {
			continue
		}
		out = append(out, cloneTicket(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r ticketRepo) MarkOverdueNotified(_ context.Context, id string, at time.Time) error {
	defer r.s.lockWrite()()

	t, ok := r.s.data.tickets[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.OverdueNotifiedAt = &at
	r.s.data.tickets[id] = t
	return nil
}

func matchesTicket(t domain.Ticket, f repository.TicketFilter) bool {
	if len(f.Statuses) > 0 && !contains(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
		return false
	}
	if len(f.Categories) > 0 && !contains(f.Categories, t.Category) {
		return false
	}
	if f.AssigneeID != nil && t.Assignee() != *f.AssigneeID {
		return false
	}
	if f.CreatedBy != nil && t.CreatedBy != *f.CreatedBy {
		return false
	}
	if f.ParticipantID != nil && t.CreatedBy != *f.ParticipantID && t.Assignee() != *f.ParticipantID {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if term != "" && !strings.Contains(strings.ToLower(t.Title), term) && !strings.Contains(strings.ToLower(t.Description), term) {
			return false
		}
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, comment *domain.Comment) error {
	defer r.s.lockWrite()()

	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	now := r.s.stamp()
	comment.CreatedAt, comment.UpdatedAt = now, now
	r.s.data.comments[comment.ID] = *comment
	return nil
}

func (r commentRepo) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.data.comments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []domain.Comment{}
	for _, c := range r.s.data.comments {
		if c.TicketID == ticketID && c.DeletedAt == nil {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r commentRepo) SoftDelete(_ context.Context, id string, at time.Time) error {
	defer r.s.lockWrite()()

	c, ok := r.s.data.comments[id]
	if !ok || c.DeletedAt != nil {
		return repository.ErrNotFound
	}
	c.DeletedAt = &at
	c.UpdatedAt = at
	r.s.data.comments[id] = c
	return nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	defer r.s.lockWrite()()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = r.s.stamp()
	r.s.data.notifications[n.ID] = *n
	return nil
}

func (r notificationRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.data.notifications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &n, nil
}

func (r notificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []domain.Notification{}
	for _, n := range r.s.data.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r notificationRepo) CountUnread(_ context.Context, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for _, n := range r.s.data.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r notificationRepo) MarkRead(_ context.Context, id string, at time.Time) error {
	defer r.s.lockWrite()()

	n, ok := r.s.data.notifications[id]
	if !ok {
		return repository.ErrNotFound
	}
	n.IsRead = true
	if n.ReadAt == nil {
		n.ReadAt = &at
	}
	r.s.data.notifications[id] = n
	return nil
}

func (r notificationRepo) MarkAllRead(_ context.Context, userID string, at time.Time) (int, error) {
	defer r.s.lockWrite()()

	updated := 0
	for id, n := range r.s.data.notifications {
		if n.UserID != userID || n.IsRead {
			continue
		}
		n.IsRead = true
		readAt := at
		n.ReadAt = &readAt
		r.s.data.notifications[id] = n
		updated++
	}
	return updated, nil
}

func (r notificationRepo) Delete(_ context.Context, id string) error {
	defer r.s.lockWrite()()

	if _, ok := r.s.data.notifications[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.notifications, id)
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) emailTaken(email, exceptID string) bool {
	for id, u := range r.s.data.users {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	defer r.s.lockWrite()()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(user.Email)
	if r.emailTaken(user.Email, "") {
		return conflict("users_email_key")
	}
	now := r.s.stamp()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.data.users[user.ID] = *user
	return nil
}

func (r userRepo) Update(_ context.Context, user *domain.User) error {
	defer r.s.lockWrite()()

	existing, ok := r.s.data.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	user.Email = strings.ToLower(user.Email)
	if r.emailTaken(user.Email, user.ID) {
		return conflict("users_email_key")
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = r.s.stamp()
	r.s.data.users[user.ID] = *user
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email = strings.ToLower(email)
	for _, u := range r.s.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []domain.User{}
	for _, u := range r.s.data.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Status != nil && u.Status != *filter.Status {
			continue
		}
		if filter.DepartmentID != nil && (u.DepartmentID == nil || *u.DepartmentID != *filter.DepartmentID) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r userRepo) Delete(_ context.Context, id string) error {
	defer r.s.lockWrite()()

	if _, ok := r.s.data.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.users, id)
	return nil
}

func (r userRepo) ClearDepartment(_ context.Context, departmentID string) error {
	defer r.s.lockWrite()()

	now := r.s.stamp()
	for id, u := range r.s.data.users {
		if u.DepartmentID != nil && *u.DepartmentID == departmentID {
			u.DepartmentID = nil
			u.UpdatedAt = now
			r.s.data.users[id] = u
		}
	}
	return nil
}

type departmentRepo struct{ s *Store }

func (r departmentRepo) nameTaken(name, exceptID string) bool {
	for id, d := range r.s.data.departments {
		if id != exceptID && d.Name == name {
			return true
		}
	}
	return false
}

func (r departmentRepo) Create(_ context.Context, dept *domain.Department) error {
	defer r.s.lockWrite()()

	if dept.ID == "" {
		dept.ID = uuid.NewString()
	}
	if r.nameTaken(dept.Name, "") {
		return conflict("departments_name_key")
	}
	now := r.s.stamp()
	dept.CreatedAt, dept.UpdatedAt = now, now
	r.s.data.departments[dept.ID] = *dept
	return nil
}

func (r departmentRepo) Update(_ context.Context, dept *domain.Department) error {
	defer r.s.lockWrite()()

	existing, ok := r.s.data.departments[dept.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.nameTaken(dept.Name, dept.ID) {
		return conflict("departments_name_key")
	}
	dept.CreatedAt = existing.CreatedAt
	dept.UpdatedAt = r.s.stamp()
	r.s.data.departments[dept.ID] = *dept
	return nil
}

func (r departmentRepo) GetByID(_ context.Context, id string) (*domain.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.data.departments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (r departmentRepo) List(context.Context) ([]domain.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]domain.Department, 0, len(r.s.data.departments))
	for _, d := range r.s.data.departments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r departmentRepo) Delete(_ context.Context, id string) error {
	defer r.s.lockWrite()()

	if _, ok := r.s.data.departments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.departments, id)
	return nil
}
