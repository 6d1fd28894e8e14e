// Package access holds the role rules deciding who may see and change tickets.
// Every ticket operation goes through these predicates so read and write paths
// cannot drift apart.
package access

import (
	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/repository"
)

// CanAccessTicket reports whether the caller may read or mutate the ticket.
// Managers and admins see everything; users and agents only see tickets they
// created or are assigned to.
func CanAccessTicket(p domain.Principal, ticket *domain.Ticket) bool {
	if ticket == nil || p.UserID == "" {
		return false
	}
	if p.Role.Privileged() {
		return true
	}
	return ticket.CreatedBy == p.UserID || ticket.Assignee() == p.UserID
}

// CanCreateTicket reports whether the role may open tickets.
func CanCreateTicket(role domain.Role) bool {
	switch role {
	case domain.RoleAgent, domain.RoleManager, domain.RoleAdmin:
		return true
	}
	return false
}

// CanDeleteTicket reports whether the role may hard delete tickets.
func CanDeleteTicket(role domain.Role) bool {
	return role.Privileged()
}

// CanDeleteComment allows the author and privileged roles.
func CanDeleteComment(p domain.Principal, comment *domain.Comment) bool {
	if comment == nil {
		return false
	}
	return p.Role.Privileged() || comment.UserID == p.UserID
}

// CanManageDirectory reports whether the role may create, change or remove
// users and departments.
func CanManageDirectory(role domain.Role) bool {
	return role == domain.RoleAdmin
}

// CanViewUsers reports whether the role may browse the user directory.
func CanViewUsers(role domain.Role) bool {
	return role.Privileged()
}

// ListScope narrows a ticket filter to what the caller may see.
func ListScope(p domain.Principal, filter repository.TicketFilter) repository.TicketFilter {
	if p.Role.Privileged() {
		return filter
	}
	id := p.UserID
	filter.ParticipantID = &id
	return filter
}
