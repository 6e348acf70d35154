package main

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r grants everything min grants (owner > admin > member).
func (r Role) AtLeast(min Role) bool {
	return r.rank() > 0 && r.rank() >= min.rank()
}

// memberRole reports whether r can be stored on a membership row.
func (r Role) memberRole() bool { return r == RoleAdmin || r == RoleMember }

// Access is the outcome of a successful access check.
type Access struct {
	Board Board
	Role  Role
}

// roleFor derives the caller's role on b. membership is the caller's membership
// row for b, or nil when there is none.
func roleFor(b Board, userID uuid.UUID, membership *BoardMember) (Role, bool) {
	if b.OwnerID != nil && *b.OwnerID == userID {
		return RoleOwner, true
	}
	if membership != nil && membership.BoardID == b.ID && membership.UserID == userID && membership.Role.memberRole() {
		return membership.Role, true
	}
	return "", false
}

// boardRef splits a board reference into an id or a slug; exactly one is set.
func boardRef(idOrSlug string) (uuid.UUID, string, bool) {
	if id, err := uuid.Parse(idOrSlug); err == nil {
		return id, "", true
	}
	return uuid.Nil, idOrSlug, false
}

// ResolveBoard looks a board up by id when ref is a UUID, by slug otherwise.
func (s *Store) ResolveBoard(ctx context.Context, ref string) (Board, error) {
	id, slug, isID := boardRef(ref)
	if isID {
		return s.GetBoard(ctx, id)
	}
	return s.BoardBySlug(ctx, slug)
}

// CheckAccess resolves ref and the caller's role on it. A nil result with a nil
// error means the board is absent or the caller has no access.
func (s *Store) CheckAccess(ctx context.Context, ref string, userID uuid.UUID) (*Access, error) {
	b, err := s.ResolveBoard(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m *BoardMember
	if b.OwnerID == nil || *b.OwnerID != userID {
		row, err := s.membership(ctx, b.ID, userID)
		switch {
		case err == nil:
			m = &row
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}
	role, ok := roleFor(b, userID, m)
	if !ok {
		return nil, nil
	}
	return &Access{Board: b, Role: role}, nil
}

func (s *Store) membership(ctx context.Context, boardID, userID uuid.UUID) (BoardMember, error) {
	var m BoardMember
	var role string
	err := s.db.QueryRow(ctx, `select id, board_id, user_id, role, created_at, updated_at
		from board_members where board_id=$1 and user_id=$2`, boardID, userID).
		Scan(&m.ID, &m.BoardID, &m.UserID, &role, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return BoardMember{}, ErrNotFound
	}
	m.Role = Role(role)
	return m, err
}
