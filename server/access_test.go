package main

import (
	"testing"

	"github.com/google/uuid"
)

func TestRoleOrder(t *testing.T) {
	roles := []Role{RoleMember, RoleAdmin, RoleOwner}
	for i, r := range roles {
		for j, min := range roles {
			if got, want := r.AtLeast(min), i >= j; got != want {
				t.Errorf("%s.AtLeast(%s) = %v, want %v", r, min, got, want)
			}
		}
	}
	if Role("guest").AtLeast(RoleMember) {
		t.Error("unknown role must not satisfy member")
	}
	if Role("").AtLeast(Role("")) {
		t.Error("empty role must not satisfy anything")
	}
}

func TestMemberRole(t *testing.T) {
	for r, want := range map[Role]bool{RoleAdmin: true, RoleMember: true, RoleOwner: false, "": false, "root": false} {
		if got := r.memberRole(); got != want {
			t.Errorf("%q.memberRole() = %v, want %v", r, got, want)
		}
	}
}

func TestRoleFor(t *testing.T) {
	owner, admin, member, stranger := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	b := Board{ID: uuid.New(), OwnerID: &owner}
	legacy := Board{ID: uuid.New()}
	row := func(board Board, user uuid.UUID, role Role) *BoardMember {
		return &BoardMember{ID: uuid.New(), BoardID: board.ID, UserID: user, Role: role}
	}

	cases := []struct {
		name   string
		board  Board
		user   uuid.UUID
		m      *BoardMember
		want   Role
		wantOK bool
	}{
		{"owner", b, owner, nil, RoleOwner, true},
		{"owner wins over stray row", b, owner, row(b, owner, RoleMember), RoleOwner, true},
		{"admin row", b, admin, row(b, admin, RoleAdmin), RoleAdmin, true},
		{"member row", b, member, row(b, member, RoleMember), RoleMember, true},
		{"stranger", b, stranger, nil, "", false},
		{"row for another board", b, member, row(legacy, member, RoleAdmin), "", false},
		{"row for another user", b, stranger, row(b, member, RoleAdmin), "", false},
		{"row with invalid role", b, member, row(b, member, RoleOwner), "", false},
		{"legacy board has no owner", legacy, owner, nil, "", false},
		{"legacy board member", legacy, member, row(legacy, member, RoleMember), RoleMember, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := roleFor(c.board, c.user, c.m)
			if got != c.want || ok != c.wantOK {
				t.Fatalf("roleFor = (%q, %v), want (%q, %v)", got, ok, c.want, c.wantOK)
			}
		})
	}
}

func TestBoardRef(t *testing.T) {
	id := uuid.New()
	gotID, slug, isID := boardRef(id.String())
	if !isID || gotID != id || slug != "" {
		t.Fatalf("boardRef(uuid) = (%s, %q, %v)", gotID, slug, isID)
	}
	gotID, slug, isID = boardRef("sprint")
	if isID || gotID != uuid.Nil || slug != "sprint" {
		t.Fatalf("boardRef(slug) = (%s, %q, %v)", gotID, slug, isID)
	}
	// near-UUIDs are slugs
	_, slug, isID = boardRef("1234-not-a-uuid")
	if isID || slug != "1234-not-a-uuid" {
		t.Fatalf("boardRef(near uuid) = (%q, %v)", slug, isID)
	}
}
