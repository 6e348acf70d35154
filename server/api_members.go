package main

import (
	"errors"
	"net/http"
	"strings"
)

type memberList struct {
	Owner   *User         `json:"owner"`
	Members []BoardMember `json:"members"`
}

// parseMemberRole accepts admin or member; empty means member.
func parseMemberRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if role == "" {
		return RoleMember, nil
	}
	if !role.memberRole() {
		return "", errValidation(`role must be "admin" or "member"`)
	}
	return role, nil
}

func (a *api) handleListMembers(w http.ResponseWriter, r *http.Request) {
	acc, err := a.authorize(r.Context(), r.PathValue("ref"), currentUserID(r), RoleMember, "")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	members, err := a.store.ListMembers(r.Context(), acc.Board.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := memberList{Members: members}
	if acc.Board.OwnerID != nil {
		u, err := a.store.GetUser(r.Context(), *acc.Board.OwnerID)
		switch {
		case err == nil:
			out.Owner = &u
		case !errors.Is(err, ErrNotFound):
			a.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleInviteMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := readJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	acc, err := a.authorize(r.Context(), r.PathValue("ref"), currentUserID(r), RoleAdmin, "only owner or admin can invite members")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		a.fail(w, r, errValidation("email is required"))
		return
	}
	role, err := parseMemberRole(req.Role)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	u, err := a.store.UserByEmail(r.Context(), email)
	if errors.Is(err, ErrNotFound) {
		a.fail(w, r, errNotFound("no user found with that email"))
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if acc.Board.OwnerID != nil && *acc.Board.OwnerID == u.ID {
		a.fail(w, r, errValidation("that user is the board owner"))
		return
	}
	m, err := a.store.AddMember(r.Context(), acc.Board.ID, u.ID, role)
	if errors.Is(err, ErrConflict) {
		a.fail(w, r, errConflict("user is already a member of this board"))
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *api) handleChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := readJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	acc, err := a.authorize(r.Context(), r.PathValue("ref"), currentUserID(r), RoleAdmin, "only owner or admin can change roles")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	role := Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if !role.memberRole() {
		a.fail(w, r, errValidation(`role must be "admin" or "member"`))
		return
	}
	memberID, err := pathID(r, "memberId", "member")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	m, err := a.store.UpdateMemberRole(r.Context(), acc.Board.ID, memberID, role)
	if err != nil {
		a.fail(w, r, notFoundAs(err, "member"))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleRemoveMember lets admins remove anyone and any member remove themselves.
func (a *api) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	uid := currentUserID(r)
	acc, err := a.authorize(r.Context(), r.PathValue("ref"), uid, RoleMember, "")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	memberID, err := pathID(r, "memberId", "member")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	m, err := a.store.GetMember(r.Context(), acc.Board.ID, memberID)
	if err != nil {
		a.fail(w, r, notFoundAs(err, "member"))
		return
	}
	if m.UserID != uid && !acc.Role.AtLeast(RoleAdmin) {
		a.fail(w, r, errForbidden("only owner or admin can remove members"))
		return
	}
	if err := a.store.DeleteMember(r.Context(), acc.Board.ID, memberID); err != nil {
		a.fail(w, r, notFoundAs(err, "member"))
		return
	}
	writeMessage(w, "member removed")
}
