package main

import (
	"net/http"
	"strings"
)

func (a *api) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text" validate:"required,max=2000"`
	}
	if err := readJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	c, _, err := a.cardAccess(r, RoleAdmin, "only owner or admin can comment")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := a.check(req); err != nil {
		a.fail(w, r, err)
		return
	}
	c, err = a.store.AppendComment(r.Context(), c.ID, req.Text, a.now())
	if err != nil {
		a.fail(w, r, notFoundAs(err, "card"))
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *api) handleCommentsByCard(w http.ResponseWriter, r *http.Request) {
	c, _, err := a.cardAccess(r, RoleMember, "")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Comments)
}
