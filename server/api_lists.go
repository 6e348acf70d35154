package main

import (
	"errors"
	"net/http"
)

// listAccess loads the list named by the {id} path value and authorizes the
// caller on its board. Lists on boards the caller cannot see are not found.
func (a *api) listAccess(r *http.Request, min Role, deny string) (List, *Access, error) {
	id, err := pathID(r, "id", "list")
	if err != nil {
		return List{}, nil, err
	}
	l, err := a.store.GetList(r.Context(), id)
	if err != nil {
		return List{}, nil, notFoundAs(err, "list")
	}
	acc, err := a.authorize(r.Context(), l.BoardID.String(), currentUserID(r), min, deny)
	var ae *AppError
	if errors.As(err, &ae) && ae.Status == http.StatusNotFound {
		return List{}, nil, errNotFound("list not found")
	}
	return l, acc, err
}

func (a *api) handleListsByBoard(w http.ResponseWriter, r *http.Request) {
	acc, err := a.authorize(r.Context(), r.PathValue("ref"), currentUserID(r), RoleMember, "")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items, err := a.store.ListsByBoard(r.Context(), acc.Board.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *api) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := readJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	acc, err := a.authorize(r.Context(), r.PathValue("ref"), currentUserID(r), RoleAdmin, "only owner or admin can add lists")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	title, err := cleanTitle(req.Title, maxListTitle)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	l, err := a.store.CreateList(r.Context(), acc.Board.ID, title)
	if err != nil {
		a.fail(w, r, notFoundAs(err, "board"))
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (a *api) handleUpdateList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := readJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	l, _, err := a.listAccess(r, RoleAdmin, "only owner or admin can rename lists")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	title, err := cleanTitle(req.Title, maxListTitle)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	l, err = a.store.RenameList(r.Context(), l.ID, title)
	if err != nil {
		a.fail(w, r, notFoundAs(err, "list"))
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *api) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	l, _, err := a.listAccess(r, RoleAdmin, "only owner or admin can delete lists")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.store.DeleteList(r.Context(), l.ID); err != nil {
		a.fail(w, r, notFoundAs(err, "list"))
		return
	}
	writeMessage(w, "list deleted")
}
