package main

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type listReorderRequest struct {
	BoardID string      `json:"boardId"`
	ListIDs []uuid.UUID `json:"listIds"`
}

type cardReorderRequest struct {
	BoardID       string      `json:"boardId"`
	SourceListID  uuid.UUID   `json:"sourceListId"`
	DestListID    uuid.UUID   `json:"destListId"`
	SourceCardIDs []uuid.UUID `json:"sourceCardIds"`
	DestCardIDs   []uuid.UUID `json:"destCardIds"`
}

const denyReorder = "only owner or admin can reorder"

// reorderAccess authorizes against ref when given, otherwise against the board
// of the list inferFrom.
func (a *api) reorderAccess(r *http.Request, ref string, inferFrom uuid.UUID) (*Access, error) {
	uid := currentUserID(r)
	if ref = strings.TrimSpace(ref); ref != "" {
		return a.authorize(r.Context(), ref, uid, RoleAdmin, denyReorder)
	}
	l, err := a.store.GetList(r.Context(), inferFrom)
	if err != nil {
		return nil, notFoundAs(err, "list")
	}
	return a.authorize(r.Context(), l.BoardID.String(), uid, RoleAdmin, denyReorder)
}

func (a *api) handleListReorder(w http.ResponseWriter, r *http.Request) {
	var req listReorderRequest
	if err := readJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.BoardID == "" && len(req.ListIDs) == 0 {
		writeMessage(w, "lists reordered")
		return
	}
	var first uuid.UUID
	if len(req.ListIDs) > 0 {
		first = req.ListIDs[0]
	}
	acc, err := a.reorderAccess(r, req.BoardID, first)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.store.ReorderLists(r.Context(), acc.Board.ID, req.ListIDs); err != nil {
		a.fail(w, r, err)
		return
	}
	reorderItems.WithLabelValues("list").Add(float64(len(req.ListIDs)))
	writeMessage(w, "lists reordered")
}

func (a *api) handleCardReorder(w http.ResponseWriter, r *http.Request) {
	var req cardReorderRequest
	if err := readJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.DestListID == uuid.Nil {
		a.fail(w, r, errValidation("destListId is required"))
		return
	}
	if req.SourceListID == uuid.Nil {
		req.SourceListID = req.DestListID
	}
	acc, err := a.reorderAccess(r, req.BoardID, req.DestListID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	mv := CardMove{
		SourceListID:  req.SourceListID,
		DestListID:    req.DestListID,
		SourceCardIDs: req.SourceCardIDs,
		DestCardIDs:   req.DestCardIDs,
	}
	if err := a.store.MoveCards(r.Context(), acc.Board.ID, mv); err != nil {
		a.fail(w, r, err)
		return
	}
	n := len(req.DestCardIDs)
	if req.SourceListID != req.DestListID {
		n += len(req.SourceCardIDs)
	}
	reorderItems.WithLabelValues("card").Add(float64(n))
	writeMessage(w, "cards reordered")
}
