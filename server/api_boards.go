package main

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	defaultBackground = "#0079BF"
	maxBoardTitle     = 100
	maxListTitle      = 200
	maxCardTitle      = 500
	maxDescription    = 5000
)

// cleanTitle trims s and enforces a non-empty title of at most max characters.
func cleanTitle(s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errValidation("title is required")
	}
	if utf8.RuneCountInString(s) > max {
		return "", errValidation(fmt.Sprintf("title must be at most %d characters", max))
	}
	return s, nil
}

func (a *api) handleListBoards(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.ListBoardsFor(r.Context(), currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *api) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title      string `json:"title"`
		Background string `json:"background"`
	}
	if err := readJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	title, err := cleanTitle(req.Title, maxBoardTitle)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	bg := req.Background
	if strings.TrimSpace(bg) == "" {
		bg = defaultBackground
	}
	b, err := a.store.CreateBoard(r.Context(), currentUserID(r), title, bg)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, BoardView{Board: b, Role: RoleOwner})
}

func (a *api) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	acc, err := a.authorize(r.Context(), r.PathValue("ref"), currentUserID(r), RoleMember, "")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BoardView{Board: acc.Board, Role: acc.Role})
}

func (a *api) handleUpdateBoard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title      *string `json:"title"`
		Background *string `json:"background"`
	}
	if err := readJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	acc, err := a.authorize(r.Context(), r.PathValue("ref"), currentUserID(r), RoleAdmin, "only owner or admin can edit the board")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if req.Title != nil {
		title, err := cleanTitle(*req.Title, maxBoardTitle)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		req.Title = &title
	}
	b, err := a.store.UpdateBoard(r.Context(), acc.Board.ID, req.Title, req.Background)
	if err != nil {
		a.fail(w, r, notFoundAs(err, "board"))
		return
	}
	writeJSON(w, http.StatusOK, BoardView{Board: b, Role: acc.Role})
}

func (a *api) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	acc, err := a.authorize(r.Context(), r.PathValue("ref"), currentUserID(r), RoleOwner, "only the board owner can delete it")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.store.DeleteBoard(r.Context(), acc.Board.ID); err != nil {
		a.fail(w, r, notFoundAs(err, "board"))
		return
	}
	writeMessage(w, "board deleted")
}

type listWithCards struct {
	List
	Cards []Card `json:"cards"`
}

type boardFull struct {
	Board BoardView       `json:"board"`
	Lists []listWithCards `json:"lists"`
}

// handleGetBoardFull returns the board with its lists in order, each carrying its cards in order.
func (a *api) handleGetBoardFull(w http.ResponseWriter, r *http.Request) {
	acc, err := a.authorize(r.Context(), r.PathValue("ref"), currentUserID(r), RoleMember, "")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	lists, err := a.store.ListsByBoard(r.Context(), acc.Board.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	cards, err := a.store.CardsByBoard(r.Context(), acc.Board.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boardFull{
		Board: BoardView{Board: acc.Board, Role: acc.Role},
		Lists: groupCards(lists, cards),
	})
}

// groupCards attaches cards to their lists, keeping both orders as given.
func groupCards(lists []List, cards []Card) []listWithCards {
	out := make([]listWithCards, len(lists))
	idx := make(map[uuid.UUID]int, len(lists))
	for i, l := range lists {
		out[i] = listWithCards{List: l, Cards: []Card{}}
		idx[l.ID] = i
	}
	for _, c := range cards {
		if i, ok := idx[c.ListID]; ok {
			out[i].Cards = append(out[i].Cards, c)
		}
	}
	return out
}
