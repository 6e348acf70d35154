package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// cardAccess loads the card named by the {id} path value and authorizes the
// caller on its board. Cards on boards the caller cannot see are not found.
func (a *api) cardAccess(r *http.Request, min Role, deny string) (Card, *Access, error) {
	id, err := pathID(r, "id", "card")
	if err != nil {
		return Card{}, nil, err
	}
	c, err := a.store.GetCard(r.Context(), id)
	if err != nil {
		return Card{}, nil, notFoundAs(err, "card")
	}
	acc, err := a.authorize(r.Context(), c.BoardID.String(), currentUserID(r), min, deny)
	var ae *AppError
	if errors.As(err, &ae) && ae.Status == http.StatusNotFound {
		return Card{}, nil, errNotFound("card not found")
	}
	return c, acc, err
}

// normalizePatch validates p and fills in what the server owns: item ids,
// comment timestamps and a de-duplicated label set.
func (a *api) normalizePatch(p *CardPatch, now time.Time) error {
	if p.Title != nil {
		t, err := cleanTitle(*p.Title, maxCardTitle)
		if err != nil {
			return err
		}
		p.Title = &t
	}
	if p.Description != nil && utf8.RuneCountInString(*p.Description) > maxDescription {
		return errValidation(fmt.Sprintf("description must be at most %d characters", maxDescription))
	}
	if p.Labels != nil {
		seen := map[string]struct{}{}
		labels := make([]string, 0, len(*p.Labels))
		for _, l := range *p.Labels {
			l = strings.TrimSpace(l)
			if _, dup := seen[l]; dup || l == "" {
				continue
			}
			seen[l] = struct{}{}
			labels = append(labels, l)
		}
		p.Labels = &labels
	}
	if p.Checklist != nil {
		items := *p.Checklist
		for i := range items {
			items[i].Text = strings.TrimSpace(items[i].Text)
			if err := a.check(items[i]); err != nil {
				return err
			}
			if items[i].ID == uuid.Nil {
				items[i].ID = uuid.New()
			}
		}
	}
	if p.Comments != nil {
		comments := *p.Comments
		for i := range comments {
			comments[i].Text = strings.TrimSpace(comments[i].Text)
			if err := a.check(comments[i]); err != nil {
				return err
			}
			if comments[i].ID == uuid.Nil {
				comments[i].ID = uuid.New()
			}
			if comments[i].CreatedAt.IsZero() {
				comments[i].CreatedAt = now.UTC()
			}
		}
	}
	return nil
}

func (a *api) handleCardsByBoard(w http.ResponseWriter, r *http.Request) {
	acc, err := a.authorize(r.Context(), r.PathValue("ref"), currentUserID(r), RoleMember, "")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items, err := a.store.CardsByBoard(r.Context(), acc.Board.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *api) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := readJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	l, _, err := a.listAccess(r, RoleAdmin, "only owner or admin can add cards")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	title, err := cleanTitle(req.Title, maxCardTitle)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := a.store.CreateCard(r.Context(), l, title)
	if err != nil {
		a.fail(w, r, notFoundAs(err, "list"))
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *api) handleGetCard(w http.ResponseWriter, r *http.Request) {
	c, _, err := a.cardAccess(r, RoleMember, "")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *api) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var patch CardPatch
	if err := readJSON(w, r, &patch); err != nil {
		a.fail(w, r, err)
		return
	}
	c, _, err := a.cardAccess(r, RoleAdmin, "only owner or admin can edit cards")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.normalizePatch(&patch, a.now()); err != nil {
		a.fail(w, r, err)
		return
	}
	c, err = a.store.UpdateCard(r.Context(), c.ID, patch)
	if err != nil {
		a.fail(w, r, notFoundAs(err, "card"))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *api) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	c, _, err := a.cardAccess(r, RoleAdmin, "only owner or admin can delete cards")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.store.DeleteCard(r.Context(), c.ID); err != nil {
		a.fail(w, r, notFoundAs(err, "card"))
		return
	}
	writeMessage(w, "card deleted")
}
