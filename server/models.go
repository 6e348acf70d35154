package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type Board struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Slug       string    `json:"slug"`
	Background string    `json:"background"`
	// OwnerID is nil for legacy boards created before ownership existed
	OwnerID   *uuid.UUID `json:"userId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// BoardView is a board annotated with the caller's role.
type BoardView struct {
	Board
	Role Role `json:"role"`
}

type BoardMember struct {
	ID        uuid.UUID `json:"id"`
	BoardID   uuid.UUID `json:"boardId"`
	UserID    uuid.UUID `json:"userId"`
	Role      Role      `json:"role"`
	User      *User     `json:"user,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type List struct {
	ID        uuid.UUID `json:"id"`
	BoardID   uuid.UUID `json:"boardId"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ChecklistItem struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text" validate:"required,max=500"`
	Completed bool      `json:"completed"`
}

type Comment struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text" validate:"required,max=2000"`
	CreatedAt time.Time `json:"createdAt"`
}

type Card struct {
	ID          uuid.UUID       `json:"id"`
	ListID      uuid.UUID       `json:"listId"`
	BoardID     uuid.UUID       `json:"boardId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Position    int             `json:"position"`
	Labels      []string        `json:"labels"`
	DueDate     *time.Time      `json:"dueDate"`
	Checklist   []ChecklistItem `json:"checklist"`
	Comments    []Comment       `json:"comments"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// CardPatch carries the fields of a partial card update; absent means unchanged.
type CardPatch struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Labels      *[]string        `json:"labels"`
	DueDate     optionalTime     `json:"dueDate"`
	Checklist   *[]ChecklistItem `json:"checklist"`
	Comments    *[]Comment       `json:"comments"`
}

func (p CardPatch) empty() bool {
	return p.Title == nil && p.Description == nil && p.Labels == nil && !p.DueDate.Set &&
		p.Checklist == nil && p.Comments == nil
}

// optionalTime distinguishes an absent JSON field from an explicit null.
type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			o.Value = &t
			return nil
		}
	}
	return fmt.Errorf("dueDate %q is not an RFC 3339 timestamp or date", raw)
}
