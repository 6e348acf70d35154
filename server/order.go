package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// scope describes where positions of one kind of item are ordered: lists within
// a board, cards within a list.
type scope struct {
	table       string
	parentCol   string
	parentTable string
	noun        string
}

var (
	listScope = scope{table: "lists", parentCol: "board_id", parentTable: "boards", noun: "list"}
	cardScope = scope{table: "cards", parentCol: "list_id", parentTable: "lists", noun: "card"}
)

// positionUpdate assigns Position to item ID; a non-nil Parent also moves a card
// into that list. A non-empty Within restricts the update to cards currently in
// one of those lists.
type positionUpdate struct {
	ID       uuid.UUID
	Position int
	Parent   *uuid.UUID
	Within   []uuid.UUID
}

// CardMove is a drag-and-drop result: the full ordered contents of the
// destination list and, for cross-list moves, of the source list.
type CardMove struct {
	SourceListID  uuid.UUID
	DestListID    uuid.UUID
	SourceCardIDs []uuid.UUID
	DestCardIDs   []uuid.UUID
}

// planReorder assigns positions 0..n-1 in the order of ids.
func planReorder(ids []uuid.UUID, parent *uuid.UUID) ([]positionUpdate, error) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]positionUpdate, 0, len(ids))
	for i, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, errValidation(fmt.Sprintf("duplicate id %s", id))
		}
		seen[id] = struct{}{}
		out = append(out, positionUpdate{ID: id, Position: i, Parent: parent})
	}
	return out, nil
}

// planCardMove renumbers the destination list, re-parenting its cards, and the
// source list only when it differs from the destination.
func planCardMove(mv CardMove) ([]positionUpdate, error) {
	dest := mv.DestListID
	out, err := planReorder(mv.DestCardIDs, &dest)
	if err != nil {
		return nil, err
	}
	if mv.SourceListID == mv.DestListID {
		for i := range out {
			out[i].Within = []uuid.UUID{dest}
		}
		return out, nil
	}
	for i := range out {
		out[i].Within = []uuid.UUID{mv.SourceListID, dest}
	}
	src, err := planReorder(mv.SourceCardIDs, nil)
	if err != nil {
		return nil, err
	}
	for i := range src {
		src[i].Within = []uuid.UUID{mv.SourceListID}
	}
	inDest := make(map[uuid.UUID]struct{}, len(out))
	for _, u := range out {
		inDest[u.ID] = struct{}{}
	}
	for _, u := range src {
		if _, ok := inDest[u.ID]; ok {
			return nil, errValidation(fmt.Sprintf("card %s listed in both source and destination", u.ID))
		}
	}
	return append(out, src...), nil
}

// nextPosition locks the scope's parent row and returns the append position.
// It must run inside tx so the lock is held until the insert commits.
func (sc scope) nextPosition(ctx context.Context, tx pgx.Tx, parentID uuid.UUID) (int, error) {
	if err := lockRow(ctx, tx, sc.parentTable, parentID); err != nil {
		return 0, err
	}
	var next int
	err := tx.QueryRow(ctx,
		fmt.Sprintf(`select coalesce(max(position)+1, 0) from %s where %s=$1`, sc.table, sc.parentCol), parentID).
		Scan(&next)
	return next, err
}

// applyPositions sends ups as one batch. Every row must belong to boardID and,
// when the update names lists, sit in one of them; a row that does not aborts
// the whole batch.
func (sc scope) applyPositions(ctx context.Context, tx pgx.Tx, boardID uuid.UUID, ups []positionUpdate) error {
	b := &pgx.Batch{}
	for _, u := range ups {
		switch {
		case u.Parent != nil && sc.parentCol == "list_id":
			b.Queue(`update cards set position=$1, list_id=$2, updated_at=now()
				where id=$3 and board_id=$4 and list_id=any($5)`,
				u.Position, *u.Parent, u.ID, boardID, u.Within)
		case len(u.Within) > 0:
			b.Queue(fmt.Sprintf(`update %s set position=$1, updated_at=now()
				where id=$2 and board_id=$3 and %s=any($4)`, sc.table, sc.parentCol),
				u.Position, u.ID, boardID, u.Within)
		default:
			b.Queue(fmt.Sprintf(`update %s set position=$1, updated_at=now() where id=$2 and board_id=$3`, sc.table),
				u.Position, u.ID, boardID)
		}
	}
	br := tx.SendBatch(ctx, b)
	for _, u := range ups {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return err
		}
		if tag.RowsAffected() != 1 {
			_ = br.Close()
			if len(u.Within) > 0 {
				return errValidation(fmt.Sprintf("%s %s is not in the lists being reordered", sc.noun, u.ID))
			}
			return errValidation(fmt.Sprintf("%s %s does not belong to this board", sc.noun, u.ID))
		}
	}
	return br.Close()
}

func lockRow(ctx context.Context, tx pgx.Tx, table string, id uuid.UUID) error {
	var got uuid.UUID
	err := tx.QueryRow(ctx, fmt.Sprintf(`select id from %s where id=$1 for update`, table), id).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// ReorderLists renumbers boardID's lists in the order of ids. Empty ids is a no-op.
func (s *Store) ReorderLists(ctx context.Context, boardID uuid.UUID, ids []uuid.UUID) error {
	ups, err := planReorder(ids, nil)
	if err != nil || len(ups) == 0 {
		return err
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := lockRow(ctx, tx, "boards", boardID); err != nil {
			return err
		}
		return listScope.applyPositions(ctx, tx, boardID, ups)
	})
}

// MoveCards applies a card drag-and-drop within boardID atomically.
func (s *Store) MoveCards(ctx context.Context, boardID uuid.UUID, mv CardMove) error {
	ups, err := planCardMove(mv)
	if err != nil || len(ups) == 0 {
		return err
	}
	lists := []uuid.UUID{mv.DestListID}
	if mv.SourceListID != mv.DestListID {
		lists = append(lists, mv.SourceListID)
		// stable lock order between two lists
		if bytes.Compare(lists[0][:], lists[1][:]) > 0 {
			lists[0], lists[1] = lists[1], lists[0]
		}
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		for _, id := range lists {
			var owner uuid.UUID
			err := tx.QueryRow(ctx, `select board_id from lists where id=$1 for update`, id).Scan(&owner)
			if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != boardID) {
				return errValidation(fmt.Sprintf("list %s does not belong to this board", id))
			}
			if err != nil {
				return err
			}
		}
		return cardScope.applyPositions(ctx, tx, boardID, ups)
	})
}
