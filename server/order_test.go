package main

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func TestPlanReorderIsDense(t *testing.T) {
	in := ids(5)
	ups, err := planReorder(in, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ups) != len(in) {
		t.Fatalf("got %d updates, want %d", len(ups), len(in))
	}
	for i, u := range ups {
		if u.ID != in[i] || u.Position != i || u.Parent != nil || u.Within != nil {
			t.Errorf("update %d = %+v, want id %s at %d", i, u, in[i], i)
		}
	}
}

func TestPlanReorderEmpty(t *testing.T) {
	ups, err := planReorder(nil, nil)
	if err != nil || len(ups) != 0 {
		t.Fatalf("planReorder(nil) = %v, %v", ups, err)
	}
}

func TestPlanReorderRejectsDuplicates(t *testing.T) {
	in := ids(3)
	in = append(in, in[1])
	_, err := planReorder(in, nil)
	wantStatus(t, err, http.StatusBadRequest)
}

func TestPlanCardMoveSameList(t *testing.T) {
	list := uuid.New()
	cards := ids(3)
	ups, err := planCardMove(CardMove{
		SourceListID:  list,
		DestListID:    list,
		SourceCardIDs: ids(7), // ignored for same-list moves
		DestCardIDs:   cards,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ups) != 3 {
		t.Fatalf("got %d updates, want 3", len(ups))
	}
	for i, u := range ups {
		if u.ID != cards[i] || u.Position != i || u.Parent == nil || *u.Parent != list {
			t.Errorf("update %d = %+v", i, u)
		}
		if len(u.Within) != 1 || u.Within[0] != list {
			t.Errorf("update %d scoped to %v, want [%s]", i, u.Within, list)
		}
	}
}

func TestPlanCardMoveAcrossLists(t *testing.T) {
	src, dst := uuid.New(), uuid.New()
	a := ids(3) // source list before the move: a[0], a[1], a[2]
	b := ids(2)
	moved := a[1]
	// insert a[1] at index 1 of the destination
	destAfter := []uuid.UUID{b[0], moved, b[1]}
	srcAfter := []uuid.UUID{a[0], a[2]}

	ups, err := planCardMove(CardMove{SourceListID: src, DestListID: dst, SourceCardIDs: srcAfter, DestCardIDs: destAfter})
	if err != nil {
		t.Fatal(err)
	}
	if len(ups) != len(destAfter)+len(srcAfter) {
		t.Fatalf("got %d updates", len(ups))
	}
	pos := map[uuid.UUID]positionUpdate{}
	for _, u := range ups {
		pos[u.ID] = u
	}
	for i, id := range destAfter {
		u := pos[id]
		if u.Position != i || u.Parent == nil || *u.Parent != dst {
			t.Errorf("dest card %d = %+v", i, u)
		}
		if len(u.Within) != 2 || u.Within[0] != src || u.Within[1] != dst {
			t.Errorf("dest card %d scoped to %v, want source and destination", i, u.Within)
		}
	}
	for i, id := range srcAfter {
		u := pos[id]
		if u.Position != i || u.Parent != nil {
			t.Errorf("source card %d = %+v", i, u)
		}
		if len(u.Within) != 1 || u.Within[0] != src {
			t.Errorf("source card %d scoped to %v, want [%s]", i, u.Within, src)
		}
	}
}

func TestPlanCardMoveRejectsCardInBothLists(t *testing.T) {
	c := ids(2)
	_, err := planCardMove(CardMove{
		SourceListID:  uuid.New(),
		DestListID:    uuid.New(),
		SourceCardIDs: []uuid.UUID{c[0]},
		DestCardIDs:   []uuid.UUID{c[1], c[0]},
	})
	wantStatus(t, err, http.StatusBadRequest)
}

func TestPlanCardMoveEmpty(t *testing.T) {
	ups, err := planCardMove(CardMove{SourceListID: uuid.New(), DestListID: uuid.New()})
	if err != nil || len(ups) != 0 {
		t.Fatalf("planCardMove(empty) = %v, %v", ups, err)
	}
}
