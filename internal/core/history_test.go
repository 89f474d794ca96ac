package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func record(id string) *RunRecord {
	return &RunRecord{ID: id, Source: "test", Summary: &RunSummary{State: StateComplete}, CreatedAt: time.Now()}
}

func TestMemoryHistory_SaveGet(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory(10)

	if err := h.Save(ctx, record("a")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := h.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "a" {
		t.Errorf("ID = %q, want a", got.ID)
	}

	if _, err := h.Get(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Get(missing) = %v, want ErrRunNotFound", err)
	}
}

func TestMemoryHistory_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory(10)
	for _, id := range []string{"a", "b", "c"} {
		if err := h.Save(ctx, record(id)); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 0, []string{"c", "b", "a"}},
		{"limited", 2, []string{"c", "b"}},
		{"limit above size", 50, []string{"c", "b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := h.List(ctx, tt.limit)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var ids []string
			for _, r := range runs {
				ids = append(ids, r.ID)
			}
			if !equalStrings(ids, tt.want) {
				t.Errorf("List(%d) = %v, want %v", tt.limit, ids, tt.want)
			}
		})
	}
}

func TestMemoryHistory_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory(2)
	for _, id := range []string{"a", "b", "c"} {
		if err := h.Save(ctx, record(id)); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}

	if _, err := h.Get(ctx, "a"); !errors.Is(err, ErrRunNotFound) {
		t.Error("oldest run should have been evicted")
	}
	runs, _ := h.List(ctx, 0)
	if len(runs) != 2 {
		t.Errorf("List = %d runs, want 2", len(runs))
	}
}

func TestMemoryHistory_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory(2)

	first := record("a")
	second := record("a")
	second.Error = "aborted"

	_ = h.Save(ctx, first)
	_ = h.Save(ctx, second)

	runs, _ := h.List(ctx, 0)
	if len(runs) != 1 {
		t.Fatalf("List = %d runs, want 1", len(runs))
	}
	if runs[0].Error != "aborted" {
		t.Errorf("Error = %q, want replaced record", runs[0].Error)
	}
}
