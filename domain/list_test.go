package domain

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestListMarshalUsesSnakeCaseTimestamps(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	l := List{ID: "l1", Name: "Weekly", Items: []Item{}, CreatedAt: now, UpdatedAt: now}

	payload, err := sonic.Marshal(l)
	if err != nil {
		t.Fatalf("marshal list: %v", err)
	}
	for _, field := range []string{`"created_at"`, `"updated_at"`, `"items":[]`} {
		if !strings.Contains(string(payload), field) {
			t.Fatalf("expected %s in %s", field, payload)
		}
	}
}

func TestItemMarshalIncludesCompletedFalse(t *testing.T) {
	payload, err := sonic.Marshal(Item{ID: "i1", Name: "Eggs"})
	if err != nil {
		t.Fatalf("marshal item: %v", err)
	}
	if !strings.Contains(string(payload), `"completed":false`) {
		t.Fatalf("expected completed field, got %s", payload)
	}
}

func TestFindItem(t *testing.T) {
	l := List{Items: []Item{{ID: "a"}, {ID: "b"}}}
	if got := l.FindItem("b"); got != 1 {
		t.Fatalf("expected index 1, got %d", got)
	}
	if l.HasItem("c") {
		t.Fatal("unexpected item c")
	}
}

func TestNewListUpdatedSnapshotIsDetached(t *testing.T) {
	l := List{ID: "l1", Items: []Item{{ID: "a", Name: "Milk"}}}
	ev := NewListUpdated(l)
	l.Items[0].Name = "Bread"
	if ev.List.Items[0].Name != "Milk" {
		t.Fatalf("snapshot shares items with source: %+v", ev.List.Items)
	}
	if ev.Type != ListUpdated {
		t.Fatalf("unexpected type %s", ev.Type)
	}
}

func TestStorageErrorUnwrap(t *testing.T) {
	err := error(&StorageError{Op: "save", Key: "l1", Err: fs.ErrPermission})
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatal("expected wrapped permission error")
	}
	if !IsStorageError(err) {
		t.Fatal("expected storage error")
	}
	if IsStorageError(ErrListNotFound) {
		t.Fatal("not found is not a storage error")
	}
}
