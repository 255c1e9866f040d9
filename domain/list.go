package domain

import "time"

// Item is a single entry of a shopping list. Its ID is unique only within the
// owning list.
type Item struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// List is the whole persisted document for one shared list.
type List struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FindItem returns the index of the item with the given id or -1.
func (l *List) FindItem(itemID string) int {
	for i := range l.Items {
		if l.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// HasItem reports whether an item with the given id exists.
func (l *List) HasItem(itemID string) bool {
	return l.FindItem(itemID) >= 0
}

// Clone returns a deep copy so that snapshots handed to viewers never share
// the item slice with a list that is still being edited.
func (l List) Clone() List {
	out := l
	out.Items = make([]Item, len(l.Items))
	copy(out.Items, l.Items)
	return out
}
