package domain

const (
	ListUpdated = "list_updated"
)

// Event is the message fanned out to every live viewer of a list.
type Event struct {
	Type string `json:"type"`
	List List   `json:"list"`
}

// NewListUpdated builds a list_updated event carrying a snapshot of l.
func NewListUpdated(l List) Event {
	return Event{Type: ListUpdated, List: l.Clone()}
}
