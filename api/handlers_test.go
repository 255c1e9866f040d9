package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"shoplist/domain"
	"shoplist/hub"
	"shoplist/lists"
	"shoplist/popularity"
	"shoplist/storage"
)

type mockService struct {
	mu        sync.Mutex
	err       error
	lastName  string
	lastItem  string
	lastQuery string
	lastLimit int
	popular   []popularity.Entry
}

func (m *mockService) record(name, item string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastName = name
	m.lastItem = item
	return m.err
}

func (m *mockService) CreateList(_ context.Context, name string) (domain.List, error) {
	return domain.List{ID: "l1", Name: name, Items: []domain.Item{}}, m.record(name, "")
}

func (m *mockService) GetList(_ context.Context, id string) (domain.List, error) {
	return domain.List{ID: id, Items: []domain.Item{}}, m.record("", "")
}

func (m *mockService) RenameList(_ context.Context, id, name string) (domain.List, error) {
	return domain.List{ID: id, Name: name}, m.record(name, "")
}

func (m *mockService) AddItem(_ context.Context, _, name string) (domain.Item, error) {
	return domain.Item{ID: "i1", Name: name}, m.record(name, "")
}

func (m *mockService) ToggleItem(_ context.Context, _, itemID string) (domain.Item, error) {
	return domain.Item{ID: itemID, Completed: true}, m.record("", itemID)
}

func (m *mockService) RenameItem(_ context.Context, _, itemID, name string) (domain.Item, error) {
	return domain.Item{ID: itemID, Name: name}, m.record(name, itemID)
}

func (m *mockService) RemoveItem(_ context.Context, _, itemID string) error {
	return m.record("", itemID)
}

func (m *mockService) Suggest(_ context.Context, q string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	return nil, m.err
}

func (m *mockService) Popular(_ context.Context, limit int) ([]popularity.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	return m.popular, m.err
}

func newServer(svc Service, subs Subscriber) *echo.Echo {
	e := echo.New()
	Register(e, svc, subs, Options{KeepAlive: time.Minute})
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateListTrimsName(t *testing.T) {
	svc := &mockService{}
	rec := do(newServer(svc, hub.New(1, nil)), http.MethodPost, "/api/lists", `{"name":"  Weekly "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastName != "Weekly" {
		t.Fatalf("expected trimmed name, got %q", svc.lastName)
	}
	var l domain.List
	if err := sonic.Unmarshal(rec.Body.Bytes(), &l); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if l.ID != "l1" || l.Name != "Weekly" {
		t.Fatalf("unexpected list %+v", l)
	}
}

func TestRejectsInvalidBodies(t *testing.T) {
	e := newServer(&mockService{}, hub.New(1, nil))
	cases := []struct {
		method, target, body string
	}{
		{http.MethodPost, "/api/lists", `{"name":"   "}`},
		{http.MethodPost, "/api/lists", `not json`},
		{http.MethodPost, "/api/lists/l1/items", `{}`},
		{http.MethodPut, "/api/lists/l1/items/i1", `{"name":""}`},
		{http.MethodPut, "/api/lists/l1", `[]`},
	}
	for _, tc := range cases {
		if rec := do(e, tc.method, tc.target, tc.body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s %s %s: expected 400, got %d", tc.method, tc.target, tc.body, rec.Code)
		}
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		detail string
	}{
		{domain.ErrListNotFound, http.StatusNotFound, "List not found"},
		{domain.ErrItemNotFound, http.StatusNotFound, "Item not found"},
		{&domain.StorageError{Op: "save", Key: "l1", Err: errors.New("disk full")}, http.StatusInternalServerError, "storage unavailable"},
		{&domain.StorageError{Op: "save", Key: "l1", Err: fmt.Errorf("%w: 70000 bytes", storage.ErrDocumentTooLarge)}, http.StatusRequestEntityTooLarge, "too large"},
	}
	for _, tc := range cases {
		e := newServer(&mockService{err: tc.err}, hub.New(1, nil))
		rec := do(e, http.MethodPatch, "/api/lists/l1/items/i1", "")
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), tc.detail) {
			t.Fatalf("%v: unexpected body %s", tc.err, rec.Body.String())
		}
	}
}

func TestItemRoutes(t *testing.T) {
	svc := &mockService{}
	e := newServer(svc, hub.New(1, nil))

	if rec := do(e, http.MethodPut, "/api/lists/l1/items/i9", `{"name":"Oat milk"}`); rec.Code != http.StatusOK {
		t.Fatalf("rename: %d", rec.Code)
	}
	if svc.lastItem != "i9" || svc.lastName != "Oat milk" {
		t.Fatalf("unexpected rename args %q %q", svc.lastItem, svc.lastName)
	}
	rec := do(e, http.MethodDelete, "/api/lists/l1/items/i9", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"status":"deleted"}` {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSuggestionsNeverNull(t *testing.T) {
	svc := &mockService{}
	rec := do(newServer(svc, hub.New(1, nil)), http.MethodGet, "/api/suggestions?q=mi", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	if svc.lastQuery != "mi" {
		t.Fatalf("unexpected query %q", svc.lastQuery)
	}
}

func TestPopularLimit(t *testing.T) {
	svc := &mockService{popular: []popularity.Entry{{Name: "Milk", Count: 10}}}
	e := newServer(svc, hub.New(1, nil))

	rec := do(e, http.MethodGet, "/api/popular", "")
	if rec.Code != http.StatusOK || svc.lastLimit != defaultPopularLimit {
		t.Fatalf("default limit: %d %d", rec.Code, svc.lastLimit)
	}
	if strings.TrimSpace(rec.Body.String()) != `[{"name":"Milk","count":10}]` {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/api/popular?limit=500", ""); rec.Code != http.StatusOK || svc.lastLimit != maxPopularLimit {
		t.Fatalf("capped limit: %d %d", rec.Code, svc.lastLimit)
	}
	if rec := do(e, http.MethodGet, "/api/popular?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := do(newServer(&mockService{}, hub.New(1, nil)), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Fatalf("unexpected health %d %s", rec.Code, rec.Body.String())
	}
}

type memBackend struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func (m *memBackend) Load(_ context.Context, kind, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[kind+"/"+key]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return data, nil
}

func (m *memBackend) Save(_ context.Context, kind, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[kind+"/"+key] = append([]byte(nil), data...)
	return nil
}

func newRealServer(t *testing.T) (*echo.Echo, *hub.Hub) {
	t.Helper()
	backend := &memBackend{docs: map[string][]byte{}}
	h := hub.New(8, nil)
	t.Cleanup(h.Close)
	svc := lists.NewService(storage.NewLists(backend), popularity.New(backend, popularity.DefaultPolicy(), nil), h, lists.Options{})
	return newServer(svc, h), h
}

func TestListLifecycleOverHTTP(t *testing.T) {
	e, _ := newRealServer(t)

	rec := do(e, http.MethodPost, "/api/lists", `{"name":"Weekly"}`)
	var l domain.List
	if err := sonic.Unmarshal(rec.Body.Bytes(), &l); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	rec = do(e, http.MethodPost, "/api/lists/"+l.ID+"/items", `{"name":"Eggs"}`)
	var item domain.Item
	if err := sonic.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if item.Name != "Eggs" || item.Completed || len(item.ID) != 8 {
		t.Fatalf("unexpected item %+v", item)
	}
	if rec := do(e, http.MethodPatch, "/api/lists/"+l.ID+"/items/"+item.ID, ""); rec.Code != http.StatusOK {
		t.Fatalf("toggle: %d", rec.Code)
	}
	rec = do(e, http.MethodGet, "/api/lists/"+l.ID, "")
	if err := sonic.Unmarshal(rec.Body.Bytes(), &l); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(l.Items) != 1 || !l.Items[0].Completed {
		t.Fatalf("unexpected items %+v", l.Items)
	}
	if rec := do(e, http.MethodGet, "/api/lists/unknown", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPatch, "/api/lists/"+l.ID+"/items/unknown", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
