package scenarios

import (
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"

	"shoplist/tests/integration/internal/httpclient"
)

type item struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

type list struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Items []item `json:"items"`
}

type event struct {
	Type string `json:"type"`
	List list   `json:"list"`
}

type scenarioConfig struct {
	EventVisibilityMs int `yaml:"event_visibility_ms"`
	Viewers           int `yaml:"viewers"`
}

func loadScenarioConfig() scenarioConfig {
	cfg := scenarioConfig{EventVisibilityMs: 3000, Viewers: 2}
	data, err := os.ReadFile("../config.test.yaml")
	if err != nil {
		return cfg
	}
	var fromFile scenarioConfig
	if err := yaml.Unmarshal(data, &fromFile); err == nil {
		if fromFile.EventVisibilityMs > 0 {
			cfg.EventVisibilityMs = fromFile.EventVisibilityMs
		}
		if fromFile.Viewers > 0 {
			cfg.Viewers = fromFile.Viewers
		}
	}
	return cfg
}

func eventTimeout() time.Duration {
	return time.Duration(loadScenarioConfig().EventVisibilityMs) * time.Millisecond
}

func newClient(t *testing.T) *httpclient.Client {
	t.Helper()
	base := os.Getenv("API_BASE")
	if base == "" {
		base = "http://localhost:8100"
	}
	resp, err := http.Get(base + "/api/health")
	if err != nil {
		t.Skipf("skipping, API not reachable: %v", err)
	}
	resp.Body.Close()
	return httpclient.New(base)
}

func createList(t *testing.T, client *httpclient.Client, name string) list {
	t.Helper()
	var l list
	if _, err := client.PostJSON("/api/lists", map[string]string{"name": name}, &l); err != nil {
		t.Fatalf("create list: %v", err)
	}
	return l
}

func addItem(t *testing.T, client *httpclient.Client, listID, name string) item {
	t.Helper()
	var it item
	if _, err := client.PostJSON("/api/lists/"+listID+"/items", map[string]string{"name": name}, &it); err != nil {
		t.Fatalf("add item %q: %v", name, err)
	}
	return it
}

func openViewer(t *testing.T, client *httpclient.Client, listID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(client.BaseURL, "http") + "/api/ws/" + listID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("open viewer: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// nextEvent waits for the next list_updated event on conn.
func nextEvent(t *testing.T, conn *websocket.Conn) event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(eventTimeout()))
	var ev event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}
