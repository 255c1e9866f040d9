package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

type createdList struct {
	ID string `json:"id"`
}

func post(client *http.Client, url string, body any) (*http.Response, error) {
	data, err := sonic.Marshal(body)
	if err != nil {
		return nil, err
	}
	return client.Post(url, "application/json", bytes.NewReader(data))
}

func main() {
	baseURL := strings.TrimSuffix(getenv("API_URL", "http://localhost:8100"), "/")
	viewers := getenvInt("VIEWERS", 200)
	writers := getenvInt("WRITERS", 4)
	duration := time.Duration(getenvInt("DURATION_SEC", 60)) * time.Second

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := post(client, baseURL+"/api/lists", map[string]string{"name": "load test"})
	if err != nil || resp.StatusCode != http.StatusOK {
		fmt.Println("create list failed:", err)
		os.Exit(1)
	}
	var list createdList
	err = sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if err != nil || list.ID == "" {
		fmt.Println("decode list failed:", err)
		os.Exit(1)
	}

	var events, attempts, failures, edits, editFailures uint64

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/ws/" + list.ID
	var wg sync.WaitGroup
	wg.Add(viewers)
	for range viewers {
		go func() {
			defer wg.Done()
			backoff := time.Second
			for ctx.Err() == nil {
				atomic.AddUint64(&attempts, 1)
				conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
				if err != nil {
					atomic.AddUint64(&failures, 1)
					time.Sleep(backoff)
					backoff = min(backoff*2, 5*time.Second)
					continue
				}
				backoff = time.Second
				stop := context.AfterFunc(ctx, func() { conn.Close() })
				for {
					if _, _, err := conn.ReadMessage(); err != nil {
						break
					}
					atomic.AddUint64(&events, 1)
				}
				stop()
				conn.Close()
				if ctx.Err() != nil {
					return
				}
				atomic.AddUint64(&failures, 1)
			}
		}()
	}

	wg.Add(writers)
	for w := range writers {
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(250 * time.Millisecond)
			defer ticker.Stop()
			for n := 0; ; n++ {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				resp, err := post(client, baseURL+"/api/lists/"+list.ID+"/items",
					map[string]string{"name": fmt.Sprintf("item %d-%d", w, n)})
				atomic.AddUint64(&edits, 1)
				if err != nil {
					atomic.AddUint64(&editFailures, 1)
					continue
				}
				if resp.StatusCode != http.StatusOK {
					atomic.AddUint64(&editFailures, 1)
				}
				resp.Body.Close()
			}
		}()
	}

	wg.Wait()
	attemptsVal := atomic.LoadUint64(&attempts)
	failuresVal := atomic.LoadUint64(&failures)
	eventsVal := atomic.LoadUint64(&events)
	failureRate := 0.0
	if attemptsVal > 0 {
		failureRate = float64(failuresVal) / float64(attemptsVal)
	}
	fmt.Printf("list=%s viewers=%d writers=%d duration_sec=%d edits=%d edit_failures=%d events_received=%d connection_failures=%d\n",
		list.ID, viewers, writers, int(duration.Seconds()), atomic.LoadUint64(&edits), atomic.LoadUint64(&editFailures), eventsVal, failuresVal)
	if eventsVal == 0 || failureRate > 0.01 {
		os.Exit(1)
	}
}
