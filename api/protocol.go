package api

import "time"

const (
	maxBodySize = 16 * 1024

	defaultPopularLimit = 20
	maxPopularLimit     = 100

	defaultKeepAlive = 30 * time.Second
	writeWait        = 10 * time.Second
)

// request body for list creation, list rename, item creation and item rename
type nameRequest struct {
	Name string `json:"name"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type statusResponse struct {
	Status string `json:"status"`
}
