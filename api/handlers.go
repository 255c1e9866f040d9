package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"shoplist/domain"
	"shoplist/popularity"
	"shoplist/storage"
)

// Options configures the realtime transports.
type Options struct {
	KeepAlive time.Duration
	Logger    *log.Logger
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc Service, subs Subscriber, opts Options) {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = defaultKeepAlive
	}
	e.Use(RequestMetricsMiddleware(opts.Logger))

	e.GET("/api/health", healthz())
	e.POST("/api/lists", createList(svc))
	e.GET("/api/lists/:id", getList(svc))
	e.PUT("/api/lists/:id", renameList(svc))
	e.POST("/api/lists/:id/items", addItem(svc))
	e.PATCH("/api/lists/:id/items/:itemId", toggleItem(svc))
	e.PUT("/api/lists/:id/items/:itemId", renameItem(svc))
	e.DELETE("/api/lists/:id/items/:itemId", removeItem(svc))
	e.GET("/api/suggestions", suggestions(svc))
	e.GET("/api/popular", popular(svc))

	t := newTransport(subs, opts)
	e.GET("/api/ws/:id", t.websocket)
	e.GET("/api/lists/:id/events", t.events)
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, statusResponse{Status: "ok"})
	}
}

// readName decodes a {"name": ...} body and returns the trimmed name.
func readName(c echo.Context) (string, error) {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	var req nameRequest
	if err := dec.Decode(&req); err != nil {
		return "", errors.New("invalid body")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", errors.New("name is required")
	}
	return name, nil
}

func badRequest(c echo.Context, err error) error {
	metricsFrom(c).SetErrorStage("validation")
	return c.JSON(http.StatusBadRequest, errorResponse{Detail: err.Error()})
}

// writeError maps coordinator errors to responses.
func writeError(c echo.Context, err error) error {
	m := metricsFrom(c)
	switch {
	case errors.Is(err, domain.ErrListNotFound):
		m.SetErrorStage("list_not_found")
		return c.JSON(http.StatusNotFound, errorResponse{Detail: "List not found"})
	case errors.Is(err, domain.ErrItemNotFound):
		m.SetErrorStage("item_not_found")
		return c.JSON(http.StatusNotFound, errorResponse{Detail: "Item not found"})
	case errors.Is(err, storage.ErrDocumentTooLarge):
		m.SetErrorStage("too_large")
		return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Detail: "List is too large to store"})
	default:
		m.SetErrorStage("storage")
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Detail: "storage unavailable"})
	}
}

// observe runs fn and records its duration as store time.
func observe(c echo.Context, fn func() error) error {
	start := time.Now()
	err := fn()
	metricsFrom(c).ObserveStore(time.Since(start))
	return err
}

func createList(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		name, err := readName(c)
		if err != nil {
			return badRequest(c, err)
		}
		var l domain.List
		if err := observe(c, func() (err error) {
			l, err = svc.CreateList(c.Request().Context(), name)
			return err
		}); err != nil {
			return writeError(c, err)
		}
		metricsFrom(c).SetListID(l.ID)
		return c.JSON(http.StatusOK, l)
	}
}

func getList(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		metricsFrom(c).SetListID(id)
		var l domain.List
		if err := observe(c, func() (err error) {
			l, err = svc.GetList(c.Request().Context(), id)
			return err
		}); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, l)
	}
}

func renameList(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		metricsFrom(c).SetListID(id)
		name, err := readName(c)
		if err != nil {
			return badRequest(c, err)
		}
		var l domain.List
		if err := observe(c, func() (err error) {
			l, err = svc.RenameList(c.Request().Context(), id, name)
			return err
		}); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, l)
	}
}

func addItem(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		metricsFrom(c).SetListID(id)
		name, err := readName(c)
		if err != nil {
			return badRequest(c, err)
		}
		var item domain.Item
		if err := observe(c, func() (err error) {
			item, err = svc.AddItem(c.Request().Context(), id, name)
			return err
		}); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, item)
	}
}

func toggleItem(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		metricsFrom(c).SetListID(id)
		var item domain.Item
		if err := observe(c, func() (err error) {
			item, err = svc.ToggleItem(c.Request().Context(), id, c.Param("itemId"))
			return err
		}); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, item)
	}
}

func renameItem(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		metricsFrom(c).SetListID(id)
		name, err := readName(c)
		if err != nil {
			return badRequest(c, err)
		}
		var item domain.Item
		if err := observe(c, func() (err error) {
			item, err = svc.RenameItem(c.Request().Context(), id, c.Param("itemId"), name)
			return err
		}); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, item)
	}
}

func removeItem(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		metricsFrom(c).SetListID(id)
		if err := observe(c, func() error {
			return svc.RemoveItem(c.Request().Context(), id, c.Param("itemId"))
		}); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, statusResponse{Status: "deleted"})
	}
}

func suggestions(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var names []string
		if err := observe(c, func() (err error) {
			names, err = svc.Suggest(c.Request().Context(), c.QueryParam("q"))
			return err
		}); err != nil {
			return writeError(c, err)
		}
		if names == nil {
			names = []string{}
		}
		return c.JSON(http.StatusOK, names)
	}
}

func popular(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := defaultPopularLimit
		if v := strings.TrimSpace(c.QueryParam("limit")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return badRequest(c, errors.New("invalid limit"))
			}
			limit = min(n, maxPopularLimit)
		}
		var entries []popularity.Entry
		if err := observe(c, func() (err error) {
			entries, err = svc.Popular(c.Request().Context(), limit)
			return err
		}); err != nil {
			return writeError(c, err)
		}
		if entries == nil {
			entries = []popularity.Entry{}
		}
		return c.JSON(http.StatusOK, entries)
	}
}
