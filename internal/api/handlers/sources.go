package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"flowtechs/internal/logger"
	"flowtechs/internal/metrics"
	"flowtechs/internal/models"
	"flowtechs/internal/realtime"
	"flowtechs/internal/repository"
	"flowtechs/internal/services/shopify"
	"flowtechs/internal/services/sources"

	"github.com/gin-gonic/gin"
)

type SourceHandler struct {
	service   *sources.Service
	feed      realtime.Feed
	backoff   realtime.Backoff
	hub       *realtime.Hub
	heartbeat time.Duration
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewSourceHandler(service *sources.Service, feed realtime.Feed, backoff realtime.Backoff, logger *logger.Logger, m *metrics.Metrics) *SourceHandler {
	return &SourceHandler{
		service:   service,
		feed:      feed,
		backoff:   backoff,
		hub:       realtime.NewHub(),
		heartbeat: 30 * time.Second,
		logger:    logger,
		metrics:   m,
	}
}

func redactAll(list []models.Source) []models.Source {
	out := make([]models.Source, len(list))
	for i, s := range list {
		out[i] = s.Redacted()
	}
	return out
}

func (h *SourceHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	list, err := h.service.List(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("Failed to list sources for %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sources"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": redactAll(list)})
}

func (h *SourceHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	source, err := h.service.Get(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Failed to fetch source")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": source.Redacted()})
}

type createSourceRequest struct {
	Name        string                 `json:"name" binding:"required"`
	SourceType  models.SourceType      `json:"source_type" binding:"required"`
	Credentials map[string]interface{} `json:"credentials"`
}

func (h *SourceHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	source, err := h.service.Create(c.Request.Context(), user.ID, req.Name, req.SourceType, req.Credentials)
	if err != nil {
		h.writeError(c, err, "Failed to create source")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": source.Redacted()})
}

type renameSourceRequest struct {
	Name string `json:"name" binding:"required"`
}

// Rename changes only the display name.
func (h *SourceHandler) Rename(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req renameSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	source, err := h.service.Rename(c.Request.Context(), user.ID, c.Param("id"), req.Name)
	if err != nil {
		h.writeError(c, err, "Failed to update source")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": source.Redacted()})
}

func (h *SourceHandler) Delete(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := h.service.Delete(c.Request.Context(), user.ID, id); err != nil {
		h.writeError(c, err, "Failed to delete source")
		return
	}
	h.hub.Remove(user.ID, id)

	c.JSON(http.StatusOK, gin.H{"message": "Source deleted successfully"})
}

func (h *SourceHandler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
	case errors.Is(err, repository.ErrDuplicateShop):
		c.JSON(http.StatusConflict, gin.H{"error": "A source for this shop already exists"})
	case errors.Is(err, sources.ErrNameRequired),
		errors.Is(err, sources.ErrInvalidSourceType),
		errors.Is(err, shopify.ErrMissingShop):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, shopify.ErrInvalidShopDomain):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidShop})
	default:
		h.logger.Error("%s: %v", fallback, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// Stream pushes the caller's source list as server-sent events. A new
// snapshot goes out after every change; the last event of a feed that gave up
// carries state "stale".
func (h *SourceHandler) Stream(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	fetch := func(ctx context.Context) ([]models.Source, error) {
		return h.service.List(ctx, user.ID)
	}
	watcher := realtime.NewWatcher(user.ID, h.feed, fetch, h.backoff, h.logger, h.metrics)
	defer h.hub.Register(watcher)()

	// Snapshots are coalesced: the writer always sends the latest one.
	dirty := make(chan struct{}, 1)
	watcher.OnUpdate(func(realtime.Snapshot) {
		select {
		case dirty <- struct{}{}:
		default:
		}
	})

	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			c.Writer.Flush()
		case <-dirty:
			if err := writeSnapshot(c.Writer, watcher.Snapshot()); err != nil {
				h.logger.Warn("Failed to write source snapshot: %v", err)
				return
			}
			c.Writer.Flush()
		case err := <-done:
			if errors.Is(err, realtime.ErrStale) {
				writeSnapshot(c.Writer, watcher.Snapshot())
				c.Writer.Flush()
			}
			return
		}
	}
}

func writeSnapshot(w io.Writer, snap realtime.Snapshot) error {
	snap.Sources = redactAll(snap.Sources)
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: sources\ndata: %s\n\n", data)
	return err
}
