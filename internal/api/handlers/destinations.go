package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"flowtechs/internal/logger"
	"flowtechs/internal/models"
	"flowtechs/internal/repository"

	"github.com/gin-gonic/gin"
)

type DestinationHandler struct {
	repo   *repository.DestinationRepository
	logger *logger.Logger
}

func NewDestinationHandler(repo *repository.DestinationRepository, logger *logger.Logger) *DestinationHandler {
	return &DestinationHandler{repo: repo, logger: logger}
}

type destinationRequest struct {
	Name            string                 `json:"name" binding:"required"`
	DestinationType models.DestinationType `json:"destination_type" binding:"required"`
	Config          map[string]interface{} `json:"config"`
}

func (r destinationRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if !r.DestinationType.Valid() {
		return errors.New("unsupported destination type")
	}
	return nil
}

func (h *DestinationHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	destinations, err := h.repo.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("Failed to list destinations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch destinations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": destinations})
}

func (h *DestinationHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	destination, err := h.repo.FindByID(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Failed to fetch destination")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": destination})
}

func (h *DestinationHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req destinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	destination := &models.Destination{
		UserID:          user.ID,
		Name:            strings.TrimSpace(req.Name),
		DestinationType: req.DestinationType,
		Config:          req.Config,
		Status:          models.DestinationStatusInactive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := h.repo.Create(c.Request.Context(), destination); err != nil {
		h.writeError(c, err, "Failed to create destination")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": destination})
}

func (h *DestinationHandler) Update(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	destination, err := h.repo.FindByID(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Failed to fetch destination")
		return
	}

	var req destinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	destination.Name = strings.TrimSpace(req.Name)
	destination.DestinationType = req.DestinationType
	destination.Config = req.Config
	destination.UpdatedAt = time.Now()

	if err := h.repo.Save(c.Request.Context(), destination); err != nil {
		h.writeError(c, err, "Failed to update destination")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": destination})
}

func (h *DestinationHandler) Delete(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.repo.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		h.writeError(c, err, "Failed to delete destination")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Destination deleted successfully"})
}

// Available lists the destination types a user can add.
func (h *DestinationHandler) Available(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": []gin.H{
		{"type": models.DestinationTypePostgres, "name": "PostgreSQL", "description": "Load into a PostgreSQL database"},
		{"type": models.DestinationTypeBigQuery, "name": "BigQuery", "description": "Load into a Google BigQuery dataset"},
		{"type": models.DestinationTypeSnowflake, "name": "Snowflake", "description": "Load into a Snowflake warehouse"},
		{"type": models.DestinationTypeS3, "name": "Amazon S3", "description": "Write files to an S3 bucket"},
	}})
}

func (h *DestinationHandler) writeError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Destination not found"})
		return
	}
	h.logger.Error("%s: %v", fallback, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}
