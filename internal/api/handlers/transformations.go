package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"flowtechs/internal/logger"
	"flowtechs/internal/models"
	"flowtechs/internal/repository"
	"flowtechs/internal/services/expression"
	"flowtechs/internal/services/sources"

	"github.com/gin-gonic/gin"
)

type TransformationHandler struct {
	repo         *repository.TransformationRepository
	sources      *sources.Service
	destinations *repository.DestinationRepository
	logger       *logger.Logger
}

func NewTransformationHandler(repo *repository.TransformationRepository, sourceService *sources.Service, destinations *repository.DestinationRepository, logger *logger.Logger) *TransformationHandler {
	return &TransformationHandler{
		repo:         repo,
		sources:      sourceService,
		destinations: destinations,
		logger:       logger,
	}
}

type transformationRequest struct {
	Name           string                 `json:"name" binding:"required"`
	SourceID       string                 `json:"source_id" binding:"required"`
	DestinationID  string                 `json:"destination_id" binding:"required"`
	SelectedFields []string               `json:"selected_fields"`
	DerivedColumns []models.DerivedColumn `json:"derived_columns"`
}

// errInvalidTransformation marks request problems that map to 400.
var errInvalidTransformation = errors.New("invalid transformation")

// check validates the request and that both ends belong to the user.
func (h *TransformationHandler) check(ctx context.Context, userID string, req *transformationRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: name is required", errInvalidTransformation)
	}
	for _, col := range req.DerivedColumns {
		if strings.TrimSpace(col.Name) == "" {
			return fmt.Errorf("%w: derived column name is required", errInvalidTransformation)
		}
		if err := expression.Validate(col.Expression, req.SelectedFields); err != nil {
			return fmt.Errorf("%w: column %s: %v", errInvalidTransformation, col.Name, err)
		}
	}
	if _, err := h.sources.Get(ctx, userID, req.SourceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: source not found", errInvalidTransformation)
		}
		return err
	}
	if _, err := h.destinations.FindByID(ctx, userID, req.DestinationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: destination not found", errInvalidTransformation)
		}
		return err
	}
	return nil
}

func (h *TransformationHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	list, err := h.repo.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("Failed to list transformations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transformations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": list})
}

func (h *TransformationHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	t, err := h.repo.FindByID(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Failed to fetch transformation")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": t})
}

func (h *TransformationHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req transformationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.check(c.Request.Context(), user.ID, &req); err != nil {
		h.writeError(c, err, "Failed to create transformation")
		return
	}

	now := time.Now()
	t := &models.Transformation{
		UserID:         user.ID,
		Name:           strings.TrimSpace(req.Name),
		SourceID:       req.SourceID,
		DestinationID:  req.DestinationID,
		SelectedFields: req.SelectedFields,
		DerivedColumns: req.DerivedColumns,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.repo.Create(c.Request.Context(), t); err != nil {
		h.writeError(c, err, "Failed to create transformation")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": t})
}

func (h *TransformationHandler) Update(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	t, err := h.repo.FindByID(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Failed to fetch transformation")
		return
	}

	var req transformationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.check(c.Request.Context(), user.ID, &req); err != nil {
		h.writeError(c, err, "Failed to update transformation")
		return
	}

	t.Name = strings.TrimSpace(req.Name)
	t.SourceID = req.SourceID
	t.DestinationID = req.DestinationID
	t.SelectedFields = req.SelectedFields
	t.DerivedColumns = req.DerivedColumns
	t.UpdatedAt = time.Now()

	if err := h.repo.Save(c.Request.Context(), t); err != nil {
		h.writeError(c, err, "Failed to update transformation")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": t})
}

func (h *TransformationHandler) Delete(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.repo.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		h.writeError(c, err, "Failed to delete transformation")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Transformation deleted successfully"})
}

type validateRequest struct {
	Expression string   `json:"expression"`
	Fields     []string `json:"fields"`
}

// Validate checks one derived-column expression without saving anything.
func (h *TransformationHandler) Validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := expression.Validate(req.Expression, req.Fields); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *TransformationHandler) Functions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": expression.Functions()})
}

func (h *TransformationHandler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, errInvalidTransformation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Transformation not found"})
	default:
		h.logger.Error("%s: %v", fallback, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
