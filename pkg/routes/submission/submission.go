package submission

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/aster/internal/repositories/submission"
	"github.com/Ramsey-B/aster/pkg/models"
)

var validate = validator.New()

// Register registers submission routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.GET("/:id", Get)
	g.PUT("/:id/status", UpdateStatus)
}

// Create accepts a new submission in pending status
func Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreateSubmissionRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if _, _, ok := models.ParseLocation(req.Location); !ok {
		return httperror.NewHTTPError(http.StatusBadRequest, "location must be in \"City, Country\" form")
	}

	ctx, repo, err := ectoinject.GetContext[*submission.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	created, err := repo.Create(ctx, req)
	if err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"id":   created.ID,
			"type": created.Type,
		}).Info("Created submission")
	}

	return c.JSON(http.StatusCreated, created)
}

// Get returns a submission by ID
func Get(c echo.Context) error {
	ctx := c.Request().Context()

	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*submission.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	sub, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, sub)
}

// ListRequest filters submission listings
type ListRequest struct {
	Location  *string `query:"location"`
	Status    *string `query:"status" validate:"omitempty,oneof=draft pending approved rejected archived"`
	Type      *string `query:"type"`
	Processed *bool   `query:"processed"`
	Limit     int     `query:"limit" validate:"omitempty,min=1,max=200"`
	Offset    int     `query:"offset" validate:"omitempty,min=0"`
}

// List returns submissions matching the filter
func List(c echo.Context) error {
	ctx := c.Request().Context()

	var req ListRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.Limit <= 0 {
		req.Limit = 50
	}

	filter := models.SubmissionFilter{
		Location:  req.Location,
		Processed: req.Processed,
		Limit:     req.Limit,
		Offset:    req.Offset,
	}
	if req.Status != nil {
		status := models.SubmissionStatus(*req.Status)
		filter.Status = &status
	}
	if req.Type != nil {
		subType := models.SubmissionType(*req.Type)
		filter.Type = &subType
	}

	ctx, repo, err := ectoinject.GetContext[*submission.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	subs, err := repo.FindSubmissions(ctx, filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, subs)
}

// UpdateStatusRequest moves a submission through moderation
type UpdateStatusRequest struct {
	Status models.SubmissionStatus `json:"status" validate:"required,oneof=draft pending approved rejected archived"`
}

// UpdateStatus changes a submission's moderation status
func UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()

	id := c.Param("id")

	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*submission.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if err := repo.SetStatus(ctx, id, req.Status); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
