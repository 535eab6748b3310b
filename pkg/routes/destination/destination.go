package destination

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/aster/pkg/destinations"
	"github.com/Ramsey-B/aster/pkg/models"
)

var validate = validator.New()

// Register registers destination routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("/aggregate", Aggregate)
	g.GET("/:id", Get)
	g.PUT("/:id/overrides", UpdateOverrides)
	g.PUT("/:id/status", UpdateStatus)
	g.PUT("/:id/featured", UpdateFeatured)
}

// Aggregate runs an aggregation for a location and returns the resulting
// destination
func Aggregate(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.AggregateRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*destinations.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	dest, err := svc.CreateFromSubmissions(ctx, req.City, req.Country, req.Overrides)
	if err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"id":   dest.ID,
			"city": dest.City,
		}).Info("Aggregated destination")
	}

	return c.JSON(http.StatusCreated, dest)
}

// Get returns a destination with overrides applied over the snapshot
func Get(c echo.Context) error {
	ctx := c.Request().Context()

	id := c.Param("id")

	ctx, svc, err := ectoinject.GetContext[*destinations.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	view, err := svc.GetWithAggregations(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, view)
}

// List returns filtered, paged destinations
func List(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.DestinationListRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*destinations.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	resp, err := svc.List(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// UpdateOverrides replaces a destination's admin overrides
func UpdateOverrides(c echo.Context) error {
	ctx := c.Request().Context()

	id := c.Param("id")

	var req models.UpdateOverridesRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, svc, err := ectoinject.GetContext[*destinations.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	view, err := svc.UpdateOverrides(ctx, id, req.Overrides)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, view)
}

// UpdateStatus changes a destination's curation status
func UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()

	id := c.Param("id")

	var req models.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*destinations.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if err := svc.SetStatus(ctx, id, req.Status); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// UpdateFeatured toggles a destination's featured flag
func UpdateFeatured(c echo.Context) error {
	ctx := c.Request().Context()

	id := c.Param("id")

	var req models.UpdateFeaturedRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, svc, err := ectoinject.GetContext[*destinations.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if err := svc.SetFeatured(ctx, id, req.Featured); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
