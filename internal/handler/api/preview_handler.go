package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"routepulse/internal/maps"
)

// PreviewHandler serves interactive map lookups: cached route previews and
// geocoding. These never touch the live collection path.
type PreviewHandler struct {
	maps   *maps.Client
	logger *zap.Logger
}

func NewPreviewHandler(mapsClient *maps.Client, logger *zap.Logger) *PreviewHandler {
	return &PreviewHandler{maps: mapsClient, logger: logger}
}

// Preview handles GET /api/routes/preview.
func (h *PreviewHandler) Preview(c echo.Context) error {
	origin := strings.TrimSpace(c.QueryParam("origin"))
	destination := strings.TrimSpace(c.QueryParam("destination"))
	if origin == "" || destination == "" {
		return errorResponse(c, http.StatusBadRequest, "origin and destination are required")
	}

	req := maps.RouteRequest{
		Origin:           origin,
		Destination:      destination,
		Mode:             c.QueryParam("mode"),
		AvoidHighways:    queryBool(c, "avoid_highways"),
		AvoidTolls:       queryBool(c, "avoid_tolls"),
		AdditionalRoutes: queryInt(c, "additional_routes", 0),
	}

	routes, err := h.maps.PreviewRoutes(c.Request().Context(), req)
	if err != nil {
		return h.mapsError(c, "preview", err)
	}
	return successResponse(c, "ok", routes)
}

// Geocode handles GET /api/geocode.
func (h *PreviewHandler) Geocode(c echo.Context) error {
	address := strings.TrimSpace(c.QueryParam("address"))
	if address == "" {
		return errorResponse(c, http.StatusBadRequest, "address is required")
	}

	point, err := h.maps.Geocode(c.Request().Context(), address)
	if err != nil {
		return h.mapsError(c, "geocode", err)
	}
	return successResponse(c, "ok", point)
}

// ReverseGeocode handles GET /api/geocode/reverse.
func (h *PreviewHandler) ReverseGeocode(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("latlng"))
	if raw == "" {
		return errorResponse(c, http.StatusBadRequest, "latlng is required")
	}
	point, ok := maps.ParseLatLng(raw)
	if !ok {
		return errorResponse(c, http.StatusBadRequest, `latlng must be "lat,lng"`)
	}

	address, err := h.maps.ReverseGeocode(c.Request().Context(), point)
	if err != nil {
		return h.mapsError(c, "reverse-geocode", err)
	}
	return successResponse(c, "ok", map[string]string{"address": address})
}

func (h *PreviewHandler) mapsError(c echo.Context, op string, err error) error {
	if errors.Is(err, maps.ErrNoResults) {
		return errorResponse(c, http.StatusNotFound, "No matching result")
	}
	if errors.Is(err, maps.ErrMissingAPIKey) {
		return errorResponse(c, http.StatusBadGateway, "Routing service is not configured")
	}
	var upstream *maps.UpstreamError
	if errors.As(err, &upstream) {
		return errorResponse(c, http.StatusBadGateway, upstream.Error())
	}
	h.logger.Error("Maps request failed", zap.String("op", op), zap.Error(err))
	return errorResponse(c, http.StatusInternalServerError, "Maps request failed")
}
