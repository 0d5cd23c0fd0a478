package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"routepulse/internal/config"
	"routepulse/internal/maps"
)

func reverseGeocodeCall(t *testing.T, query string) *httptest.ResponseRecorder {
	t.Helper()

	// An unconfigured client: validation failures never reach upstream and
	// anything that would is rejected on the missing key.
	h := NewPreviewHandler(maps.NewClient(&config.Config{}, zap.NewNop()), zap.NewNop())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/geocode/reverse?"+query, nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.ReverseGeocode(e.NewContext(req, rec)))
	return rec
}

func TestReverseGeocodeRejectsBadInput(t *testing.T) {
	for _, query := range []string{"", "latlng=not-a-pair", "latlng=38.5"} {
		rec := reverseGeocodeCall(t, query)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %q", query)
	}
}

func TestReverseGeocodeWithoutAPIKey(t *testing.T) {
	rec := reverseGeocodeCall(t, "latlng=38.5,-120.2")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
