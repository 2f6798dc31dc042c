package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSunTimes(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v1/station/sun?date=2025-06-21", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SunTimesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2025-06-21", resp.Date)
	assert.True(t, resp.Sunrise.Before(resp.Sunset))

	rec = doRequest(c, http.MethodGet, "/api/v1/station/sun?date=21.06.2025", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
