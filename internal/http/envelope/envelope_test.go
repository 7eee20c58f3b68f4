package envelope

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:  http.StatusBadRequest,
		CodeAuth:        http.StatusUnauthorized,
		CodeForbidden:   http.StatusForbidden,
		CodeNotFound:    http.StatusNotFound,
		CodeTripLocked:  http.StatusConflict,
		CodeBusy:        http.StatusConflict,
		CodeRateLimit:   http.StatusTooManyRequests,
		CodeLoading:     http.StatusServiceUnavailable,
		CodeUnavailable: http.StatusServiceUnavailable,
		CodeInternal:    http.StatusInternalServerError,
		Code("OTHER"):   http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, code.Status(), string(code))
	}
}

func TestJSONWritesDataWithNullError(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]int{"id": 7})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":7},"error":null}`, rec.Body.String())
}

func TestErrorOmitsEmptyDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, CodeBusy, "Please wait...", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"data":null,"error":{"code":"BUSY","message":"Please wait..."}}`, rec.Body.String())
}

func TestRedirectCarriesLandingPath(t *testing.T) {
	rec := httptest.NewRecorder()
	Redirect(rec, "Session expired due to inactivity.", "/")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body struct {
		Error struct {
			Code    string          `json:"code"`
			Details LandingRedirect `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "AUTH", body.Error.Code)
	assert.Equal(t, LandingRedirect{Redirect: "/", Replace: true}, body.Error.Details)
}
