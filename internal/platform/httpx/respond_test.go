package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProblemCarriesTypeURI(t *testing.T) {
	rec := httptest.NewRecorder()
	Problem(rec, http.StatusConflict, "Insufficient Available Stock", "need 3, have 2")

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var problem ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	require.Equal(t, "https://stockcore.dev/problems/insufficient-available-stock", problem.Type)
	require.Equal(t, "Insufficient Available Stock", problem.Title)
	require.Equal(t, http.StatusConflict, problem.Status)
	require.Equal(t, "need 3, have 2", problem.Detail)
}

func TestDecodeJSONRejectsOversizedBody(t *testing.T) {
	huge := `{"note":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge))

	var target struct {
		Note string `json:"note"`
	}
	require.Error(t, DecodeJSON(req, &target))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"note":"ok"}`))
	require.NoError(t, DecodeJSON(req, &target))
	require.Equal(t, "ok", target.Note)
}
