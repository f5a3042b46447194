package payroll

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/payroll/period/{periodId}", h.GetPeriod).Methods("GET")
	router.HandleFunc("/api/payroll/period/{periodId}/recompute", h.RecomputePeriod).Methods("POST")
	router.HandleFunc("/api/payroll/period/{periodId}/lock", h.LockPeriod).Methods("PUT")
	router.HandleFunc("/api/payroll/period/{periodId}/export", h.ExportPeriod).Methods("GET")
	router.HandleFunc("/api/payroll/taxprofile/{employeeId}", h.SaveTaxProfile).Methods("PUT")
	router.HandleFunc("/api/payroll/taxprofile/{employeeId}/preview", h.PreviewTax).Methods("GET")
	return router
}

func serve(router *mux.Router, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body)).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_RecomputePeriod(t *testing.T) {
	f := setup(t)
	router := newTestRouter(NewHandler(f.service))
	period := f.period(t)
	_, err := f.service.AddRecord(ctx, period.Id, f.employee(t, "25"), decimal.Zero)
	require.NoError(t, err)
	target := "/api/payroll/period/" + strconv.Itoa(period.Id)

	t.Run("should reject a locked period with conflict", func(t *testing.T) {
		rec := serve(router, http.MethodPut, target+"/lock", `{"locked":true}`)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = serve(router, http.MethodPost, target+"/recompute", "")

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("should recompute a locked period when forced", func(t *testing.T) {
		rec := serve(router, http.MethodPost, target+"/recompute?force=true", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var result RecomputeResultDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 1, result.Recomputed)
		assert.NotEmpty(t, result.RunId)
	})

	t.Run("should reject a malformed force flag", func(t *testing.T) {
		rec := serve(router, http.MethodPost, target+"/recompute?force=maybe", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should return period details with records", func(t *testing.T) {
		rec := serve(router, http.MethodGet, target, "")

		require.Equal(t, http.StatusOK, rec.Code)
		var details PeriodDetailsDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
		assert.True(t, details.Locked)
		assert.NotNil(t, details.RecomputedAt)
		require.Len(t, details.Records, 1)
		assert.Equal(t, "25.00", details.Records[0].HourlyRate)
	})

	t.Run("should export records as csv", func(t *testing.T) {
		rec := serve(router, http.MethodGet, target+"/export", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "payroll-"+strconv.Itoa(period.Id)+"-20250303.csv")
		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "record_id,employee_id,hourly_rate"))
	})

	t.Run("should return not found for an unknown period", func(t *testing.T) {
		rec := serve(router, http.MethodGet, "/api/payroll/period/999", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_TaxProfile(t *testing.T) {
	f := setup(t)
	router := newTestRouter(NewHandler(f.service))
	emp := f.employee(t, "20")
	target := "/api/payroll/taxprofile/" + strconv.Itoa(emp)

	t.Run("should save a tiered profile and preview it", func(t *testing.T) {
		// given
		body := `{"method":"tiered","active":true,"brackets":[{"rate":"20"},{"upTo":"1000","rate":"10"}]}`
		rec := serve(router, http.MethodPut, target, body)
		require.Equal(t, http.StatusOK, rec.Code)
		var saved TaxProfileDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
		require.Len(t, saved.Brackets, 2)
		assert.Equal(t, "1000", saved.Brackets[0].UpTo)

		// when
		rec = serve(router, http.MethodGet, target+"/preview?gross=1500", "")

		// then
		require.Equal(t, http.StatusOK, rec.Code)
		var breakdown TaxBreakdownDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &breakdown))
		assert.Equal(t, "200.00", breakdown.Total)
		require.Len(t, breakdown.Lines, 2)
		assert.Equal(t, "100.00", breakdown.Lines[0].Tax)
		assert.Nil(t, breakdown.Lines[1].Upper)
	})

	t.Run("should reject an unknown method", func(t *testing.T) {
		rec := serve(router, http.MethodPut, target, `{"method":"progressive","active":true}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should reject a rate above 100", func(t *testing.T) {
		rec := serve(router, http.MethodPut, target, `{"method":"flat","active":true,"flatRate":"120"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should reject a non-numeric gross", func(t *testing.T) {
		rec := serve(router, http.MethodGet, target+"/preview?gross=lots", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
