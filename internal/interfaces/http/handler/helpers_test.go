package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apprental "github.com/rental/backend/internal/application/rental"
	"github.com/rental/backend/internal/domain/ledger"
	"github.com/rental/backend/internal/infrastructure/persistence/memory"
	"github.com/rental/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

type testAPI struct {
	engine   *gin.Engine
	store    *memory.Store
	tenantID uuid.UUID
}

// newTestAPI wires the rental and payment handlers over an in-memory store
// behind the request-id and tenant middleware
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	tenantID := uuid.New()
	store.PutBankAccount(ledger.NewBankAccount(tenantID, "Main account", true))

	clock := apprental.WithClock(func() time.Time { return testNow })
	rentals := NewRentalHandler(
		apprental.NewRentalService(store, store.Rentals(), clock),
		apprental.NewStatusService(store, clock),
	)
	payments := NewPaymentHandler(apprental.NewReconciliationService(store, store.Rentals(), store.Payments(), clock))

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.TenantMiddleware(middleware.TenantMiddlewareConfig{HeaderEnabled: true}))
	v1 := r.Group("/api/v1")
	v1.POST("/rentals", rentals.Create)
	v1.GET("/rentals", rentals.List)
	v1.GET("/rentals/:id", rentals.Get)
	v1.PUT("/rentals/:id", rentals.UpdateTerms)
	v1.POST("/rentals/:id/status", rentals.Transition)
	v1.POST("/rentals/:id/cancel", rentals.Cancel)
	v1.POST("/rentals/:id/deliver", rentals.ConfirmDelivery)
	v1.POST("/rentals/:id/return", rentals.ConfirmReturn)
	v1.POST("/rentals/:id/reopen", rentals.Reopen)
	v1.POST("/rentals/:id/undo-delivery", rentals.UndoDelivery)
	v1.POST("/rentals/:id/payments", payments.AddPayment)
	v1.GET("/rentals/:id/payments", payments.ListPayments)
	v1.GET("/rentals/:id/financials", payments.GetFinancials)
	v1.POST("/rentals/:id/reconcile", payments.Reconcile)
	v1.DELETE("/payments/:id", payments.DeletePayment)

	return &testAPI{engine: r, store: store, tenantID: tenantID}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantHeaderKey, a.tenantID.String())
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

// data decodes the envelope's data field into out
func data(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func rentalBody(total string, status string) map[string]any {
	return map[string]any{
		"customer_id": uuid.New().String(),
		"items": []map[string]any{
			{"equipment_id": uuid.New().String(), "quantity": 1, "unit_price": total, "deposit_value": "50"},
		},
		"start_date": testNow.AddDate(0, 0, -2).Format(time.RFC3339),
		"end_date":   testNow.AddDate(0, 0, 5).Format(time.RFC3339),
		"status":     status,
	}
}

func (a *testAPI) createRental(t *testing.T, total, status string) apprental.RentalResponse {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/rentals", rentalBody(total, status))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp apprental.RentalResponse
	data(t, w, &resp)
	return resp
}
