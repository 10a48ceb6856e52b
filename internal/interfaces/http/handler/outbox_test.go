package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rental/backend/internal/application/event"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOutboxService struct {
	mock.Mock
}

func (m *MockOutboxService) GetDeadLetterEntries(ctx context.Context, filter event.OutboxFilter) (*shared.Paginated[event.OutboxEntryDTO], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[event.OutboxEntryDTO]), args.Error(1)
}

func (m *MockOutboxService) GetEntry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.OutboxEntryDTO), args.Error(1)
}

func (m *MockOutboxService) RetryDeadEntry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.OutboxEntryDTO), args.Error(1)
}

func (m *MockOutboxService) RetryAllDeadEntries(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxService) GetStats(ctx context.Context) (*event.OutboxStatsDTO, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.OutboxStatsDTO), args.Error(1)
}

func newOutboxRouter(svc OutboxService) *gin.Engine {
	h := NewOutboxHandler(svc)
	r := gin.New()
	r.GET("/system/outbox/dead", h.GetDeadLetterEntries)
	r.POST("/system/outbox/dead/retry-all", h.RetryAllDeadEntries)
	r.GET("/system/outbox/stats", h.GetStats)
	r.GET("/system/outbox/:id", h.GetEntry)
	r.POST("/system/outbox/:id/retry", h.RetryDeadEntry)
	return r
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestOutboxHandler_GetDeadLetterEntries(t *testing.T) {
	svc := new(MockOutboxService)
	entry := event.OutboxEntryDTO{ID: uuid.New(), EventType: "rental.payment_recorded", Status: "DEAD"}
	svc.On("GetDeadLetterEntries", mock.Anything, event.OutboxFilter{Page: 2, PageSize: 10}).
		Return(&shared.Paginated[event.OutboxEntryDTO]{
			Items: []event.OutboxEntryDTO{entry}, Total: 11, Page: 2, PageSize: 10, TotalPages: 2,
		}, nil)

	w := serve(newOutboxRouter(svc), http.MethodGet, "/system/outbox/dead?page=2&page_size=10")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(11), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)
	svc.AssertExpectations(t)
}

func TestOutboxHandler_GetDeadLetterEntries_BadQuery(t *testing.T) {
	svc := new(MockOutboxService)
	w := serve(newOutboxRouter(svc), http.MethodGet, "/system/outbox/dead?page_size=1000")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "GetDeadLetterEntries", mock.Anything, mock.Anything)
}

func TestOutboxHandler_RetryDeadEntry(t *testing.T) {
	t.Run("requeues", func(t *testing.T) {
		svc := new(MockOutboxService)
		id := uuid.New()
		svc.On("RetryDeadEntry", mock.Anything, id).Return(&event.OutboxEntryDTO{ID: id, Status: "PENDING"}, nil)

		w := serve(newOutboxRouter(svc), http.MethodPost, "/system/outbox/"+id.String()+"/retry")
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("entry not dead", func(t *testing.T) {
		svc := new(MockOutboxService)
		id := uuid.New()
		svc.On("RetryDeadEntry", mock.Anything, id).
			Return(nil, shared.NewDomainError(shared.CodeInvalidState, "Only dead entries can be retried"))

		w := serve(newOutboxRouter(svc), http.MethodPost, "/system/outbox/"+id.String()+"/retry")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w := serve(newOutboxRouter(new(MockOutboxService)), http.MethodPost, "/system/outbox/xyz/retry")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOutboxHandler_RetryAllAndStats(t *testing.T) {
	svc := new(MockOutboxService)
	svc.On("RetryAllDeadEntries", mock.Anything).Return(int64(3), nil)
	svc.On("GetStats", mock.Anything).Return(&event.OutboxStatsDTO{Pending: 3, Dead: 1, Total: 4}, nil)
	r := newOutboxRouter(svc)

	w := serve(r, http.MethodPost, "/system/outbox/dead/retry-all")
	require.Equal(t, http.StatusOK, w.Code)
	var retried RetryAllResponse
	data(t, w, &retried)
	assert.Equal(t, int64(3), retried.Count)

	w = serve(r, http.MethodGet, "/system/outbox/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var stats event.OutboxStatsDTO
	data(t, w, &stats)
	assert.Equal(t, int64(4), stats.Total)
	svc.AssertExpectations(t)
}

func TestOutboxHandler_GetEntry_NotFound(t *testing.T) {
	svc := new(MockOutboxService)
	id := uuid.New()
	svc.On("GetEntry", mock.Anything, id).Return(nil, shared.NewDomainError(shared.CodeNotFound, "Outbox entry not found"))

	w := serve(newOutboxRouter(svc), http.MethodGet, "/system/outbox/"+id.String())
	assert.Equal(t, http.StatusNotFound, w.Code)
}
