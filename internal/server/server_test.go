package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/railzwaylabs/cargoledger/internal/invoice/domain"
	jobdomain "github.com/railzwaylabs/cargoledger/internal/job/domain"
	"github.com/railzwaylabs/cargoledger/internal/observability"
	quotedomain "github.com/railzwaylabs/cargoledger/internal/quote/domain"
	paymentdomain "github.com/railzwaylabs/cargoledger/internal/payment/domain"
	ratingservice "github.com/railzwaylabs/cargoledger/internal/rating/service"
	recomputedomain "github.com/railzwaylabs/cargoledger/internal/recompute/domain"
	"github.com/railzwaylabs/cargoledger/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockQuoteService struct {
	mock.Mock
}

func (m *MockQuoteService) Create(ctx context.Context, req quotedomain.UpsertRequest) (*quotedomain.Response, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*quotedomain.Response)
	return res, args.Error(1)
}

func (m *MockQuoteService) Update(ctx context.Context, id string, req quotedomain.UpsertRequest) (*quotedomain.Response, error) {
	args := m.Called(ctx, id, req)
	res, _ := args.Get(0).(*quotedomain.Response)
	return res, args.Error(1)
}

func (m *MockQuoteService) Get(ctx context.Context, id string) (*quotedomain.Response, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*quotedomain.Response)
	return res, args.Error(1)
}

func (m *MockQuoteService) List(ctx context.Context, req quotedomain.ListRequest) (quotedomain.ListResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(quotedomain.ListResponse), args.Error(1)
}

func (m *MockQuoteService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) Submit(ctx context.Context, req jobdomain.SubmitRequest) (*jobdomain.Response, bool, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*jobdomain.Response)
	return res, args.Bool(1), args.Error(2)
}

func (m *MockJobService) Get(ctx context.Context, id string) (*jobdomain.Response, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*jobdomain.Response)
	return res, args.Error(1)
}

type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) response(args mock.Arguments) (*invoicedomain.Response, error) {
	res, _ := args.Get(0).(*invoicedomain.Response)
	return res, args.Error(1)
}

func (m *MockInvoiceService) GenerateInvoices(ctx context.Context, req invoicedomain.GenerateRequest) (*invoicedomain.GenerateResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*invoicedomain.GenerateResult)
	return res, args.Error(1)
}

func (m *MockInvoiceService) Get(ctx context.Context, id string) (*invoicedomain.Response, error) {
	return m.response(m.Called(ctx, id))
}

func (m *MockInvoiceService) List(ctx context.Context, req invoicedomain.ListRequest) (invoicedomain.ListResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(invoicedomain.ListResponse), args.Error(1)
}

func (m *MockInvoiceService) Recalculate(ctx context.Context, id string) (*invoicedomain.Response, error) {
	return m.response(m.Called(ctx, id))
}

func (m *MockInvoiceService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockInvoiceService) SetPaid(ctx context.Context, id string, paid bool) (*invoicedomain.Response, error) {
	return m.response(m.Called(ctx, id, paid))
}

func (m *MockInvoiceService) GetSupplier(ctx context.Context, id string) (*invoicedomain.Response, error) {
	return m.response(m.Called(ctx, id))
}

func (m *MockInvoiceService) ListSupplier(ctx context.Context, req invoicedomain.ListRequest) (invoicedomain.ListResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(invoicedomain.ListResponse), args.Error(1)
}

func (m *MockInvoiceService) RecalculateSupplier(ctx context.Context, id string) (*invoicedomain.Response, error) {
	return m.response(m.Called(ctx, id))
}

func (m *MockInvoiceService) DeleteSupplier(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockInvoiceService) SetSupplierPaid(ctx context.Context, id string, paid bool) (*invoicedomain.Response, error) {
	return m.response(m.Called(ctx, id, paid))
}

func (m *MockInvoiceService) SyncPaid(ctx context.Context, side invoicedomain.Side, id snowflake.ID) error {
	return m.Called(ctx, side, id).Error(0)
}

func (m *MockInvoiceService) Exists(ctx context.Context, side invoicedomain.Side, id snowflake.ID) (snowflake.ID, bool, error) {
	args := m.Called(ctx, side, id)
	return args.Get(0).(snowflake.ID), args.Bool(1), args.Error(2)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Create(ctx context.Context, req paymentdomain.Request) (*paymentdomain.Response, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*paymentdomain.Response)
	return res, args.Error(1)
}

func (m *MockPaymentService) Update(ctx context.Context, id string, req paymentdomain.Request) (*paymentdomain.Response, error) {
	args := m.Called(ctx, id, req)
	res, _ := args.Get(0).(*paymentdomain.Response)
	return res, args.Error(1)
}

func (m *MockPaymentService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPaymentService) Get(ctx context.Context, id string) (*paymentdomain.Response, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*paymentdomain.Response)
	return res, args.Error(1)
}

type previewFunc func(ctx context.Context, req ratingservice.PreviewRequest) (*ratingservice.PreviewResponse, error)

func (f previewFunc) Preview(ctx context.Context, req ratingservice.PreviewRequest) (*ratingservice.PreviewResponse, error) {
	return f(ctx, req)
}

type harness struct {
	srv      *Server
	quotes   *MockQuoteService
	jobs     *MockJobService
	invoices *MockInvoiceService
	payments *MockPaymentService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{
		quotes:   &MockQuoteService{},
		jobs:     &MockJobService{},
		invoices: &MockInvoiceService{},
		payments: &MockPaymentService{},
	}
	h.srv = &Server{
		log:        zap.NewNop(),
		quoteSvc:   h.quotes,
		jobSvc:     h.jobs,
		invoiceSvc: h.invoices,
		paymentSvc: h.payments,
	}
	h.srv.newEngine()
	t.Cleanup(func() {
		h.quotes.AssertExpectations(t)
		h.jobs.AssertExpectations(t)
		h.invoices.AssertExpectations(t)
		h.payments.AssertExpectations(t)
	})
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(resp, req)
	return resp
}

type envelope struct {
	Data     json.RawMessage      `json:"data"`
	PageInfo *pagination.PageInfo `json:"page_info"`
	Error    *APIError            `json:"error"`
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return env
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}

func TestMetricsExposesRegistry(t *testing.T) {
	h := newHarness(t)
	h.srv.metrics = observability.NewMetrics()
	h.srv.metrics.RecomputeWaybill("updated")
	h.srv.newEngine()

	resp := h.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `cargoledger_recompute_waybills_total{outcome="updated"} 1`)
}

func TestReadinessWithoutDatabase(t *testing.T) {
	h := newHarness(t)
	h.srv.cfg.Documents.Dir = t.TempDir()

	resp := h.do(t, http.MethodGet, "/ready", nil)

	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	var got ReadinessResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.False(t, got.Ready)
	states := map[string]ReadinessState{}
	for _, issue := range got.Issues {
		states[issue.ID] = issue.Status
	}
	assert.Equal(t, ReadinessStateNotReady, states["database"])
	assert.Equal(t, ReadinessStateNotReady, states["schema_gate"])
	assert.Equal(t, ReadinessStateOptional, states["redis"])
	assert.Equal(t, ReadinessStateReady, states["documents_dir"])
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/api/nope", nil)

	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "route_not_found", decode(t, resp).Error.Code)
}

func TestCreateQuote(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		h := newHarness(t)
		h.quotes.On("Create", mock.Anything, mock.MatchedBy(func(req quotedomain.UpsertRequest) bool {
			return req.Name == "US express" && req.FeeType == "first_leg" && len(req.Tiers) == 1
		})).Return(&quotedomain.Response{ID: "42", Name: "US express"}, nil).Once()

		resp := h.do(t, http.MethodPost, "/api/quotes", map[string]any{
			"name":     "US express",
			"side":     "customer",
			"fee_type": "first_leg",
			"tiers":    []map[string]string{{"start": "0", "end": "10", "rate_per_kg": "4"}},
		})

		require.Equal(t, http.StatusCreated, resp.Code)
		var got quotedomain.Response
		require.NoError(t, json.Unmarshal(decode(t, resp).Data, &got))
		assert.Equal(t, "42", got.ID)
	})

	t.Run("configuration error carries the field", func(t *testing.T) {
		h := newHarness(t)
		h.quotes.On("Create", mock.Anything, mock.Anything).
			Return(nil, &quotedomain.ConfigError{Field: "tiers", Err: quotedomain.ErrTiersNotContiguous}).Once()

		resp := h.do(t, http.MethodPost, "/api/quotes", map[string]any{"name": "broken"})

		require.Equal(t, http.StatusBadRequest, resp.Code)
		apiErr := decode(t, resp).Error
		require.NotNil(t, apiErr)
		assert.Equal(t, "tiers_not_contiguous", apiErr.Code)
		assert.Equal(t, "tiers", apiErr.Field)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		h := newHarness(t)
		h.quotes.On("Create", mock.Anything, mock.Anything).
			Return(nil, &quotedomain.ConfigError{Field: "name", Err: quotedomain.ErrDuplicateName}).Once()

		resp := h.do(t, http.MethodPost, "/api/quotes", map[string]any{"name": "dup"})

		require.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, "duplicate_name", decode(t, resp).Error.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		h := newHarness(t)

		resp := h.do(t, http.MethodPost, "/api/quotes", `{"name":`)

		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "invalid_request", decode(t, resp).Error.Code)
	})
}

func TestListQuotes(t *testing.T) {
	h := newHarness(t)
	h.quotes.On("List", mock.Anything, mock.MatchedBy(func(req quotedomain.ListRequest) bool {
		return req.Side == "supplier" && req.ActiveAt != nil && req.ActiveAt.Day() == 15 && req.PageSize == 2
	})).Return(quotedomain.ListResponse{
		Schedules: []quotedomain.Response{{ID: "1"}, {ID: "2"}},
		PageInfo:  pagination.PageInfo{NextPageToken: "next", HasMore: true},
	}, nil).Once()

	resp := h.do(t, http.MethodGet, "/api/quotes?side=supplier&active_at=2024-03-15T00:00:00Z&page_size=2", nil)

	require.Equal(t, http.StatusOK, resp.Code)
	env := decode(t, resp)
	require.NotNil(t, env.PageInfo)
	assert.True(t, env.PageInfo.HasMore)
	assert.Equal(t, "next", env.PageInfo.NextPageToken)

	bad := h.do(t, http.MethodGet, "/api/quotes?active_at=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, "active_at", decode(t, bad).Error.Field)
}

func TestDeleteQuoteNotFound(t *testing.T) {
	h := newHarness(t)
	h.quotes.On("Delete", mock.Anything, "7").Return(quotedomain.ErrNotFound).Once()

	resp := h.do(t, http.MethodDelete, "/api/quotes/7", nil)

	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "rate_schedule_not_found", decode(t, resp).Error.Code)
}

func TestResolveQuote(t *testing.T) {
	h := newHarness(t)
	h.srv.previewer = previewFunc(func(_ context.Context, req ratingservice.PreviewRequest) (*ratingservice.PreviewResponse, error) {
		if req.FeeType != "first_leg" {
			return nil, ratingservice.ErrInvalidPreview
		}
		return &ratingservice.PreviewResponse{Covered: true, ScheduleID: "9", Amount: "40.00"}, nil
	})

	resp := h.do(t, http.MethodPost, "/api/quotes/resolve", map[string]any{
		"side": "customer", "counterparty_id": "1", "fee_type": "first_leg",
		"at": "2024-03-01T00:00:00Z", "weight": "10",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	var got ratingservice.PreviewResponse
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &got))
	assert.Equal(t, "40.00", got.Amount)

	bad := h.do(t, http.MethodPost, "/api/quotes/resolve", map[string]any{"fee_type": "nope"})
	require.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, "invalid_preview_request", decode(t, bad).Error.Code)
}

func TestSubmitRecompute(t *testing.T) {
	h := newHarness(t)
	job := &jobdomain.Response{ID: "0b5c2f6e-3c7a-4e53-9f0a-4f1f0c8f2a11", Kind: jobdomain.KindRecompute, Status: jobdomain.StatusPending}
	matches := mock.MatchedBy(func(req jobdomain.SubmitRequest) bool {
		payload, ok := req.Payload.(recomputedomain.Request)
		return ok && req.Kind == jobdomain.KindRecompute && req.IdempotencyKey == "run-1" && payload.CustomerID == "5"
	})
	h.jobs.On("Submit", mock.Anything, matches).Return(job, true, nil).Once()
	h.jobs.On("Submit", mock.Anything, matches).Return(job, false, nil).Once()

	first := h.do(t, http.MethodPost, "/api/recompute", map[string]any{"customer_id": "5"}, "Idempotency-Key", " run-1 ")
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, "/api/jobs/"+job.ID, first.Header().Get("Location"))

	again := h.do(t, http.MethodPost, "/api/recompute", map[string]any{"customer_id": "5"}, "Idempotency-Key", "run-1")
	require.Equal(t, http.StatusOK, again.Code)
	var got jobdomain.Response
	require.NoError(t, json.Unmarshal(decode(t, again).Data, &got))
	assert.Equal(t, job.ID, got.ID)
}

func TestSubmitInvoiceGenerationRejectsBadScope(t *testing.T) {
	h := newHarness(t)
	h.jobs.On("Submit", mock.Anything, mock.MatchedBy(func(req jobdomain.SubmitRequest) bool {
		return req.Kind == jobdomain.KindGenerateInvoices
	})).Return(nil, false, fmt.Errorf("%w: %w", jobdomain.ErrInvalidPayload, invoicedomain.ErrInvalidPeriod)).Once()

	resp := h.do(t, http.MethodPost, "/api/invoices/generate", map[string]any{"period": "2024-13"})

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_period", decode(t, resp).Error.Code)
}

func TestGetJob(t *testing.T) {
	h := newHarness(t)
	h.jobs.On("Get", mock.Anything, "missing").Return(nil, jobdomain.ErrNotFound).Once()
	h.jobs.On("Get", mock.Anything, "bad id").Return(nil, errors.New("connection reset")).Once()

	resp := h.do(t, http.MethodGet, "/api/jobs/missing", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "job_not_found", decode(t, resp).Error.Code)

	resp = h.do(t, http.MethodGet, "/api/jobs/bad%20id", nil)
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	apiErr := decode(t, resp).Error
	assert.Equal(t, "internal_error", apiErr.Code)
	assert.NotContains(t, apiErr.Message, "connection reset")
}

func TestListInvoices(t *testing.T) {
	h := newHarness(t)
	h.invoices.On("List", mock.Anything, mock.MatchedBy(func(req invoicedomain.ListRequest) bool {
		return req.CounterpartyID == "11" && req.Period == "2024-03" && req.FeeType == "first_leg" &&
			req.Paid != nil && !*req.Paid
	})).Return(invoicedomain.ListResponse{
		Invoices: []invoicedomain.Response{{ID: "1", Amount: "75.00"}},
	}, nil).Once()
	h.invoices.On("ListSupplier", mock.Anything, mock.MatchedBy(func(req invoicedomain.ListRequest) bool {
		return req.CounterpartyID == "12" && req.Paid == nil
	})).Return(invoicedomain.ListResponse{}, nil).Once()

	resp := h.do(t, http.MethodGet, "/api/invoices?customer_id=11&period=2024-03&fee_type=first_leg&paid=false", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var items []invoicedomain.Response
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "75.00", items[0].Amount)

	resp = h.do(t, http.MethodGet, "/api/supplier-invoices?supplier_id=12", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	bad := h.do(t, http.MethodGet, "/api/invoices?paid=maybe", nil)
	require.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, "paid", decode(t, bad).Error.Field)
}

func TestInvoiceActions(t *testing.T) {
	h := newHarness(t)
	h.invoices.On("Recalculate", mock.Anything, "3").Return(&invoicedomain.Response{ID: "3", Amount: "0.00"}, nil).Once()
	h.invoices.On("SetPaid", mock.Anything, "3", true).Return(&invoicedomain.Response{ID: "3", Paid: true}, nil).Once()
	h.invoices.On("Delete", mock.Anything, "3").Return(nil).Once()
	h.invoices.On("DeleteSupplier", mock.Anything, "4").Return(nil).Once()
	h.invoices.On("GetSupplier", mock.Anything, "x").Return(nil, invoicedomain.ErrInvalidID).Once()

	resp := h.do(t, http.MethodPost, "/api/invoices/3/recalculate", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = h.do(t, http.MethodPatch, "/api/invoices/3/paid", map[string]bool{"paid": true})
	require.Equal(t, http.StatusOK, resp.Code)
	var got invoicedomain.Response
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &got))
	assert.True(t, got.Paid)

	resp = h.do(t, http.MethodPatch, "/api/invoices/3/paid", map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "missing_paid", decode(t, resp).Error.Code)

	resp = h.do(t, http.MethodDelete, "/api/invoices/3", nil)
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = h.do(t, http.MethodDelete, "/api/supplier-invoices/4", nil)
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = h.do(t, http.MethodGet, "/api/supplier-invoices/x", nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_invoice_id", decode(t, resp).Error.Code)
}

func TestPayments(t *testing.T) {
	h := newHarness(t)
	h.payments.On("Create", mock.Anything, mock.MatchedBy(func(req paymentdomain.Request) bool {
		return req.Direction == "receipt" && req.InvoiceID == "3" && req.Amount.String() == "75"
	})).Return(&paymentdomain.Response{ID: "8", InvoiceID: "3"}, nil).Once()
	h.payments.On("Update", mock.Anything, "8", mock.Anything).Return(nil, paymentdomain.ErrInvoiceSideMismatch).Once()
	h.payments.On("Delete", mock.Anything, "8").Return(nil).Once()

	resp := h.do(t, http.MethodPost, "/api/payments", map[string]any{
		"direction": "receipt", "counterparty_type": "customer", "counterparty_id": "11",
		"amount": "75.00", "paid_at": "2024-04-02T00:00:00Z", "invoice_id": "3",
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = h.do(t, http.MethodPut, "/api/payments/8", map[string]any{"supplier_invoice_id": "3"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invoice_side_mismatch", decode(t, resp).Error.Code)

	resp = h.do(t, http.MethodDelete, "/api/payments/8", nil)
	require.Equal(t, http.StatusNoContent, resp.Code)
}
