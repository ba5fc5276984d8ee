package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Reachvip123/telegram-store-bot/internal/khqr"
	"github.com/Reachvip123/telegram-store-bot/internal/repository"
	"github.com/Reachvip123/telegram-store-bot/internal/service"
	transport "github.com/Reachvip123/telegram-store-bot/internal/transport/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockFulfillment implements service.FulfillmentService for handler tests.
type MockFulfillment struct {
	StartOrderFunc     func(ctx context.Context, in service.StartOrderInput) (service.Order, error)
	AdjustQuantityFunc func(ctx context.Context, orderID uuid.UUID, delta int) (service.Order, error)
	ConfirmFunc        func(ctx context.Context, orderID uuid.UUID) (service.Order, error)
	CancelFunc         func(ctx context.Context, orderID uuid.UUID) error
	GetOrderFunc       func(orderID uuid.UUID) (service.Order, bool)
	ForceConfirmFunc   func(ctx context.Context, in service.StartOrderInput) (string, error)
}

func (m *MockFulfillment) StartOrder(ctx context.Context, in service.StartOrderInput) (service.Order, error) {
	if m.StartOrderFunc != nil {
		return m.StartOrderFunc(ctx, in)
	}
	return service.Order{}, nil
}
func (m *MockFulfillment) AdjustQuantity(ctx context.Context, orderID uuid.UUID, delta int) (service.Order, error) {
	if m.AdjustQuantityFunc != nil {
		return m.AdjustQuantityFunc(ctx, orderID, delta)
	}
	return service.Order{}, nil
}
func (m *MockFulfillment) Confirm(ctx context.Context, orderID uuid.UUID) (service.Order, error) {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, orderID)
	}
	return service.Order{}, nil
}
func (m *MockFulfillment) Cancel(ctx context.Context, orderID uuid.UUID) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, orderID)
	}
	return nil
}
func (m *MockFulfillment) GetOrder(orderID uuid.UUID) (service.Order, bool) {
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(orderID)
	}
	return service.Order{}, false
}
func (m *MockFulfillment) ForceConfirm(ctx context.Context, in service.StartOrderInput) (string, error) {
	if m.ForceConfirmFunc != nil {
		return m.ForceConfirmFunc(ctx, in)
	}
	return "", nil
}
func (m *MockFulfillment) Close() {}

func newRouter(orders service.FulfillmentService, apiKey string) *gin.Engine {
	h := transport.NewStoreHandler(&repository.Repository{}, orders, zap.NewNop())
	return transport.NewRouter(h, apiKey)
}

func doJSON(t *testing.T, r *gin.Engine, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAPIKeyAuth(t *testing.T) {
	r := newRouter(&MockFulfillment{}, "secret")

	// Health is open.
	w := doJSON(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// API without the key is rejected.
	w = doJSON(t, r, http.MethodGet, "/api/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/stats", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStartOrderEndpoint(t *testing.T) {
	var gotInput service.StartOrderInput
	orders := &MockFulfillment{
		StartOrderFunc: func(ctx context.Context, in service.StartOrderInput) (service.Order, error) {
			gotInput = in
			return service.Order{
				ID:          uuid.New(),
				ChatID:      in.ChatID,
				ExternalID:  in.ProductID,
				ProductName: "Streaming Premium",
				VariantCode: in.VariantCode,
				UnitPrice:   decimal.RequireFromString("3.50"),
				Quantity:    in.Quantity,
				Status:      service.StatusDraft,
			}, nil
		},
	}
	r := newRouter(orders, "")

	w := doJSON(t, r, http.MethodPost, "/api/orders", "", map[string]any{
		"chat_id":      42,
		"product_id":   1,
		"variant_code": "1M",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Missing quantity defaults to one, missing username to Unknown.
	assert.Equal(t, 1, gotInput.Quantity)
	assert.Equal(t, "Unknown", gotInput.Username)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "DRAFT", resp["status"])
	assert.Equal(t, "3.50", resp["total"])
}

func TestStartOrderEndpoint_SoldOut(t *testing.T) {
	orders := &MockFulfillment{
		StartOrderFunc: func(ctx context.Context, in service.StartOrderInput) (service.Order, error) {
			return service.Order{}, service.ErrSoldOut
		},
	}
	r := newRouter(orders, "")

	w := doJSON(t, r, http.MethodPost, "/api/orders", "", map[string]any{
		"chat_id": 42, "product_id": 1, "variant_code": "1M",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestConfirmEndpoint_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{service.ErrOrderNotFound, http.StatusNotFound},
		{service.ErrOrderNotDraft, http.StatusBadRequest},
		{service.ErrSoldOut, http.StatusConflict},
		{service.ErrPaymentUnavailable, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		orders := &MockFulfillment{
			ConfirmFunc: func(ctx context.Context, orderID uuid.UUID) (service.Order, error) {
				return service.Order{}, tc.err
			},
		}
		r := newRouter(orders, "")
		w := doJSON(t, r, http.MethodPost, "/api/orders/"+uuid.NewString()+"/confirm", "", nil)
		assert.Equal(t, tc.code, w.Code, "error %v", tc.err)
	}
}

func TestConfirmEndpoint_BadOrderID(t *testing.T) {
	r := newRouter(&MockFulfillment{}, "")
	w := doJSON(t, r, http.MethodPost, "/api/orders/not-a-uuid/confirm", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForceConfirmEndpoint(t *testing.T) {
	orders := &MockFulfillment{
		ForceConfirmFunc: func(ctx context.Context, in service.StartOrderInput) (string, error) {
			return "DZPREM-01012024-ABCDE", nil
		},
	}
	r := newRouter(orders, "secret")

	w := doJSON(t, r, http.MethodPost, "/api/orders/force", "secret", map[string]any{
		"chat_id": 42, "product_id": 1, "variant_code": "1M", "quantity": 2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "DZPREM-01012024-ABCDE", resp["trx_id"])
}

// FakeGateway backs the proxy handler tests.
type FakeGateway struct {
	status khqr.Status
	err    error
}

func (f *FakeGateway) CreateQR(ctx context.Context, req khqr.CreateRequest) (*khqr.QR, error) {
	if f.err != nil {
		return nil, f.err
	}
	payload := khqr.BuildPayload(khqr.CreateRequest{
		Amount:       req.Amount,
		BankAccount:  "merchant@bank",
		MerchantName: "Test Store",
		BillNumber:   req.BillNumber,
	}, khqr.DefaultMerchantOptions())
	return &khqr.QR{Payload: payload, MD5: khqr.MD5Ref(payload)}, nil
}

func (f *FakeGateway) CheckPayment(ctx context.Context, md5 string) (khqr.Status, error) {
	return f.status, f.err
}

func TestProxyRouter_CreateQR(t *testing.T) {
	r := transport.NewProxyRouter(transport.NewProxyHandler(&FakeGateway{}, zap.NewNop()))

	w := doJSON(t, r, http.MethodPost, "/create_qr", "", map[string]any{"amount": 7.5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	assert.NotEmpty(t, resp["qr_code"])
	assert.Len(t, resp["md5"], 32)
}

func TestProxyRouter_CreateQR_BadAmount(t *testing.T) {
	r := transport.NewProxyRouter(transport.NewProxyHandler(&FakeGateway{}, zap.NewNop()))
	w := doJSON(t, r, http.MethodPost, "/create_qr", "", map[string]any{"amount": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProxyRouter_Check(t *testing.T) {
	r := transport.NewProxyRouter(transport.NewProxyHandler(&FakeGateway{status: khqr.StatusPaid}, zap.NewNop()))

	w := doJSON(t, r, http.MethodGet, "/check/abc123", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 0, resp["responseCode"])

	r = transport.NewProxyRouter(transport.NewProxyHandler(&FakeGateway{status: khqr.StatusUnpaid}, zap.NewNop()))
	w = doJSON(t, r, http.MethodGet, "/check/abc123", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp["responseCode"])
}
