package khqr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDecodeStatus(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Status
	}{
		{"bare paid", `PAID`, StatusPaid},
		{"quoted paid", `"PAID"`, StatusPaid},
		{"lowercase paid", `paid`, StatusPaid},
		{"flat response code", `{"responseCode":0}`, StatusPaid},
		{"nested response code", `{"data":{"responseCode":0}}`, StatusPaid},
		{"nonzero code", `{"responseCode":1}`, StatusUnpaid},
		{"nested nonzero", `{"data":{"responseCode":5}}`, StatusUnpaid},
		{"missing code", `{"status":"PENDING"}`, StatusUnpaid},
		{"unpaid sentinel", `UNPAID`, StatusUnpaid},
		{"garbage", `<html>error</html>`, StatusUnpaid},
		{"empty", ``, StatusUnpaid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, decodeStatus([]byte(tc.body)))
		})
	}
}

func TestDirectGateway_CreateQR(t *testing.T) {
	g := NewDirectGateway(DirectConfig{
		Token:        "token",
		BankAccount:  "merchant@bank",
		MerchantName: "Test Store",
	}, zap.NewNop())

	qr, err := g.CreateQR(context.Background(), CreateRequest{
		Amount:     decimal.RequireFromString("5.00"),
		BillNumber: "INV1",
	})
	require.NoError(t, err)
	assert.Equal(t, MD5Ref(qr.Payload), qr.MD5)
	assert.Contains(t, qr.Payload, "merchant@bank")
	assert.Contains(t, qr.Payload, "5910Test Store")
}

func TestDirectGateway_CreateQR_NoAccount(t *testing.T) {
	g := NewDirectGateway(DirectConfig{Token: "token"}, zap.NewNop())

	_, err := g.CreateQR(context.Background(), CreateRequest{
		Amount: decimal.RequireFromString("5.00"),
	})
	assert.Error(t, err)
}

func TestDirectGateway_CheckPayment(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/check_transaction_by_md5", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["md5"] == "paid-md5" {
			w.Write([]byte(`{"responseCode":0}`))
			return
		}
		w.Write([]byte(`{"responseCode":1}`))
	}))
	defer srv.Close()

	g := NewDirectGateway(DirectConfig{
		Token:       "secret",
		BankAccount: "merchant@bank",
		APIBaseURL:  srv.URL,
	}, zap.NewNop())

	status, err := g.CheckPayment(context.Background(), "paid-md5")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, status)
	assert.Equal(t, "Bearer secret", gotAuth)

	status, err = g.CheckPayment(context.Background(), "other-md5")
	require.NoError(t, err)
	assert.Equal(t, StatusUnpaid, status)
}

func TestDirectGateway_CheckPayment_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g := NewDirectGateway(DirectConfig{
		Token:       "secret",
		BankAccount: "merchant@bank",
		APIBaseURL:  srv.URL,
	}, zap.NewNop())

	_, err := g.CheckPayment(context.Background(), "any")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cambodia IP")
}

func TestProxyGateway_CreateQR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/create_qr", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.InDelta(t, 7.5, req["amount"], 1e-9)

		json.NewEncoder(w).Encode(map[string]string{
			"qr_code": "000201payload",
			"md5":     "abc123",
			"status":  "success",
		})
	}))
	defer srv.Close()

	g := NewProxyGateway(srv.URL+"/", zap.NewNop())
	qr, err := g.CreateQR(context.Background(), CreateRequest{
		Amount: decimal.RequireFromString("7.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, "000201payload", qr.Payload)
	assert.Equal(t, "abc123", qr.MD5)
}

func TestProxyGateway_CreateQR_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "token expired"})
	}))
	defer srv.Close()

	g := NewProxyGateway(srv.URL, zap.NewNop())
	_, err := g.CreateQR(context.Background(), CreateRequest{
		Amount: decimal.RequireFromString("1.00"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")
}

func TestProxyGateway_CheckPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/check/wanted-md5", r.URL.Path)
		w.Write([]byte(`{"data":{"responseCode":0}}`))
	}))
	defer srv.Close()

	g := NewProxyGateway(srv.URL, zap.NewNop())
	status, err := g.CheckPayment(context.Background(), "wanted-md5")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, status)
}

func TestProxyGateway_CheckPayment_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewProxyGateway(srv.URL, zap.NewNop())
	_, err := g.CheckPayment(context.Background(), "md5")
	assert.Error(t, err)
}
