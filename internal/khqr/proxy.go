package khqr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ProxyGateway delegates both QR creation and settlement checks to a
// Cambodia-hosted proxy (cmd/proxy), sidestepping the Bakong IP restriction.
type ProxyGateway struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewProxyGateway(baseURL string, log *zap.Logger) *ProxyGateway {
	return &ProxyGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

type proxyCreateRequest struct {
	Amount       float64 `json:"amount"`
	BankAccount  string  `json:"bank_account"`
	MerchantName string  `json:"merchant_name"`
	BillNumber   string  `json:"bill_number,omitempty"`
}

type proxyCreateResponse struct {
	QRCode string `json:"qr_code"`
	MD5    string `json:"md5"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

func (g *ProxyGateway) CreateQR(ctx context.Context, req CreateRequest) (*QR, error) {
	amount, _ := req.Amount.Float64()
	body, err := json.Marshal(proxyCreateRequest{
		Amount:       amount,
		BankAccount:  req.BankAccount,
		MerchantName: req.MerchantName,
		BillNumber:   req.BillNumber,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/create_qr", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("khqr proxy: create_qr: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("khqr proxy: read response: %w", err)
	}

	var out proxyCreateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("khqr proxy: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.QRCode == "" || out.MD5 == "" {
		if out.Error != "" {
			return nil, fmt.Errorf("khqr proxy: create_qr failed: %s", out.Error)
		}
		return nil, fmt.Errorf("khqr proxy: create_qr returned %d", resp.StatusCode)
	}

	g.log.Info("khqr generated via proxy",
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("md5", out.MD5),
	)
	return &QR{Payload: out.QRCode, MD5: out.MD5}, nil
}

func (g *ProxyGateway) CheckPayment(ctx context.Context, md5 string) (Status, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/check/"+md5, nil)
	if err != nil {
		return StatusUnpaid, err
	}

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return StatusUnpaid, fmt.Errorf("khqr proxy: check: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return StatusUnpaid, fmt.Errorf("khqr proxy: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return StatusUnpaid, fmt.Errorf("khqr proxy: check returned %d", resp.StatusCode)
	}

	return decodeStatus(respBody), nil
}
