package khqr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultBakongAPIURL is the Bakong open API. It only answers callers with
// a Cambodia IP; deployments elsewhere go through the proxy transport.
const DefaultBakongAPIURL = "https://api-bakong.nbc.gov.kh"

type DirectConfig struct {
	Token        string
	BankAccount  string
	MerchantName string
	APIBaseURL   string // defaults to DefaultBakongAPIURL
	Merchant     MerchantOptions
}

// DirectGateway builds QR payloads locally and verifies settlement against
// the Bakong open API with a bearer token.
type DirectGateway struct {
	cfg  DirectConfig
	http *http.Client
	log  *zap.Logger
}

func NewDirectGateway(cfg DirectConfig, log *zap.Logger) *DirectGateway {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultBakongAPIURL
	}
	if cfg.Merchant == (MerchantOptions{}) {
		cfg.Merchant = DefaultMerchantOptions()
	}
	return &DirectGateway{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
		log:  log,
	}
}

func (g *DirectGateway) CreateQR(ctx context.Context, req CreateRequest) (*QR, error) {
	if req.BankAccount == "" {
		req.BankAccount = g.cfg.BankAccount
	}
	if req.MerchantName == "" {
		req.MerchantName = g.cfg.MerchantName
	}
	if req.BankAccount == "" {
		return nil, fmt.Errorf("khqr direct: no bank account configured")
	}

	payload := BuildPayload(req, g.cfg.Merchant)
	qr := &QR{Payload: payload, MD5: MD5Ref(payload)}
	g.log.Info("khqr generated",
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("md5", qr.MD5),
	)
	return qr, nil
}

func (g *DirectGateway) CheckPayment(ctx context.Context, md5 string) (Status, error) {
	body, err := json.Marshal(map[string]string{"md5": md5})
	if err != nil {
		return StatusUnpaid, err
	}

	url := g.cfg.APIBaseURL + "/v1/check_transaction_by_md5"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return StatusUnpaid, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.Token)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return StatusUnpaid, fmt.Errorf("khqr direct: check transaction: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return StatusUnpaid, fmt.Errorf("khqr direct: read response: %w", err)
	}

	// Bakong blocks non-Cambodia IPs with 403.
	if resp.StatusCode == http.StatusForbidden {
		return StatusUnpaid, fmt.Errorf("khqr direct: API returned 403, Cambodia IP required (use the proxy)")
	}
	if resp.StatusCode != http.StatusOK {
		return StatusUnpaid, fmt.Errorf("khqr direct: API returned %d", resp.StatusCode)
	}

	return decodeStatus(respBody), nil
}
