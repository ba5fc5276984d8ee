// Package khqr talks to the Bakong KHQR payment scheme. The fulfillment
// engine only sees the Gateway interface; the direct and proxy transports
// are interchangeable implementations of it.
package khqr

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

type Status int

const (
	StatusUnpaid Status = iota
	StatusPaid
)

// QR is a generated payment request: the EMV payload the buyer scans and
// the MD5 reference the settlement of that payload is tracked by.
type QR struct {
	Payload string
	MD5     string
}

type CreateRequest struct {
	Amount       decimal.Decimal
	BankAccount  string
	MerchantName string
	BillNumber   string
}

// Gateway is the two-method payment capability of the storefront.
// CheckPayment returns an error on transport failure; callers treat that
// as an unpaid attempt, not a terminal condition.
type Gateway interface {
	CreateQR(ctx context.Context, req CreateRequest) (*QR, error)
	CheckPayment(ctx context.Context, md5 string) (Status, error)
}

// decodeStatus recognizes the payment-status payloads Bakong and its
// proxies answer with: a bare "PAID" sentinel, a flat {"responseCode":0}
// object, or the same object nested under "data". Anything else is unpaid.
func decodeStatus(body []byte) Status {
	trimmed := strings.TrimSpace(string(body))
	if strings.EqualFold(strings.Trim(trimmed, `"`), "PAID") {
		return StatusPaid
	}

	var resp struct {
		ResponseCode *int `json:"responseCode"`
		Data         struct {
			ResponseCode *int `json:"responseCode"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return StatusUnpaid
	}
	if resp.ResponseCode != nil && *resp.ResponseCode == 0 {
		return StatusPaid
	}
	if resp.Data.ResponseCode != nil && *resp.Data.ResponseCode == 0 {
		return StatusPaid
	}
	return StatusUnpaid
}
