package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusDraft           OrderStatus = "DRAFT"
	StatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	StatusPaid            OrderStatus = "PAID"
	StatusDelivered       OrderStatus = "DELIVERED"
	StatusPaidButEmpty    OrderStatus = "PAID_BUT_EMPTY"
	StatusExpired         OrderStatus = "EXPIRED"
	StatusCancelled       OrderStatus = "CANCELLED"
)

// Order is the in-flight state of one purchase. It lives in the engine
// only; the durable trace of a completed order is the receipt row.
// Catalog fields are snapshots taken at draft time: a price change in the
// catalog does not affect an order already in flight.
type Order struct {
	ID       uuid.UUID
	ChatID   int64
	Username string

	ProductID   uuid.UUID
	VariantID   uuid.UUID
	ExternalID  int
	ProductName string
	VariantName string
	VariantCode string
	UnitPrice   decimal.Decimal
	TutorialURL *string

	Quantity int
	Status   OrderStatus

	// Payment tracking, set on the transition to AwaitingPayment.
	PaymentMD5 string
	QRPayload  string

	CreatedAt time.Time

	// confirming pins the quantity while a QR is being generated: the
	// amount on the QR and the amount settled later must be the same
	// number.
	confirming bool

	cancel context.CancelFunc
}

func (o *Order) Total() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))
}

type StartOrderInput struct {
	ChatID      int64
	Username    string
	ProductID   int // external catalog id
	VariantCode string
	Quantity    int
}

type MessageKind string

const (
	KindDelivery    MessageKind = "delivery"
	KindPaidPending MessageKind = "paid_pending"
	KindExpired     MessageKind = "expired"
	KindCancelled   MessageKind = "cancelled"
	KindError       MessageKind = "error"
)

// Message is the single buyer-facing notification of a terminal order
// state. The front end consuming these decides presentation (and removes
// the QR display for every kind except cancellation of a draft).
type Message struct {
	OrderID uuid.UUID   `json:"order_id"`
	ChatID  int64       `json:"chat_id"`
	Kind    MessageKind `json:"kind"`
	Text    string      `json:"text"`
}

type Messenger interface {
	Send(ctx context.Context, m Message) error
}

// Notifier carries operator alerts: stock shortages after payment and
// gateway misconfiguration. Always in addition to the buyer message,
// never instead of it.
type Notifier interface {
	NotifyOperator(ctx context.Context, text string) error
}

type FulfillmentService interface {
	StartOrder(ctx context.Context, in StartOrderInput) (Order, error)
	AdjustQuantity(ctx context.Context, orderID uuid.UUID, delta int) (Order, error)
	Confirm(ctx context.Context, orderID uuid.UUID) (Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) error
	GetOrder(orderID uuid.UUID) (Order, bool)

	// ForceConfirm delivers without a payment: the manual-resolution path
	// for payments the gateway confirmed out of band.
	ForceConfirm(ctx context.Context, in StartOrderInput) (string, error)

	Close()
}
