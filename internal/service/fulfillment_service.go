package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Reachvip123/telegram-store-bot/internal/khqr"
	"github.com/Reachvip123/telegram-store-bot/internal/models"
	"github.com/Reachvip123/telegram-store-bot/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Options struct {
	// PollInterval is the delay between settlement checks, PollAttempts
	// the ceiling; defaults reproduce the 5s × 120 ≈ 10 minute window.
	PollInterval time.Duration
	PollAttempts int
}

func DefaultOptions() Options {
	return Options{
		PollInterval: 5 * time.Second,
		PollAttempts: 120,
	}
}

type fulfillmentService struct {
	repo      *repository.Repository
	gateway   khqr.Gateway
	messenger Messenger
	notifier  Notifier
	log       *zap.Logger
	opts      Options
	now       func() time.Time

	baseCtx  context.Context
	shutdown context.CancelFunc

	mu     sync.Mutex
	orders map[uuid.UUID]*Order
}

// NewFulfillmentService wires the order state machine. The gateway may be
// nil when no payment transport is configured; orders then never leave
// Draft and every Confirm reports ErrPaymentUnavailable.
func NewFulfillmentService(
	repo *repository.Repository,
	gateway khqr.Gateway,
	messenger Messenger,
	notifier Notifier,
	log *zap.Logger,
	opts Options,
) FulfillmentService {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions().PollInterval
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = DefaultOptions().PollAttempts
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &fulfillmentService{
		repo:      repo,
		gateway:   gateway,
		messenger: messenger,
		notifier:  notifier,
		log:       log,
		opts:      opts,
		now:       time.Now,
		baseCtx:   ctx,
		shutdown:  cancel,
		orders:    make(map[uuid.UUID]*Order),
	}
}

func (s *fulfillmentService) Close() { s.shutdown() }

func clampQuantity(qty int, available int64) int {
	if available > 0 && int64(qty) > available {
		qty = int(available)
	}
	if qty < 1 {
		qty = 1
	}
	return qty
}

func (s *fulfillmentService) StartOrder(ctx context.Context, in StartOrderInput) (Order, error) {
	if in.Quantity < 1 {
		return Order{}, ErrQuantityInvalid
	}

	p, err := s.repo.Products.GetByExternalID(ctx, in.ProductID)
	if err != nil {
		return Order{}, err
	}
	if p == nil {
		return Order{}, ErrProductNotFound
	}

	v, err := s.repo.Products.GetVariant(ctx, p.ID, strings.ToUpper(strings.TrimSpace(in.VariantCode)))
	if err != nil {
		return Order{}, err
	}
	if v == nil {
		return Order{}, ErrVariantNotFound
	}

	if _, err := s.repo.Users.GetOrCreate(ctx, in.ChatID); err != nil {
		return Order{}, err
	}

	available, err := s.repo.Stock.CountAvailable(ctx, p.ID, v.ID)
	if err != nil {
		return Order{}, err
	}
	if available == 0 {
		return Order{}, ErrSoldOut
	}

	o := &Order{
		ID:          uuid.New(),
		ChatID:      in.ChatID,
		Username:    in.Username,
		ProductID:   p.ID,
		VariantID:   v.ID,
		ExternalID:  p.ExternalID,
		ProductName: p.Name,
		VariantName: v.Name,
		VariantCode: v.Code,
		UnitPrice:   v.Price,
		TutorialURL: v.TutorialURL,
		Quantity:    clampQuantity(in.Quantity, available),
		Status:      StatusDraft,
		CreatedAt:   s.now(),
	}

	s.mu.Lock()
	s.orders[o.ID] = o
	snapshot := *o
	s.mu.Unlock()

	return snapshot, nil
}

// AdjustQuantity re-reads availability on every call; the ceiling is
// whatever the pool holds at that moment (last read wins, nothing is
// locked until the actual withdrawal).
func (s *fulfillmentService) AdjustQuantity(ctx context.Context, orderID uuid.UUID, delta int) (Order, error) {
	s.mu.Lock()
	o, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		return Order{}, ErrOrderNotFound
	}
	if o.Status != StatusDraft || o.confirming {
		s.mu.Unlock()
		return Order{}, ErrOrderNotDraft
	}
	productID, variantID, qty := o.ProductID, o.VariantID, o.Quantity
	s.mu.Unlock()

	available, err := s.repo.Stock.CountAvailable(ctx, productID, variantID)
	if err != nil {
		return Order{}, err
	}
	if available == 0 {
		return Order{}, ErrSoldOut
	}

	newQty := clampQuantity(qty+delta, available)

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok = s.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if o.Status != StatusDraft || o.confirming {
		return Order{}, ErrOrderNotDraft
	}
	o.Quantity = newQty
	return *o, nil
}

func (s *fulfillmentService) Confirm(ctx context.Context, orderID uuid.UUID) (Order, error) {
	s.mu.Lock()
	o, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		return Order{}, ErrOrderNotFound
	}
	if o.Status != StatusDraft || o.confirming {
		s.mu.Unlock()
		return Order{}, ErrOrderNotDraft
	}
	// Pin the quantity for the duration of the gateway call: the amount
	// on the QR and the amount settled later must be the same number, so
	// AdjustQuantity is rejected until Confirm resolves.
	o.confirming = true
	snapshot := *o
	s.mu.Unlock()

	available, err := s.repo.Stock.CountAvailable(ctx, snapshot.ProductID, snapshot.VariantID)
	if err != nil {
		s.endConfirm(orderID)
		return Order{}, err
	}
	if available < int64(snapshot.Quantity) {
		s.endConfirm(orderID)
		return Order{}, ErrSoldOut
	}

	if s.gateway == nil {
		s.endConfirm(orderID)
		s.notify(fmt.Sprintf(
			"⚠️ KHQR not configured! User %d tried to pay $%s for %s. Set BAKONG_TOKEN or BAKONG_PROXY_URL.",
			snapshot.ChatID, snapshot.Total().StringFixed(2), snapshot.ProductName,
		))
		return Order{}, ErrPaymentUnavailable
	}

	qr, err := s.gateway.CreateQR(ctx, khqr.CreateRequest{
		Amount:     snapshot.Total(),
		BillNumber: billNumber(s.now()),
	})
	if err != nil {
		s.endConfirm(orderID)
		s.log.Error("qr generation failed", zap.String("order", orderID.String()), zap.Error(err))
		s.notify(fmt.Sprintf(
			"⚠️ KHQR generation failed!\nUser: %d\nProduct: %s\nAmount: $%s\nError: %v",
			snapshot.ChatID, snapshot.ProductName, snapshot.Total().StringFixed(2), err,
		))
		return Order{}, ErrPaymentUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok = s.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if o.Status != StatusDraft {
		return Order{}, ErrOrderNotDraft
	}
	o.confirming = false
	o.Status = StatusAwaitingPayment
	o.PaymentMD5 = qr.MD5
	o.QRPayload = qr.Payload

	pollCtx, cancel := context.WithCancel(s.baseCtx)
	o.cancel = cancel
	go s.pollPayment(pollCtx, o.ID, o.PaymentMD5)

	s.log.Info("order awaiting payment",
		zap.String("order", o.ID.String()),
		zap.String("md5", o.PaymentMD5),
		zap.Int64("chat", o.ChatID),
	)
	return *o, nil
}

// endConfirm releases the quantity pin when Confirm bails out before the
// order leaves Draft.
func (s *fulfillmentService) endConfirm(orderID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[orderID]; ok {
		o.confirming = false
	}
}

// pollPayment is the one goroutine an awaiting order owns. Transport
// failures count as unpaid attempts; the loop only ends in delivery,
// expiry, or cancellation. A panic must still leave the buyer with a
// terminal message.
func (s *fulfillmentService) pollPayment(ctx context.Context, orderID uuid.UUID, md5 string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("payment poll panicked", zap.String("order", orderID.String()), zap.Any("panic", r))
			s.notify(fmt.Sprintf("⚠️ Payment check crashed for order %s (md5 %s): %v", orderID, md5, r))
			s.fail(orderID)
		}
	}()

	for attempt := 1; attempt <= s.opts.PollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.opts.PollInterval):
		}

		status, err := s.gateway.CheckPayment(ctx, md5)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("payment check failed",
				zap.String("md5", md5),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}
		if status == khqr.StatusPaid {
			s.log.Info("payment detected", zap.String("md5", md5), zap.Int("attempt", attempt))
			s.deliver(orderID)
			return
		}
	}

	s.expire(orderID)
}

// deliver runs the Paid transition. The status guard makes it fire at
// most once per order no matter how many polls report paid; all
// accounting happens in one transaction with the stock withdrawal.
func (s *fulfillmentService) deliver(orderID uuid.UUID) {
	s.mu.Lock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != StatusAwaitingPayment {
		s.mu.Unlock()
		return
	}
	o.Status = StatusPaid
	snapshot := *o
	s.mu.Unlock()

	// Accounting must not be aborted by a racing cancel, so it runs on
	// its own context.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	trxID := generateTrxID(s.now())
	payloads, err := s.settle(ctx, &snapshot, trxID)

	s.mu.Lock()
	o, ok = s.orders[orderID]
	if ok {
		if err != nil {
			o.Status = StatusPaidButEmpty
		} else {
			o.Status = StatusDelivered
		}
		delete(s.orders, orderID)
	}
	s.mu.Unlock()

	switch {
	case errors.Is(err, repository.ErrInsufficientStock):
		s.log.Warn("paid but out of stock",
			zap.String("order", orderID.String()),
			zap.String("product", snapshot.ProductName),
			zap.Int("quantity", snapshot.Quantity),
		)
		s.notify(fmt.Sprintf("🚨 OOS: %s %s (%d pcs) paid but empty! Buyer %d, $%s.",
			snapshot.ProductName, snapshot.VariantName, snapshot.Quantity,
			snapshot.ChatID, snapshot.Total().StringFixed(2)))
		s.send(Message{OrderID: orderID, ChatID: snapshot.ChatID, Kind: KindPaidPending, Text: FormatPaidPending(&snapshot)})
	case err != nil:
		s.log.Error("fulfillment transaction failed", zap.String("order", orderID.String()), zap.Error(err))
		s.notify(fmt.Sprintf("🚨 Fulfillment failed after payment for order %s: %v. Manual delivery needed (buyer %d).",
			orderID, err, snapshot.ChatID))
		s.send(Message{OrderID: orderID, ChatID: snapshot.ChatID, Kind: KindPaidPending, Text: FormatPaidPending(&snapshot)})
	default:
		s.log.Info("order delivered",
			zap.String("order", orderID.String()),
			zap.String("trx", trxID),
			zap.Int("quantity", snapshot.Quantity),
		)
		s.send(Message{OrderID: orderID, ChatID: snapshot.ChatID, Kind: KindDelivery, Text: FormatDelivery(&snapshot, payloads, trxID)})
	}
}

// settle withdraws stock and books all accounting atomically: either the
// lines are consumed, sold is bumped, spend is credited and the receipt
// exists — or none of it happened.
func (s *fulfillmentService) settle(ctx context.Context, o *Order, trxID string) ([]string, error) {
	var payloads []string
	err := s.repo.WithTx(func(tx *repository.Repository) error {
		var err error
		payloads, err = tx.Stock.TakeExactly(ctx, o.ProductID, o.VariantID, o.Quantity)
		if err != nil {
			return err
		}
		if err := tx.Products.IncrementSold(ctx, o.ProductID, o.Quantity); err != nil {
			return err
		}
		if err := tx.Users.CreditSpend(ctx, o.ChatID, o.Total(), o.Username); err != nil {
			return err
		}

		rec := &models.Receipt{
			TrxID:       trxID,
			ChatID:      o.ChatID,
			ProductID:   o.ProductID,
			VariantID:   o.VariantID,
			ProductName: o.ProductName,
			VariantName: o.VariantName,
			Quantity:    o.Quantity,
			UnitPrice:   o.UnitPrice,
			Total:       o.Total(),
			PaymentRef:  o.PaymentMD5,
		}
		for _, p := range payloads {
			rec.Items = append(rec.Items, models.ReceiptItem{Payload: p})
		}
		return tx.Receipts.Create(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return payloads, nil
}

func (s *fulfillmentService) expire(orderID uuid.UUID) {
	s.mu.Lock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != StatusAwaitingPayment {
		s.mu.Unlock()
		return
	}
	o.Status = StatusExpired
	snapshot := *o
	delete(s.orders, orderID)
	s.mu.Unlock()

	s.log.Warn("payment timed out", zap.String("order", orderID.String()), zap.String("md5", snapshot.PaymentMD5))
	window := s.opts.PollInterval * time.Duration(s.opts.PollAttempts)
	s.send(Message{OrderID: orderID, ChatID: snapshot.ChatID, Kind: KindExpired, Text: FormatExpired(&snapshot, window)})
}

// fail is the recovery terminal: something went irrecoverably wrong while
// polling and the buyer still gets told.
func (s *fulfillmentService) fail(orderID uuid.UUID) {
	s.mu.Lock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != StatusAwaitingPayment {
		s.mu.Unlock()
		return
	}
	snapshot := *o
	delete(s.orders, orderID)
	s.mu.Unlock()

	s.send(Message{
		OrderID: orderID,
		ChatID:  snapshot.ChatID,
		Kind:    KindError,
		Text:    "❌ Payment system error. Please contact admin.",
	})
}

func (s *fulfillmentService) Cancel(ctx context.Context, orderID uuid.UUID) error {
	s.mu.Lock()
	o, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		return ErrOrderNotFound
	}

	switch o.Status {
	case StatusDraft, StatusAwaitingPayment:
		if o.cancel != nil {
			o.cancel()
		}
		o.Status = StatusCancelled
		snapshot := *o
		delete(s.orders, orderID)
		s.mu.Unlock()

		s.log.Info("order cancelled", zap.String("order", orderID.String()), zap.Int64("chat", snapshot.ChatID))
		s.send(Message{OrderID: orderID, ChatID: snapshot.ChatID, Kind: KindCancelled, Text: FormatCancelled(&snapshot)})
		return nil
	default:
		s.mu.Unlock()
		return ErrOrderFinished
	}
}

func (s *fulfillmentService) GetOrder(orderID uuid.UUID) (Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

func (s *fulfillmentService) ForceConfirm(ctx context.Context, in StartOrderInput) (string, error) {
	if in.Quantity < 1 {
		return "", ErrQuantityInvalid
	}

	p, err := s.repo.Products.GetByExternalID(ctx, in.ProductID)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", ErrProductNotFound
	}
	v, err := s.repo.Products.GetVariant(ctx, p.ID, strings.ToUpper(strings.TrimSpace(in.VariantCode)))
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", ErrVariantNotFound
	}

	o := Order{
		ID:          uuid.New(),
		ChatID:      in.ChatID,
		Username:    in.Username,
		ProductID:   p.ID,
		VariantID:   v.ID,
		ExternalID:  p.ExternalID,
		ProductName: p.Name,
		VariantName: v.Name,
		VariantCode: v.Code,
		UnitPrice:   v.Price,
		TutorialURL: v.TutorialURL,
		Quantity:    in.Quantity,
		Status:      StatusPaid,
		PaymentMD5:  "forced",
		CreatedAt:   s.now(),
	}

	trxID := generateTrxID(s.now())
	payloads, err := s.settle(ctx, &o, trxID)
	if errors.Is(err, repository.ErrInsufficientStock) {
		return "", ErrSoldOut
	}
	if err != nil {
		return "", err
	}

	s.log.Info("forced delivery", zap.String("trx", trxID), zap.Int64("chat", o.ChatID))
	s.send(Message{OrderID: o.ID, ChatID: o.ChatID, Kind: KindDelivery, Text: FormatDelivery(&o, payloads, trxID)})
	return trxID, nil
}

func (s *fulfillmentService) send(m Message) {
	if s.messenger == nil {
		s.log.Warn("no messenger configured, dropping buyer message",
			zap.Int64("chat", m.ChatID), zap.String("kind", string(m.Kind)))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.messenger.Send(ctx, m); err != nil {
		s.log.Error("failed to send buyer message",
			zap.Int64("chat", m.ChatID), zap.String("kind", string(m.Kind)), zap.Error(err))
	}
}

func (s *fulfillmentService) notify(text string) {
	if s.notifier == nil {
		s.log.Warn("no notifier configured, dropping operator alert", zap.String("text", text))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.notifier.NotifyOperator(ctx, text); err != nil {
		s.log.Error("failed to notify operator", zap.Error(err))
	}
}
