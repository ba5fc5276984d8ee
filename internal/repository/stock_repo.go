package repository

import (
	"context"
	"errors"

	"github.com/Reachvip123/telegram-store-bot/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInsufficientStock is returned by TakeExactly when the pool holds fewer
// unconsumed lines than requested. No line is touched in that case.
var ErrInsufficientStock = errors.New("insufficient stock")

type StockRepo interface {
	CountAvailable(ctx context.Context, productID, variantID uuid.UUID) (int64, error)
	Append(ctx context.Context, productID, variantID uuid.UUID, lines []string) error

	// TakeExactly atomically consumes exactly qty lines in FIFO order and
	// returns their payloads, or ErrInsufficientStock with the pool intact.
	// Concurrent callers racing for the same variant take disjoint lines;
	// a caller that cannot find qty free lines gets ErrInsufficientStock,
	// never a short result.
	TakeExactly(ctx context.Context, productID, variantID uuid.UUID, qty int) ([]string, error)

	Clear(ctx context.Context, productID, variantID uuid.UUID) (int64, error)
}

type stockRepo struct{ db *gorm.DB }

func NewStockRepo(db *gorm.DB) StockRepo { return &stockRepo{db: db} }

func (r *stockRepo) CountAvailable(ctx context.Context, productID, variantID uuid.UUID) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&models.StockLine{}).
		Where("product_id = ? AND variant_id = ? AND consumed = false", productID, variantID).
		Count(&cnt).Error
	return cnt, err
}

func (r *stockRepo) Append(ctx context.Context, productID, variantID uuid.UUID, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	rows := make([]models.StockLine, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, models.StockLine{
			ProductID: productID,
			VariantID: variantID,
			Payload:   l,
		})
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *stockRepo) TakeExactly(ctx context.Context, productID, variantID uuid.UUID, qty int) ([]string, error) {
	if qty <= 0 {
		return nil, ErrInsufficientStock
	}

	var payloads []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lines []models.StockLine
		// SKIP LOCKED treats lines another transaction is consuming as
		// already gone, so LIMIT fills from rows that are actually free.
		// With plain FOR UPDATE a blocked taker re-evaluates its LIMIT'd
		// rows after the winner commits and can see a short set even
		// though the pool still holds enough. The exact-count check below
		// still forbids oversell.
		if err := tx.Raw(`
SELECT id, payload FROM stock_lines
WHERE product_id = ? AND variant_id = ? AND consumed = false
ORDER BY id ASC
LIMIT ?
FOR UPDATE SKIP LOCKED
`, productID, variantID, qty).Scan(&lines).Error; err != nil {
			return err
		}

		if len(lines) < qty {
			return ErrInsufficientStock
		}

		ids := make([]int64, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ID)
			payloads = append(payloads, l.Payload)
		}

		return tx.Exec(`
UPDATE stock_lines
SET consumed = true, consumed_at = now()
WHERE id IN ?
`, ids).Error
	})
	if err != nil {
		return nil, err
	}
	return payloads, nil
}

func (r *stockRepo) Clear(ctx context.Context, productID, variantID uuid.UUID) (int64, error) {
	tx := r.db.WithContext(ctx).
		Where("product_id = ? AND variant_id = ? AND consumed = false", productID, variantID).
		Delete(&models.StockLine{})
	return tx.RowsAffected, tx.Error
}
