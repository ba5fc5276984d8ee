package repository

import (
	"context"
	"errors"

	"github.com/Reachvip123/telegram-store-bot/internal/models"

	"gorm.io/gorm"
)

type ReceiptRepo interface {
	// Create persists the receipt together with its items.
	Create(ctx context.Context, rec *models.Receipt) error
	GetByTrxID(ctx context.Context, trxID string) (*models.Receipt, error)
	ListByChat(ctx context.Context, chatID int64, limit int) ([]models.Receipt, error)
	Count(ctx context.Context) (int64, error)
}

type receiptRepo struct{ db *gorm.DB }

func NewReceiptRepo(db *gorm.DB) ReceiptRepo { return &receiptRepo{db: db} }

func (r *receiptRepo) Create(ctx context.Context, rec *models.Receipt) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *receiptRepo) GetByTrxID(ctx context.Context, trxID string) (*models.Receipt, error) {
	var rec models.Receipt
	err := r.db.WithContext(ctx).Preload("Items").First(&rec, "trx_id = ?", trxID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &rec, err
}

func (r *receiptRepo) ListByChat(ctx context.Context, chatID int64, limit int) ([]models.Receipt, error) {
	if limit <= 0 {
		limit = 20
	}
	var list []models.Receipt
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *receiptRepo) Count(ctx context.Context) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.Receipt{}).Count(&cnt).Error
	return cnt, err
}
