package repository

import (
	"context"
	"errors"

	"github.com/Reachvip123/telegram-store-bot/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepo interface {
	// GetOrCreate returns the ledger row for chatID, creating the default
	// record on first sight.
	GetOrCreate(ctx context.Context, chatID int64) (*models.User, error)
	Get(ctx context.Context, chatID int64) (*models.User, error)

	// CreditSpend adds amount to the cumulative spend and refreshes the
	// stored username. Called only from the fulfillment transaction.
	CreditSpend(ctx context.Context, chatID int64, amount decimal.Decimal, username string) error

	Count(ctx context.Context) (int64, error)
	ListChatIDs(ctx context.Context) ([]int64, error)
	TotalSpent(ctx context.Context) (decimal.Decimal, error)
}

type userRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) UserRepo { return &userRepo{db: db} }

func (r *userRepo) GetOrCreate(ctx context.Context, chatID int64) (*models.User, error) {
	u := models.User{ChatID: chatID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&u).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, chatID)
}

func (r *userRepo) Get(ctx context.Context, chatID int64) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).First(&u, "chat_id = ?", chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &u, err
}

func (r *userRepo) CreditSpend(ctx context.Context, chatID int64, amount decimal.Decimal, username string) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.User{ChatID: chatID}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Exec(`
UPDATE users
SET spent = spent + @amt,
    username = @name
WHERE chat_id = @cid
`, map[string]any{"amt": amount, "name": username, "cid": chatID}).Error
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&cnt).Error
	return cnt, err
}

func (r *userRepo) ListChatIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Order("joined_at ASC").Pluck("chat_id", &ids).Error
	return ids, err
}

func (r *userRepo) TotalSpent(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("COALESCE(SUM(spent), 0)").
		Scan(&total).Error
	return total, err
}
