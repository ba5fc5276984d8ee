package repository

import (
	"context"
	"errors"

	"github.com/Reachvip123/telegram-store-bot/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductRepo interface {
	Create(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetByExternalID(ctx context.Context, externalID int) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	NextExternalID(ctx context.Context) (int, error)

	// Sold is only ever incremented here, inside the fulfillment transaction.
	IncrementSold(ctx context.Context, id uuid.UUID, qty int) error
	TotalSold(ctx context.Context) (int64, error)

	GetVariant(ctx context.Context, productID uuid.UUID, code string) (*models.Variant, error)
	UpsertVariant(ctx context.Context, v *models.Variant) error
	DeleteVariant(ctx context.Context, productID uuid.UUID, code string) (bool, error)
	SetVariantTutorial(ctx context.Context, productID uuid.UUID, code string, url *string) (bool, error)
}

type productRepo struct{ db *gorm.DB }

func NewProductRepo(db *gorm.DB) ProductRepo { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Preload("Variants").First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

func (r *productRepo) GetByExternalID(ctx context.Context, externalID int) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Preload("Variants").First(&p, "external_id = ?", externalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

func (r *productRepo) List(ctx context.Context) ([]models.Product, error) {
	var list []models.Product
	err := r.db.WithContext(ctx).Preload("Variants").Order("external_id ASC").Find(&list).Error
	return list, err
}

func (r *productRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields).Error
}

func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tx := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	return tx.RowsAffected > 0, tx.Error
}

func (r *productRepo) NextExternalID(ctx context.Context) (int, error) {
	var maxID int
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("COALESCE(MAX(external_id), 0)").
		Scan(&maxID).Error
	return maxID + 1, err
}

func (r *productRepo) IncrementSold(ctx context.Context, id uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Exec(`
UPDATE products
SET sold = sold + @q,
    updated_at = now()
WHERE id = @pid
`, map[string]any{"pid": id, "q": qty}).Error
}

func (r *productRepo) TotalSold(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("COALESCE(SUM(sold), 0)").
		Scan(&total).Error
	return total, err
}

func (r *productRepo) GetVariant(ctx context.Context, productID uuid.UUID, code string) (*models.Variant, error) {
	var v models.Variant
	err := r.db.WithContext(ctx).Where("product_id = ? AND code = ?", productID, code).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &v, err
}

func (r *productRepo) UpsertVariant(ctx context.Context, v *models.Variant) error {
	existing, err := r.GetVariant(ctx, v.ProductID, v.Code)
	if err != nil {
		return err
	}
	if existing == nil {
		return r.db.WithContext(ctx).Create(v).Error
	}
	v.ID = existing.ID
	return r.db.WithContext(ctx).Model(&models.Variant{}).Where("id = ?", existing.ID).Updates(map[string]any{
		"name":  v.Name,
		"price": v.Price,
	}).Error
}

func (r *productRepo) DeleteVariant(ctx context.Context, productID uuid.UUID, code string) (bool, error) {
	tx := r.db.WithContext(ctx).Where("product_id = ? AND code = ?", productID, code).Delete(&models.Variant{})
	return tx.RowsAffected > 0, tx.Error
}

func (r *productRepo) SetVariantTutorial(ctx context.Context, productID uuid.UUID, code string, url *string) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("product_id = ? AND code = ?", productID, code).
		Update("tutorial_url", url)
	return tx.RowsAffected > 0, tx.Error
}
