package migrate

import (
	"context"

	"github.com/Reachvip123/telegram-store-bot/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MigrateOptions struct {
	CreateExtensions       bool // pgcrypto
	CreateChecks           bool // CHECK constraints
	CreateUpdatedAtTrigger bool // updated_at triggers
}

func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		CreateExtensions:       true,
		CreateChecks:           true,
		CreateUpdatedAtTrigger: true,
	}
}

func MigrateStoreDB(ctx context.Context, db *gorm.DB, log *zap.Logger, opt MigrateOptions) error {
	log.Info("starting store schema migration")

	if opt.CreateExtensions {
		if err := db.WithContext(ctx).Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
			log.Error("pgcrypto error", zap.Error(err))
			return err
		}
	}

	log.Info("creating tables: products, variants, stock_lines, users, receipts, receipt_items")
	if err := db.WithContext(ctx).AutoMigrate(
		&models.Product{},
		&models.Variant{},
		&models.StockLine{},
		&models.User{},
		&models.Receipt{},
		&models.ReceiptItem{},
	); err != nil {
		log.Error("AutoMigrate error", zap.Error(err))
		return err
	}

	if opt.CreateUpdatedAtTrigger {
		if err := db.WithContext(ctx).Exec(`
CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
BEGIN NEW.updated_at = now(); RETURN NEW; END; $$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_products_updated ON products;
CREATE TRIGGER trg_products_updated BEFORE UPDATE ON products
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_variants_updated ON variants;
CREATE TRIGGER trg_variants_updated BEFORE UPDATE ON variants
FOR EACH ROW EXECUTE FUNCTION set_updated_at();
`).Error; err != nil {
			log.Error("triggers error", zap.Error(err))
			return err
		}
	}

	if opt.CreateChecks {
		if err := db.WithContext(ctx).Exec(`
ALTER TABLE variants
	DROP CONSTRAINT IF EXISTS chk_variants_price_non_negative,
	ADD CONSTRAINT chk_variants_price_non_negative
	CHECK (price >= 0);
`).Error; err != nil {
			log.Error("chk variants price", zap.Error(err))
			return err
		}

		if err := db.WithContext(ctx).Exec(`
ALTER TABLE products
	DROP CONSTRAINT IF EXISTS chk_products_sold_non_negative,
	ADD CONSTRAINT chk_products_sold_non_negative
	CHECK (sold >= 0);
`).Error; err != nil {
			log.Error("chk products sold", zap.Error(err))
			return err
		}

		if err := db.WithContext(ctx).Exec(`
ALTER TABLE users
	DROP CONSTRAINT IF EXISTS chk_users_spent_non_negative,
	ADD CONSTRAINT chk_users_spent_non_negative
	CHECK (spent >= 0);
`).Error; err != nil {
			log.Error("chk users spent", zap.Error(err))
			return err
		}

		if err := db.WithContext(ctx).Exec(`
ALTER TABLE receipts
	DROP CONSTRAINT IF EXISTS chk_receipts_quantity_positive,
	ADD CONSTRAINT chk_receipts_quantity_positive
	CHECK (quantity > 0);
`).Error; err != nil {
			log.Error("chk receipts quantity", zap.Error(err))
			return err
		}
	}

	log.Info("store schema migration finished")
	return nil
}
