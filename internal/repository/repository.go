package repository

import "gorm.io/gorm"

type Repository struct {
	DB       *gorm.DB
	Products ProductRepo
	Stock    StockRepo
	Users    UserRepo
	Receipts ReceiptRepo
}

func buildRepository(db *gorm.DB) *Repository {
	return &Repository{
		DB:       db,
		Products: NewProductRepo(db),
		Stock:    NewStockRepo(db),
		Users:    NewUserRepo(db),
		Receipts: NewReceiptRepo(db),
	}
}

func New(db *gorm.DB) *Repository { return buildRepository(db) }

// WithTx runs fn against a transactional copy of the whole repo set.
// A Repository assembled from fakes (nil DB) runs fn directly, which is
// what the engine tests rely on.
func (r *Repository) WithTx(fn func(tx *Repository) error) error {
	if r.DB == nil {
		return fn(r)
	}
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return fn(buildRepository(tx))
	})
}
