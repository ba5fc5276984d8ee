package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. ExternalID is the short sequential id the
// storefront shows to buyers ("1", "2", ...); it is assigned by the admin
// surface, never reused.
type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ExternalID  int       `gorm:"not null;uniqueIndex:ux_products_external_id"`
	Name        string    `gorm:"type:text;not null"`
	Description string    `gorm:"type:text"`
	// Sold only ever grows; it is incremented by confirmed fulfillment
	// in the same transaction that consumes stock.
	Sold int64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Variants []Variant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

func (Product) TableName() string { return "products" }

// Variant is a purchasable option of a product ("1M", "3M", ...).
// Code is unique within its product.
type Variant struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:ux_variants_product_code"`
	Code      string          `gorm:"type:text;not null;uniqueIndex:ux_variants_product_code"`
	Name      string          `gorm:"type:text;not null"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	// Optional sign-in tutorial appended to delivered credentials.
	TutorialURL *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Variant) TableName() string { return "variants" }

// StockLine is one opaque credential payload in the pool of a variant.
// The bigserial id preserves insertion order, which is the FIFO order
// withdrawals follow. A consumed line is never re-issued.
type StockLine struct {
	ID         int64      `gorm:"primaryKey;autoIncrement"`
	ProductID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_stock_lines_pool"`
	VariantID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_stock_lines_pool"`
	Payload    string     `gorm:"type:text;not null"`
	Consumed   bool       `gorm:"not null;default:false;index:idx_stock_lines_pool"`
	ConsumedAt *time.Time

	CreatedAt time.Time `gorm:"not null;default:now()"`
}

func (StockLine) TableName() string { return "stock_lines" }

// User is a buyer, created lazily on first interaction.
// ChatID is the external chat identity of the front end.
type User struct {
	ChatID   int64           `gorm:"primaryKey"`
	Username string          `gorm:"type:text;not null;default:'Unknown'"`
	Spent    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	JoinedAt time.Time       `gorm:"not null;default:now()"`
}

func (User) TableName() string { return "users" }

// Receipt is the audit record written when an order reaches Delivered.
type Receipt struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TrxID       string          `gorm:"type:text;not null;uniqueIndex:ux_receipts_trx_id"`
	ChatID      int64           `gorm:"not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"`
	VariantID   uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName string          `gorm:"type:text;not null"`
	VariantName string          `gorm:"type:text;not null"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Total       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	PaymentRef  string          `gorm:"type:text;not null"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`

	Items []ReceiptItem `gorm:"foreignKey:ReceiptID;constraint:OnDelete:CASCADE"`
}

func (Receipt) TableName() string { return "receipts" }

// ReceiptItem keeps the delivered credential payloads for audit.
type ReceiptItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ReceiptID uuid.UUID `gorm:"type:uuid;not null;index"`
	Payload   string    `gorm:"type:text;not null"`
}

func (ReceiptItem) TableName() string { return "receipt_items" }
