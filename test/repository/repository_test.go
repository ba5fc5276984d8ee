package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Reachvip123/telegram-store-bot/internal/migrate"
	"github.com/Reachvip123/telegram-store-bot/internal/models"
	"github.com/Reachvip123/telegram-store-bot/internal/repository"
	"github.com/Reachvip123/telegram-store-bot/internal/testutil"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.SetupTestPostgres(t)
	if err := migrate.MigrateStoreDB(context.Background(), db, zap.NewNop(), migrate.DefaultMigrateOptions()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createProduct(t *testing.T, repo *repository.Repository, externalID int) *models.Product {
	t.Helper()
	p := &models.Product{
		ExternalID: externalID,
		Name:       fmt.Sprintf("Product %d", externalID),
		Variants: []models.Variant{{
			Code:  "1M",
			Name:  "1 Month",
			Price: decimal.RequireFromString("3.50"),
		}},
	}
	if err := repo.Products.Create(context.Background(), p); err != nil {
		t.Fatalf("Create product: %v", err)
	}
	return p
}

func TestProductRepo_CRUD(t *testing.T) {
	db := setupDB(t)
	repo := repository.New(db)
	ctx := context.Background()

	p := createProduct(t, repo, 1)

	// GetByExternalID preloads variants.
	got, err := repo.Products.GetByExternalID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByExternalID: %v", err)
	}
	if got == nil || got.ID != p.ID {
		t.Fatalf("GetByExternalID mismatch: %+v", got)
	}
	if len(got.Variants) != 1 || got.Variants[0].Code != "1M" {
		t.Fatalf("expected preloaded variant, got %+v", got.Variants)
	}

	// Absent external id is nil, nil.
	missing, err := repo.Products.GetByExternalID(ctx, 99)
	if err != nil {
		t.Fatalf("GetByExternalID missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing product, got %+v", missing)
	}

	// UpdateFields
	if err := repo.Products.UpdateFields(ctx, p.ID, map[string]any{"name": "Renamed"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	updated, _ := repo.Products.GetByID(ctx, p.ID)
	if updated.Name != "Renamed" {
		t.Fatalf("UpdateFields mismatch: %+v", updated)
	}

	// Delete
	deleted, err := repo.Products.Delete(ctx, p.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected deleted=true")
	}
	deleted2, err := repo.Products.Delete(ctx, p.ID)
	if err != nil {
		t.Fatalf("Delete second: %v", err)
	}
	if deleted2 {
		t.Fatal("expected deleted2=false")
	}
}

func TestProductRepo_NextExternalID(t *testing.T) {
	db := setupDB(t)
	repo := repository.New(db)
	ctx := context.Background()

	next, err := repo.Products.NextExternalID(ctx)
	if err != nil {
		t.Fatalf("NextExternalID empty: %v", err)
	}
	if next != 1 {
		t.Fatalf("expected 1 on empty catalog, got %d", next)
	}

	createProduct(t, repo, 1)
	createProduct(t, repo, 5)

	next, err = repo.Products.NextExternalID(ctx)
	if err != nil {
		t.Fatalf("NextExternalID: %v", err)
	}
	if next != 6 {
		t.Fatalf("expected 6 after max id 5, got %d", next)
	}
}

func TestProductRepo_Variants(t *testing.T) {
	db := setupDB(t)
	repo := repository.New(db)
	ctx := context.Background()

	p := createProduct(t, repo, 1)

	// Upsert a second variant, then update its price through the same call.
	v := &models.Variant{
		ProductID: p.ID,
		Code:      "3M",
		Name:      "3 Months",
		Price:     decimal.RequireFromString("9.00"),
	}
	if err := repo.Products.UpsertVariant(ctx, v); err != nil {
		t.Fatalf("UpsertVariant: %v", err)
	}
	v2 := &models.Variant{
		ProductID: p.ID,
		Code:      "3M",
		Name:      "3 Months",
		Price:     decimal.RequireFromString("8.50"),
	}
	if err := repo.Products.UpsertVariant(ctx, v2); err != nil {
		t.Fatalf("UpsertVariant update: %v", err)
	}

	got, err := repo.Products.GetVariant(ctx, p.ID, "3M")
	if err != nil {
		t.Fatalf("GetVariant: %v", err)
	}
	if got == nil || !got.Price.Equal(decimal.RequireFromString("8.50")) {
		t.Fatalf("expected upserted price 8.50, got %+v", got)
	}

	// Tutorial URL
	url := "https://example.com/howto"
	okTut, err := repo.Products.SetVariantTutorial(ctx, p.ID, "3M", &url)
	if err != nil {
		t.Fatalf("SetVariantTutorial: %v", err)
	}
	if !okTut {
		t.Fatal("expected tutorial update to hit a row")
	}
	got, _ = repo.Products.GetVariant(ctx, p.ID, "3M")
	if got.TutorialURL == nil || *got.TutorialURL != url {
		t.Fatalf("expected tutorial url, got %+v", got.TutorialURL)
	}

	// Delete
	okDel, err := repo.Products.DeleteVariant(ctx, p.ID, "3M")
	if err != nil {
		t.Fatalf("DeleteVariant: %v", err)
	}
	if !okDel {
		t.Fatal("expected deleted=true")
	}
	gone, _ := repo.Products.GetVariant(ctx, p.ID, "3M")
	if gone != nil {
		t.Fatalf("expected variant gone, got %+v", gone)
	}
}

func TestProductRepo_IncrementSold(t *testing.T) {
	db := setupDB(t)
	repo := repository.New(db)
	ctx := context.Background()

	p := createProduct(t, repo, 1)

	if err := repo.Products.IncrementSold(ctx, p.ID, 3); err != nil {
		t.Fatalf("IncrementSold: %v", err)
	}
	if err := repo.Products.IncrementSold(ctx, p.ID, 2); err != nil {
		t.Fatalf("IncrementSold second: %v", err)
	}

	got, _ := repo.Products.GetByID(ctx, p.ID)
	if got.Sold != 5 {
		t.Fatalf("expected sold=5, got %d", got.Sold)
	}

	total, err := repo.Products.TotalSold(ctx)
	if err != nil {
		t.Fatalf("TotalSold: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total=5, got %d", total)
	}
}

func TestStockRepo_FIFO(t *testing.T) {
	db := setupDB(t)
	repo := repository.New(db)
	ctx := context.Background()

	p := createProduct(t, repo, 1)
	vid := p.Variants[0].ID

	lines := []string{"first@mail.com,a", "second@mail.com,b", "third@mail.com,c"}
	if err := repo.Stock.Append(ctx, p.ID, vid, lines); err != nil {
		t.Fatalf("Append: %v", err)
	}

	count, err := repo.Stock.CountAvailable(ctx, p.ID, vid)
	if err != nil {
		t.Fatalf("CountAvailable: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 available, got %d", count)
	}

	// Oldest lines leave first.
	taken, err := repo.Stock.TakeExactly(ctx, p.ID, vid, 2)
	if err != nil {
		t.Fatalf("TakeExactly: %v", err)
	}
	if len(taken) != 2 || taken[0] != lines[0] || taken[1] != lines[1] {
		t.Fatalf("expected FIFO order %v, got %v", lines[:2], taken)
	}

	count, _ = repo.Stock.CountAvailable(ctx, p.ID, vid)
	if count != 1 {
		t.Fatalf("expected 1 left, got %d", count)
	}
}

func TestStockRepo_ShortageIsAtomic(t *testing.T) {
	db := setupDB(t)
	repo := repository.New(db)
	ctx := context.Background()

	p := createProduct(t, repo, 1)
	vid := p.Variants[0].ID

	if err := repo.Stock.Append(ctx, p.ID, vid, []string{"only@mail.com,a"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	_, err := repo.Stock.TakeExactly(ctx, p.ID, vid, 2)
	if !errors.Is(err, repository.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// The single line must remain untouched.
	count, _ := repo.Stock.CountAvailable(ctx, p.ID, vid)
	if count != 1 {
		t.Fatalf("expected pool intact with 1 line, got %d", count)
	}
}

func TestStockRepo_ConcurrentTakeNoOversell(t *testing.T) {
	db := setupDB(t)
	repo := repository.New(db)
	ctx := context.Background()

	p := createProduct(t, repo, 1)
	vid := p.Variants[0].ID

	if err := repo.Stock.Append(ctx, p.ID, vid, []string{"a,1", "b,2", "c,3"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Two buyers race for 2 of the 3 lines: exactly one wins.
	var wg sync.WaitGroup
	results := make([][]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.Stock.TakeExactly(ctx, p.ID, vid, 2)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < 2; i++ {
		switch {
		case errs[i] == nil:
			winners++
			if len(results[i]) != 2 {
				t.Fatalf("winner got %d lines, want 2", len(results[i]))
			}
		case errors.Is(errs[i], repository.ErrInsufficientStock):
		default:
			t.Fatalf("unexpected error: %v", errs[i])
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	count, _ := repo.Stock.CountAvailable(ctx, p.ID, vid)
	if count != 1 {
		t.Fatalf("expected 1 line left, got %d", count)
	}
}

func TestStockRepo_ConcurrentTakeBothServedWhenPoolSuffices(t *testing.T) {
	db := setupDB(t)
	repo := repository.New(db)
	ctx := context.Background()

	p := createProduct(t, repo, 1)
	vid := p.Variants[0].ID

	if err := repo.Stock.Append(ctx, p.ID, vid, []string{"a,1", "b,2", "c,3", "d,4"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Four lines, two buyers of 2 each: neither may be told the pool is
	// empty just because the other holds row locks on its own lines.
	var wg sync.WaitGroup
	results := make([][]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.Stock.TakeExactly(ctx, p.ID, vid, 2)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("buyer %d: %v", i, errs[i])
		}
		if len(results[i]) != 2 {
			t.Fatalf("buyer %d got %d lines, want 2", i, len(results[i]))
		}
		for _, payload := range results[i] {
			if seen[payload] {
				t.Fatalf("line %q delivered twice", payload)
			}
			seen[payload] = true
		}
	}

	count, _ := repo.Stock.CountAvailable(ctx, p.ID, vid)
	if count != 0 {
		t.Fatalf("expected empty pool, got %d", count)
	}
}

func TestStockRepo_Clear(t *testing.T) {
	db := setupDB(t)
	repo := repository.New(db)
	ctx := context.Background()

	p := createProduct(t, repo, 1)
	vid := p.Variants[0].ID

	if err := repo.Stock.Append(ctx, p.ID, vid, []string{"a,1", "b,2"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	removed, err := repo.Stock.Clear(ctx, p.ID, vid)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	count, _ := repo.Stock.CountAvailable(ctx, p.ID, vid)
	if count != 0 {
		t.Fatalf("expected empty pool, got %d", count)
	}
}

func TestUserRepo_LedgerAccumulates(t *testing.T) {
	db := setupDB(t)
	repo := repository.New(db)
	ctx := context.Background()

	u, err := repo.Users.GetOrCreate(ctx, 42)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if u.Username != "Unknown" || !u.Spent.IsZero() {
		t.Fatalf("unexpected defaults: %+v", u)
	}

	// Second call returns the same row.
	again, err := repo.Users.GetOrCreate(ctx, 42)
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if again.ChatID != 42 {
		t.Fatalf("expected same chat id, got %+v", again)
	}

	if err := repo.Users.CreditSpend(ctx, 42, decimal.RequireFromString("3.50"), "buyer"); err != nil {
		t.Fatalf("CreditSpend: %v", err)
	}
	if err := repo.Users.CreditSpend(ctx, 42, decimal.RequireFromString("7.00"), "buyer"); err != nil {
		t.Fatalf("CreditSpend second: %v", err)
	}

	got, _ := repo.Users.Get(ctx, 42)
	if !got.Spent.Equal(decimal.RequireFromString("10.50")) {
		t.Fatalf("expected spent=10.50, got %s", got.Spent)
	}
	if got.Username != "buyer" {
		t.Fatalf("expected username refreshed, got %q", got.Username)
	}

	// CreditSpend on a chat never seen creates the ledger row.
	if err := repo.Users.CreditSpend(ctx, 77, decimal.RequireFromString("1.00"), "new"); err != nil {
		t.Fatalf("CreditSpend fresh chat: %v", err)
	}

	n, _ := repo.Users.Count(ctx)
	if n != 2 {
		t.Fatalf("expected 2 users, got %d", n)
	}
	total, err := repo.Users.TotalSpent(ctx)
	if err != nil {
		t.Fatalf("TotalSpent: %v", err)
	}
	if !total.Equal(decimal.RequireFromString("11.50")) {
		t.Fatalf("expected total 11.50, got %s", total)
	}
}

func TestReceiptRepo(t *testing.T) {
	db := setupDB(t)
	repo := repository.New(db)
	ctx := context.Background()

	p := createProduct(t, repo, 1)

	rec := &models.Receipt{
		TrxID:       "DZPREM-01012024-ABCDE",
		ChatID:      42,
		ProductID:   p.ID,
		VariantID:   p.Variants[0].ID,
		ProductName: p.Name,
		VariantName: "1 Month",
		Quantity:    2,
		UnitPrice:   decimal.RequireFromString("3.50"),
		Total:       decimal.RequireFromString("7.00"),
		PaymentRef:  "abc123md5",
		Items: []models.ReceiptItem{
			{Payload: "a@mail.com,1"},
			{Payload: "b@mail.com,2"},
		},
	}
	if err := repo.Receipts.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Receipts.GetByTrxID(ctx, rec.TrxID)
	if err != nil {
		t.Fatalf("GetByTrxID: %v", err)
	}
	if got == nil || got.ChatID != 42 || len(got.Items) != 2 {
		t.Fatalf("GetByTrxID mismatch: %+v", got)
	}

	missing, err := repo.Receipts.GetByTrxID(ctx, "nope")
	if err != nil {
		t.Fatalf("GetByTrxID missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil, got %+v", missing)
	}

	list, err := repo.Receipts.ListByChat(ctx, 42, 10)
	if err != nil {
		t.Fatalf("ListByChat: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 receipt, got %d", len(list))
	}

	n, _ := repo.Receipts.Count(ctx)
	if n != 1 {
		t.Fatalf("expected count=1, got %d", n)
	}
}

func TestRepository_WithTx_Rollback(t *testing.T) {
	db := setupDB(t)
	repo := repository.New(db)
	ctx := context.Background()

	p := createProduct(t, repo, 1)
	vid := p.Variants[0].ID
	if err := repo.Stock.Append(ctx, p.ID, vid, []string{"a,1", "b,2"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	err := repo.WithTx(func(tx *repository.Repository) error {
		if _, err := tx.Stock.TakeExactly(ctx, p.ID, vid, 2); err != nil {
			return err
		}
		if err := tx.Products.IncrementSold(ctx, p.ID, 2); err != nil {
			return err
		}
		return gorm.ErrInvalidTransaction
	})
	if err == nil {
		t.Fatal("expected error from WithTx")
	}

	// Everything inside rolled back together.
	count, _ := repo.Stock.CountAvailable(ctx, p.ID, vid)
	if count != 2 {
		t.Fatalf("expected pool restored to 2, got %d", count)
	}
	got, _ := repo.Products.GetByID(ctx, p.ID)
	if got.Sold != 0 {
		t.Fatalf("expected sold rollback to 0, got %d", got.Sold)
	}
}
