package postgres

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

func integrationBranchProduct(branchID, productID int64, qty int32) domain.BranchProduct {
	return domain.BranchProduct{
		BranchID:        branchID,
		ProductID:       productID,
		ProductName:     "Pilsner 600ml",
		ProductCategory: "beer",
		Price:           decimal.RequireFromString("100.00"),
		StockQuantity:   qty,
		IsActive:        true,
	}
}

func TestStockRepositoryIntegration_FindActive(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewStockRepository(store)

	if _, err := repo.Add(integrationBranchProduct(1, 10, 5)); err != nil {
		t.Fatalf("add branch product: %v", err)
	}

	record, err := repo.FindActive(1, 10)
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if record.StockQuantity != 5 {
		t.Fatalf("expected stock 5, got %d", record.StockQuantity)
	}

	record.IsActive = false
	if _, err := repo.Update(record); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := repo.FindActive(1, 10); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("inactive record must be invisible, got %v", err)
	}
}

func TestStockRepositoryIntegration_DuplicateRegistration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewStockRepository(store)

	if _, err := repo.Add(integrationBranchProduct(1, 10, 5)); err != nil {
		t.Fatalf("add branch product: %v", err)
	}
	if _, err := repo.Add(integrationBranchProduct(1, 10, 5)); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error on duplicate, got %v", err)
	}
}

func TestStockRepositoryIntegration_DecrementNeverGoesNegative(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewStockRepository(store)

	if _, err := repo.Add(integrationBranchProduct(1, 10, 10)); err != nil {
		t.Fatalf("add branch product: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.Decrement(1, 10, 1)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		if !domain.IsKind(err, domain.KindOutOfStock) {
			t.Fatalf("unexpected decrement error: %v", err)
		}
	}
	if succeeded != 10 {
		t.Fatalf("expected exactly 10 successful decrements, got %d", succeeded)
	}

	record, err := repo.FindActive(1, 10)
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if record.StockQuantity != 0 {
		t.Fatalf("expected stock 0, got %d", record.StockQuantity)
	}
}

func TestStockRepositoryIntegration_UpdateCatalogFields(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewStockRepository(store)

	first, err := repo.Add(integrationBranchProduct(1, 10, 5))
	if err != nil {
		t.Fatalf("add branch product: %v", err)
	}
	second, err := repo.Add(integrationBranchProduct(2, 10, 5))
	if err != nil {
		t.Fatalf("add branch product: %v", err)
	}
	other, err := repo.Add(integrationBranchProduct(1, 11, 5))
	if err != nil {
		t.Fatalf("add branch product: %v", err)
	}

	if err := repo.UpdateCatalogFields(10, "Pilsner Premium 600ml", "craft beer"); err != nil {
		t.Fatalf("update catalog fields: %v", err)
	}

	for _, id := range []int64{first.ID, second.ID} {
		record, err := repo.Get(id)
		if err != nil {
			t.Fatalf("get record: %v", err)
		}
		if record.ProductName != "Pilsner Premium 600ml" || record.ProductCategory != "craft beer" {
			t.Fatalf("catalog fields not propagated: %+v", record)
		}
	}

	untouched, err := repo.Get(other.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if untouched.ProductName != "Pilsner 600ml" {
		t.Fatalf("other product must stay untouched, got %q", untouched.ProductName)
	}
}
