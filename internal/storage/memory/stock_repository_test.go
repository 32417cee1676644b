package memory

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

func seedStock(t *testing.T, repo domain.StockRepository, branchID, productID int64, qty int32) domain.BranchProduct {
	t.Helper()
	record, err := repo.Add(domain.BranchProduct{
		BranchID:      branchID,
		ProductID:     productID,
		ProductName:   "Pilsner 600ml",
		Price:         decimal.RequireFromString("100.00"),
		StockQuantity: qty,
		IsActive:      true,
	})
	if err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return record
}

func TestStockRepository_FindActive(t *testing.T) {
	repo := NewStockRepository()
	seedStock(t, repo, 1, 1, 10)

	record, err := repo.FindActive(1, 1)
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if record.StockQuantity != 10 {
		t.Fatalf("expected quantity 10, got %d", record.StockQuantity)
	}

	if _, err := repo.FindActive(1, 99); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not_found for unknown product, got %v", err)
	}
}

func TestStockRepository_FindActive_IgnoresInactive(t *testing.T) {
	repo := NewStockRepository()
	record := seedStock(t, repo, 1, 1, 10)

	record.IsActive = false
	if _, err := repo.Update(record); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := repo.FindActive(1, 1); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("inactive record must be invisible, got %v", err)
	}
}

func TestStockRepository_DecrementGuardsStock(t *testing.T) {
	repo := NewStockRepository()
	seedStock(t, repo, 1, 1, 10)

	if err := repo.Decrement(1, 1, 8); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if err := repo.Decrement(1, 1, 3); !domain.IsKind(err, domain.KindOutOfStock) {
		t.Fatalf("expected out_of_stock, got %v", err)
	}

	record, err := repo.FindActive(1, 1)
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if record.StockQuantity != 2 {
		t.Fatalf("failed decrement must not change stock, got %d", record.StockQuantity)
	}
}

// Конкурентные списания не должны уводить остаток в минус.
func TestStockRepository_ConcurrentDecrement(t *testing.T) {
	repo := NewStockRepository()
	seedStock(t, repo, 1, 1, 10)

	var wg sync.WaitGroup
	succeeded := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Decrement(1, 1, 1); err == nil {
				succeeded <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(succeeded)

	count := 0
	for range succeeded {
		count++
	}
	if count != 10 {
		t.Fatalf("expected exactly 10 successful decrements, got %d", count)
	}

	record, err := repo.FindActive(1, 1)
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if record.StockQuantity != 0 {
		t.Fatalf("expected zero stock, got %d", record.StockQuantity)
	}
}

func TestStockRepository_UpdateCatalogFields(t *testing.T) {
	repo := NewStockRepository()
	seedStock(t, repo, 1, 7, 5)
	seedStock(t, repo, 2, 7, 3)
	other := seedStock(t, repo, 1, 8, 2)

	if err := repo.UpdateCatalogFields(7, "IPA 473ml", "beer"); err != nil {
		t.Fatalf("update catalog fields: %v", err)
	}

	for _, branchID := range []int64{1, 2} {
		record, err := repo.FindActive(branchID, 7)
		if err != nil {
			t.Fatalf("find active branch %d: %v", branchID, err)
		}
		if record.ProductName != "IPA 473ml" || record.ProductCategory != "beer" {
			t.Fatalf("expected propagated catalog fields, got %+v", record)
		}
	}

	untouched, err := repo.Get(other.ID)
	if err != nil {
		t.Fatalf("get untouched: %v", err)
	}
	if untouched.ProductName != "Pilsner 600ml" {
		t.Fatalf("other products must not change, got %q", untouched.ProductName)
	}
}
