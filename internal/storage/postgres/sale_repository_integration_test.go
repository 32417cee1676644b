package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

func integrationSale() domain.Sale {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.Sale{
		Status:      domain.SaleStatusCreated,
		Date:        now,
		CustomerID:  5,
		BranchID:    1,
		TotalAmount: decimal.RequireFromString("80.00"),
		Items: []domain.SaleItem{
			{
				Sequence:    1,
				ProductID:   10,
				ProductName: "Pilsner 600ml",
				Quantity:    1,
				UnitPrice:   decimal.RequireFromString("50.00"),
				Discount:    decimal.Zero,
				Price:       decimal.RequireFromString("50.00"),
			},
			{
				Sequence:    2,
				ProductID:   11,
				ProductName: "Lager 330ml",
				Quantity:    1,
				UnitPrice:   decimal.RequireFromString("30.00"),
				Discount:    decimal.Zero,
				Price:       decimal.RequireFromString("30.00"),
			},
		},
	}
}

func TestSaleRepositoryIntegration_AddAndGetWithItems(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewSaleRepository(store)

	saved, err := repo.Add(integrationSale())
	if err != nil {
		t.Fatalf("add sale: %v", err)
	}
	if saved.ID == 0 {
		t.Fatal("expected assigned sale ID")
	}

	got, err := repo.GetWithItems(saved.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got.Items))
	}
	if got.Items[0].Sequence != 1 || got.Items[1].Sequence != 2 {
		t.Fatalf("items must come back in sequence order, got %d %d",
			got.Items[0].Sequence, got.Items[1].Sequence)
	}
	if !got.TotalAmount.Equal(decimal.RequireFromString("80.00")) {
		t.Fatalf("total mismatch: %s", got.TotalAmount)
	}
}

func TestSaleRepositoryIntegration_UpdateItemCancellation(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewSaleRepository(store)

	saved, err := repo.Add(integrationSale())
	if err != nil {
		t.Fatalf("add sale: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	saved.Items[0].IsCancelled = true
	saved.Items[0].CancelledAt = &now
	saved.TotalAmount = decimal.RequireFromString("30.00")

	if _, err := repo.Update(saved); err != nil {
		t.Fatalf("update sale: %v", err)
	}

	got, err := repo.GetWithItems(saved.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if !got.Items[0].IsCancelled || got.Items[0].CancelledAt == nil {
		t.Fatal("first item must be cancelled with timestamp")
	}
	if got.Items[1].IsCancelled {
		t.Fatal("second item must stay untouched")
	}
	if !got.TotalAmount.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("total mismatch: %s", got.TotalAmount)
	}
}

func TestSaleRepositoryIntegration_SoftDelete(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewSaleRepository(store)

	saved, err := repo.Add(integrationSale())
	if err != nil {
		t.Fatalf("add sale: %v", err)
	}

	if err := repo.Delete(saved); err != nil {
		t.Fatalf("delete sale: %v", err)
	}

	if _, err := repo.Get(saved.ID); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("deleted sale must be invisible, got %v", err)
	}

	if err := repo.Delete(saved); !domain.IsKind(err, domain.KindAlreadyDeleted) {
		t.Fatalf("expected already deleted, got %v", err)
	}
}

func TestSaleRepositoryIntegration_PageFiltersAndCounts(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewSaleRepository(store)

	for _, branchID := range []int64{1, 1, 2} {
		sale := integrationSale()
		sale.BranchID = branchID
		if _, err := repo.Add(sale); err != nil {
			t.Fatalf("add sale: %v", err)
		}
	}

	branchID := int64(1)
	page, err := repo.Page(1, 10, domain.SaleFilter{BranchID: &branchID})
	if err != nil {
		t.Fatalf("page sales: %v", err)
	}
	if page.TotalRecords != 2 {
		t.Fatalf("expected 2 records for branch 1, got %d", page.TotalRecords)
	}
	for _, sale := range page.Sales {
		if sale.BranchID != branchID {
			t.Fatalf("unexpected branch %d in filtered page", sale.BranchID)
		}
		if len(sale.Items) == 0 {
			t.Fatal("paged sales must carry their items")
		}
	}

	empty, err := repo.Page(2, 10, domain.SaleFilter{BranchID: &branchID})
	if err != nil {
		t.Fatalf("page sales: %v", err)
	}
	if empty.TotalRecords != 2 || len(empty.Sales) != 0 {
		t.Fatalf("expected empty page with total 2, got total %d len %d",
			empty.TotalRecords, len(empty.Sales))
	}
}
