package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestItemPrice(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		unitPrice string
		quantity  int32
		discount  string
		want      string
	}{
		{name: "no discount", unitPrice: "100.00", quantity: 2, discount: "0", want: "200"},
		{name: "quarter discount", unitPrice: "100.00", quantity: 2, discount: "25", want: "150"},
		{name: "full discount", unitPrice: "49.90", quantity: 3, discount: "100", want: "0"},
		{name: "rounding to cents", unitPrice: "9.99", quantity: 3, discount: "33", want: "20.08"},
		{name: "single unit", unitPrice: "0.01", quantity: 1, discount: "0", want: "0.01"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := domain.ItemPrice(dec(tc.unitPrice), tc.quantity, dec(tc.discount))
			if !got.Equal(dec(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

// Цена не растёт с ростом скидки и линейна по количеству.
func TestItemPrice_Properties(t *testing.T) {
	t.Parallel()
	unit := dec("37.50")

	prev := domain.ItemPrice(unit, 4, dec("0"))
	for d := int64(5); d <= 100; d += 5 {
		cur := domain.ItemPrice(unit, 4, decimal.NewFromInt(d))
		if cur.GreaterThan(prev) {
			t.Fatalf("price increased with discount %d: %s > %s", d, cur, prev)
		}
		prev = cur
	}

	one := domain.ItemPrice(unit, 1, dec("0"))
	for qty := int32(2); qty <= 10; qty++ {
		got := domain.ItemPrice(unit, qty, dec("0"))
		want := one.Mul(decimal.NewFromInt32(qty))
		if !got.Equal(want) {
			t.Fatalf("expected linear price %s for qty %d, got %s", want, qty, got)
		}
	}
}

func TestTotalAmount_SkipsCancelledItems(t *testing.T) {
	t.Parallel()
	items := []domain.SaleItem{
		{Sequence: 1, Price: dec("50.00")},
		{Sequence: 2, Price: dec("30.00")},
		{Sequence: 3, Price: dec("20.00"), IsCancelled: true},
	}

	if got := domain.TotalAmount(items); !got.Equal(dec("80.00")) {
		t.Fatalf("expected total 80.00, got %s", got)
	}
}

func TestSaleRecalculateTotal(t *testing.T) {
	t.Parallel()
	sale := domain.Sale{
		Items: []domain.SaleItem{
			{Sequence: 1, Price: dec("50.00")},
			{Sequence: 2, Price: dec("30.00")},
		},
	}

	sale.RecalculateTotal()
	if !sale.TotalAmount.Equal(dec("80.00")) {
		t.Fatalf("expected total 80.00, got %s", sale.TotalAmount)
	}

	sale.Items[0].IsCancelled = true
	sale.RecalculateTotal()
	if !sale.TotalAmount.Equal(dec("30.00")) {
		t.Fatalf("expected total 30.00 after cancellation, got %s", sale.TotalAmount)
	}
}

func TestSaleItemBySequence(t *testing.T) {
	t.Parallel()
	sale := domain.Sale{
		Items: []domain.SaleItem{
			{Sequence: 1, ProductID: 10},
			{Sequence: 2, ProductID: 20},
		},
	}

	item := sale.ItemBySequence(2)
	if item == nil || item.ProductID != 20 {
		t.Fatalf("expected item with product 20, got %+v", item)
	}
	if sale.ItemBySequence(99) != nil {
		t.Fatal("expected nil for unknown sequence")
	}
}
