package sales_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/service/sales"
	"github.com/vladislavdragonenkov/sales/internal/storage/memory"
	"github.com/vladislavdragonenkov/sales/internal/validation"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *capturingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]string, 0, len(p.events))
	for _, e := range p.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// pagingRecorder фиксирует обращения к Page, чтобы проверить, что при
// некорректной пагинации запрос к хранилищу не выполняется.
type pagingRecorder struct {
	domain.SaleRepository
	pageCalls int
}

func (r *pagingRecorder) Page(page, pageSize int, filter domain.SaleFilter) (domain.SalePage, error) {
	r.pageCalls++
	return r.SaleRepository.Page(page, pageSize, filter)
}

type fixture struct {
	service   *sales.Service
	saleRepo  *pagingRecorder
	stockRepo domain.StockRepository
	publisher *capturingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	saleRepo := &pagingRecorder{SaleRepository: memory.NewSaleRepository()}
	stockRepo := memory.NewStockRepository()
	publisher := &capturingPublisher{}
	service := sales.NewService(saleRepo, stockRepo, validation.NewSaleValidator(), publisher, nil, nil)
	return &fixture{service: service, saleRepo: saleRepo, stockRepo: stockRepo, publisher: publisher}
}

func (f *fixture) seedStock(t *testing.T, branchID, productID int64, price string, qty int32) {
	t.Helper()
	_, err := f.stockRepo.Add(domain.BranchProduct{
		BranchID:      branchID,
		ProductID:     productID,
		ProductName:   "Pilsner 600ml",
		Price:         decimal.RequireFromString(price),
		StockQuantity: qty,
		IsActive:      true,
	})
	require.NoError(t, err)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestCreate_PricesItemsAndDecrementsStock(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, 1, 1, "100.00", 10)

	sale, err := f.service.Create(context.Background(), sales.CreateInput{
		CustomerID: 5,
		BranchID:   1,
		Items: []sales.CreateItemInput{
			{ProductID: 1, Quantity: 2, Discount: decPtr("25")},
		},
	})
	require.NoError(t, err)

	require.Len(t, sale.Items, 1)
	item := sale.Items[0]
	assert.Equal(t, int32(1), item.Sequence)
	assert.Equal(t, "Pilsner 600ml", item.ProductName)
	assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("100.00")), "unit price snapshot")
	assert.True(t, item.Price.Equal(decimal.RequireFromString("150.00")), "price = %s", item.Price)
	assert.True(t, sale.TotalAmount.Equal(decimal.RequireFromString("150.00")), "total = %s", sale.TotalAmount)
	assert.NotZero(t, sale.ID)
	assert.Equal(t, domain.SaleStatusCreated, sale.Status)

	record, err := f.stockRepo.FindActive(1, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(8), record.StockQuantity)

	assert.Equal(t, []string{domain.EventKindSaleCreated}, f.publisher.kinds())
}

func TestCreate_TotalEqualsSumOfItemPrices(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, 1, 1, "50.00", 10)
	f.seedStock(t, 1, 2, "30.00", 10)

	sale, err := f.service.Create(context.Background(), sales.CreateInput{
		CustomerID: 5,
		BranchID:   1,
		Items: []sales.CreateItemInput{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 1},
		},
	})
	require.NoError(t, err)

	require.Len(t, sale.Items, 2)
	assert.Equal(t, int32(1), sale.Items[0].Sequence)
	assert.Equal(t, int32(2), sale.Items[1].Sequence)

	sum := sale.Items[0].Price.Add(sale.Items[1].Price)
	assert.True(t, sale.TotalAmount.Equal(sum), "total %s != sum %s", sale.TotalAmount, sum)
}

func TestCreate_NilDiscountMeansFullPrice(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, 1, 1, "33.30", 10)

	sale, err := f.service.Create(context.Background(), sales.CreateInput{
		CustomerID: 5,
		BranchID:   1,
		Items:      []sales.CreateItemInput{{ProductID: 1, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.True(t, sale.Items[0].Price.Equal(decimal.RequireFromString("99.90")))
}

func TestCreate_OutOfStockAbortsWithoutPersisting(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, 1, 1, "100.00", 1)

	_, err := f.service.Create(context.Background(), sales.CreateInput{
		CustomerID: 5,
		BranchID:   1,
		Items:      []sales.CreateItemInput{{ProductID: 1, Quantity: 2}},
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindOutOfStock), "kind = %s", domain.KindOf(err))

	page, perr := f.saleRepo.Page(1, 10, domain.SaleFilter{})
	require.NoError(t, perr)
	assert.Zero(t, page.TotalRecords, "no partial sale may persist")

	record, serr := f.stockRepo.FindActive(1, 1)
	require.NoError(t, serr)
	assert.Equal(t, int32(1), record.StockQuantity, "stock must stay untouched")
	assert.Empty(t, f.publisher.kinds())
}

func TestCreate_FirstFailingItemAbortsWholeOrder(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, 1, 1, "10.00", 10)
	// Товар 2 в филиале отсутствует.

	_, err := f.service.Create(context.Background(), sales.CreateInput{
		CustomerID: 5,
		BranchID:   1,
		Items: []sales.CreateItemInput{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 1},
		},
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound), "kind = %s", domain.KindOf(err))

	record, serr := f.stockRepo.FindActive(1, 1)
	require.NoError(t, serr)
	assert.Equal(t, int32(10), record.StockQuantity)
}

func TestCreate_ValidationErrorCarriesFields(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, 1, 1, "100.00", 10)

	_, err := f.service.Create(context.Background(), sales.CreateInput{
		CustomerID: 0,
		BranchID:   1,
		Items:      []sales.CreateItemInput{{ProductID: 1, Quantity: 2}},
	})
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindValidation), "kind = %s", domain.KindOf(err))

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	require.NotEmpty(t, derr.Fields)
	assert.Equal(t, "CustomerID", derr.Fields[0].Field)

	record, serr := f.stockRepo.FindActive(1, 1)
	require.NoError(t, serr)
	assert.Equal(t, int32(10), record.StockQuantity, "validation failure must not touch stock")
}

func TestCreate_PublishFailureDoesNotFailSale(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, 1, 1, "100.00", 10)
	f.publisher.err = errors.New("broker is down")

	sale, err := f.service.Create(context.Background(), sales.CreateInput{
		CustomerID: 5,
		BranchID:   1,
		Items:      []sales.CreateItemInput{{ProductID: 1, Quantity: 2}},
	})
	require.NoError(t, err, "publish failure must be swallowed and logged")
	assert.NotZero(t, sale.ID)

	got, gerr := f.service.GetByID(sale.ID)
	require.NoError(t, gerr)
	assert.Equal(t, sale.ID, got.ID, "committed sale must survive publish failure")
}

func createTwoItemSale(t *testing.T, f *fixture) domain.Sale {
	t.Helper()
	f.seedStock(t, 1, 1, "50.00", 10)
	f.seedStock(t, 1, 2, "30.00", 10)

	sale, err := f.service.Create(context.Background(), sales.CreateInput{
		CustomerID: 5,
		BranchID:   1,
		Items: []sales.CreateItemInput{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.True(t, sale.TotalAmount.Equal(decimal.RequireFromString("80.00")))
	return sale
}

func TestCancelItem_RecalculatesTotal(t *testing.T) {
	f := newFixture(t)
	sale := createTwoItemSale(t, f)

	updated, err := f.service.CancelItem(context.Background(), sale.ID, 1)
	require.NoError(t, err)

	assert.True(t, updated.TotalAmount.Equal(decimal.RequireFromString("30.00")),
		"total = %s", updated.TotalAmount)
	item := updated.ItemBySequence(1)
	require.NotNil(t, item)
	assert.True(t, item.IsCancelled)
	require.NotNil(t, item.CancelledAt)

	assert.Contains(t, f.publisher.kinds(), domain.EventKindSaleItemCancelled)

	// Отмена позиции — финансовое списание: остаток не восстанавливается.
	record, serr := f.stockRepo.FindActive(1, 1)
	require.NoError(t, serr)
	assert.Equal(t, int32(9), record.StockQuantity)
}

func TestCancelItem_TwiceFails(t *testing.T) {
	f := newFixture(t)
	sale := createTwoItemSale(t, f)

	_, err := f.service.CancelItem(context.Background(), sale.ID, 1)
	require.NoError(t, err)

	_, err = f.service.CancelItem(context.Background(), sale.ID, 1)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindItemAlreadyCanceled), "kind = %s", domain.KindOf(err))

	got, gerr := f.service.GetByID(sale.ID)
	require.NoError(t, gerr)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("30.00")), "state must stay unchanged")
}

func TestCancelItem_UnknownSequence(t *testing.T) {
	f := newFixture(t)
	sale := createTwoItemSale(t, f)

	_, err := f.service.CancelItem(context.Background(), sale.ID, 99)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound), "kind = %s", domain.KindOf(err))
}

func TestCancelItem_UnknownSale(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CancelItem(context.Background(), 123, 1)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound), "kind = %s", domain.KindOf(err))
}

func TestCancel_MarksSaleCanceled(t *testing.T) {
	f := newFixture(t)
	sale := createTwoItemSale(t, f)

	updated, err := f.service.Cancel(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusCanceled, updated.Status)
	require.NotNil(t, updated.CancelledAt)
	assert.Contains(t, f.publisher.kinds(), domain.EventKindSaleCancelled)

	// Позиции при отмене продажи целиком не помечаются отменёнными.
	got, gerr := f.service.GetByID(sale.ID)
	require.NoError(t, gerr)
	for _, item := range got.Items {
		assert.False(t, item.IsCancelled)
	}
}

func TestCancel_TwiceFails(t *testing.T) {
	f := newFixture(t)
	sale := createTwoItemSale(t, f)

	_, err := f.service.Cancel(context.Background(), sale.ID)
	require.NoError(t, err)

	_, err = f.service.Cancel(context.Background(), sale.ID)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindSaleAlreadyCanceled), "kind = %s", domain.KindOf(err))
}

func TestCancelItem_OnCanceledSaleFails(t *testing.T) {
	f := newFixture(t)
	sale := createTwoItemSale(t, f)

	_, err := f.service.Cancel(context.Background(), sale.ID)
	require.NoError(t, err)

	_, err = f.service.CancelItem(context.Background(), sale.ID, 1)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindSaleAlreadyCanceled), "kind = %s", domain.KindOf(err))
}

func TestUpdate_AppliesPatch(t *testing.T) {
	f := newFixture(t)
	sale := createTwoItemSale(t, f)

	updated, err := f.service.Update(context.Background(), sale.ID, sales.UpdateInput{
		Status:      domain.SaleStatusCreated,
		Date:        time.Now().UTC().Add(-time.Hour),
		CustomerID:  7,
		BranchID:    1,
		TotalAmount: decimal.RequireFromString("123.45"),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), updated.CustomerID)
	// При обновлении сумма принимается от вызывающего как есть.
	assert.True(t, updated.TotalAmount.Equal(decimal.RequireFromString("123.45")))
	assert.Contains(t, f.publisher.kinds(), domain.EventKindSaleUpdated)
}

func TestUpdate_RejectedOnCanceledSale(t *testing.T) {
	f := newFixture(t)
	sale := createTwoItemSale(t, f)

	_, err := f.service.Cancel(context.Background(), sale.ID)
	require.NoError(t, err)

	_, err = f.service.Update(context.Background(), sale.ID, sales.UpdateInput{
		Status:      domain.SaleStatusCreated,
		Date:        time.Now().UTC(),
		CustomerID:  5,
		BranchID:    1,
		TotalAmount: decimal.RequireFromString("1.00"),
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindSaleAlreadyCanceled), "kind = %s", domain.KindOf(err))
}

func TestUpdate_ValidationFailure(t *testing.T) {
	f := newFixture(t)
	sale := createTwoItemSale(t, f)

	_, err := f.service.Update(context.Background(), sale.ID, sales.UpdateInput{
		Status:      domain.SaleStatusCreated,
		Date:        time.Now().UTC().Add(time.Hour),
		CustomerID:  5,
		BranchID:    1,
		TotalAmount: decimal.RequireFromString("1.00"),
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation), "kind = %s", domain.KindOf(err))
}

func TestGetItem(t *testing.T) {
	f := newFixture(t)
	sale := createTwoItemSale(t, f)

	item, err := f.service.GetItem(sale.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), item.ProductID)

	_, err = f.service.GetItem(sale.ID, 99)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound), "kind = %s", domain.KindOf(err))
}

func TestList_InvalidPaginationSkipsQuery(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.List(domain.SaleFilter{}, 0, 10)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInvalidPagination), "kind = %s", domain.KindOf(err))

	_, err = f.service.List(domain.SaleFilter{}, 1, 0)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInvalidPagination), "kind = %s", domain.KindOf(err))

	assert.Zero(t, f.saleRepo.pageCalls, "no repository query may run on invalid pagination")
}

func TestList_FiltersByCustomer(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, 1, 1, "10.00", 100)

	for _, customerID := range []int64{5, 5, 6} {
		_, err := f.service.Create(context.Background(), sales.CreateInput{
			CustomerID: customerID,
			BranchID:   1,
			Items:      []sales.CreateItemInput{{ProductID: 1, Quantity: 1}},
		})
		require.NoError(t, err)
	}

	customerID := int64(5)
	page, err := f.service.List(domain.SaleFilter{CustomerID: &customerID}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalRecords)
}

func TestDelete_SoftDeletesSale(t *testing.T) {
	f := newFixture(t)
	sale := createTwoItemSale(t, f)

	require.NoError(t, f.service.Delete(sale.ID))

	_, err := f.service.GetByID(sale.ID)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound), "deleted sale must be invisible")

	// Повторное удаление натыкается на уже скрытую запись.
	err = f.service.Delete(sale.ID)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound), "kind = %s", domain.KindOf(err))
}
