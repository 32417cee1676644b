// Пакет sales реализует движок жизненного цикла продажи: оформление с
// резервированием остатков, отмену продажи и отдельных позиций,
// обновление и пересчёт итоговой суммы.
package sales

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/metrics"
)

// Service оркестрирует операции над продажей поверх доменных портов.
type Service struct {
	sales     domain.SaleRepository
	stock     domain.StockRepository
	validator domain.SaleValidator
	publisher domain.EventPublisher
	metrics   *metrics.SalesMetrics
	logger    *log.Entry
	now       func() time.Time
}

// NewService конструирует движок продаж с зависимостями.
func NewService(
	sales domain.SaleRepository,
	stock domain.StockRepository,
	validator domain.SaleValidator,
	publisher domain.EventPublisher,
	salesMetrics *metrics.SalesMetrics,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "sales-service")
	}
	return &Service{
		sales:     sales,
		stock:     stock,
		validator: validator,
		publisher: publisher,
		metrics:   salesMetrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateItemInput — одна позиция запроса на оформление продажи.
type CreateItemInput struct {
	ProductID int64
	Quantity  int32
	// Discount — скидка в процентах; nil трактуется как 0.
	Discount *decimal.Decimal
}

// CreateInput — запрос на оформление продажи.
type CreateInput struct {
	CustomerID int64
	BranchID   int64
	Items      []CreateItemInput
}

// UpdateInput — патч свойств продажи.
type UpdateInput struct {
	Status     domain.SaleStatus
	Date       time.Time
	CustomerID int64
	BranchID   int64
	// TotalAmount при обновлении приходит от вызывающего и не пересчитывается,
	// в отличие от создания и отмены, где сумма всегда производная.
	TotalAmount decimal.Decimal
}

// Create оформляет продажу: в порядке подачи позиций присваивает sequence,
// проверяет остатки, фиксирует снапшот цены и названия, считает суммы,
// атомарно сохраняет агрегат и затем списывает остатки. Первая же
// проблемная позиция отменяет операцию целиком до какого-либо сохранения.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Sale, error) {
	started := s.now()
	sale, err := s.create(ctx, in)
	s.metrics.RecordOperation(metrics.OperationCreate, err)
	s.metrics.RecordOperationDuration(metrics.OperationCreate, s.now().Sub(started))
	return sale, err
}

func (s *Service) create(ctx context.Context, in CreateInput) (domain.Sale, error) {
	now := s.now()
	sale := domain.Sale{
		Status:     domain.SaleStatusCreated,
		Date:       now,
		CustomerID: in.CustomerID,
		BranchID:   in.BranchID,
		Items:      make([]domain.SaleItem, 0, len(in.Items)),
	}

	for idx, input := range in.Items {
		item, err := s.buildItem(in.BranchID, input, int32(idx+1))
		if err != nil {
			return domain.Sale{}, domain.WrapUnexpected("an error occurred while processing sale", err)
		}
		sale.Items = append(sale.Items, item)
	}
	sale.RecalculateTotal()

	if fields := s.validator.Validate(sale); len(fields) > 0 {
		return domain.Sale{}, domain.NewValidationError(fields)
	}

	saved, err := s.sales.Add(sale)
	if err != nil {
		return domain.Sale{}, domain.WrapUnexpected("an error occurred while processing sale", err)
	}

	// Продажа уже зафиксирована: ошибка списания остатка не откатывает её,
	// а фиксируется как расхождение, требующее вмешательства.
	for _, item := range saved.Items {
		if err := s.stock.Decrement(saved.BranchID, item.ProductID, item.Quantity); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"sale_id":    saved.ID,
				"branch_id":  saved.BranchID,
				"product_id": item.ProductID,
				"quantity":   item.Quantity,
			}).Error("stock decrement failed after sale was committed")
		}
	}

	s.publishEvent(ctx, domain.NewSaleCreatedEvent(saved))

	return saved, nil
}

// buildItem резервирует позицию: находит активную складскую запись,
// проверяет остаток и снимает снапшот названия и цены.
func (s *Service) buildItem(branchID int64, input CreateItemInput, sequence int32) (domain.SaleItem, error) {
	record, err := s.stock.FindActive(branchID, input.ProductID)
	if err != nil {
		return domain.SaleItem{}, err
	}

	if record.StockQuantity < input.Quantity {
		return domain.SaleItem{}, domain.NewErrorf(domain.KindOutOfStock,
			"product %s is out of stock", record.ProductName)
	}

	discount := decimal.Zero
	if input.Discount != nil {
		discount = *input.Discount
	}

	item := domain.SaleItem{
		Sequence:    sequence,
		ProductID:   record.ProductID,
		ProductName: record.ProductName,
		Quantity:    input.Quantity,
		UnitPrice:   record.Price,
		Discount:    discount,
	}
	item.Price = domain.ItemPrice(item.UnitPrice, item.Quantity, item.Discount)

	return item, nil
}

// CancelItem отменяет одну позицию продажи и пересчитывает итоговую сумму.
// Остаток на складе намеренно не восстанавливается: отмена позиции —
// финансовое списание, а не возврат товара.
func (s *Service) CancelItem(ctx context.Context, saleID int64, sequence int32) (domain.Sale, error) {
	sale, err := s.cancelItem(ctx, saleID, sequence)
	s.metrics.RecordOperation(metrics.OperationCancelItem, err)
	return sale, err
}

func (s *Service) cancelItem(ctx context.Context, saleID int64, sequence int32) (domain.Sale, error) {
	sale, err := s.sales.GetWithItems(saleID)
	if err != nil {
		return domain.Sale{}, domain.WrapUnexpected("an error occurred while canceling the sale item", err)
	}

	if sale.Status == domain.SaleStatusCanceled {
		return domain.Sale{}, domain.NewError(domain.KindSaleAlreadyCanceled,
			"cannot cancel an item from a sale that is already canceled")
	}

	item := sale.ItemBySequence(sequence)
	if item == nil {
		return domain.Sale{}, domain.NewErrorf(domain.KindNotFound,
			"sale item sequence %d not found", sequence)
	}
	if item.IsCancelled {
		return domain.Sale{}, domain.NewError(domain.KindItemAlreadyCanceled,
			"this item is already cancelled")
	}

	now := s.now()
	item.IsCancelled = true
	item.CancelledAt = &now
	sale.RecalculateTotal()

	updated, err := s.sales.Update(sale)
	if err != nil {
		return domain.Sale{}, domain.WrapUnexpected("an error occurred while canceling the sale item", err)
	}

	s.publishEvent(ctx, domain.NewSaleItemCancelledEvent(*item))

	return updated, nil
}

// Cancel переводит продажу в терминальный статус Canceled.
// Отдельные позиции при этом не помечаются отменёнными.
func (s *Service) Cancel(ctx context.Context, saleID int64) (domain.Sale, error) {
	sale, err := s.cancel(ctx, saleID)
	s.metrics.RecordOperation(metrics.OperationCancel, err)
	return sale, err
}

func (s *Service) cancel(ctx context.Context, saleID int64) (domain.Sale, error) {
	sale, err := s.sales.Get(saleID)
	if err != nil {
		return domain.Sale{}, domain.WrapUnexpected("an error occurred while canceling the sale", err)
	}

	if sale.Status == domain.SaleStatusCanceled {
		return domain.Sale{}, domain.NewError(domain.KindSaleAlreadyCanceled,
			"this sale is already canceled")
	}

	now := s.now()
	sale.Status = domain.SaleStatusCanceled
	sale.CancelledAt = &now

	updated, err := s.sales.Update(sale)
	if err != nil {
		return domain.Sale{}, domain.WrapUnexpected("an error occurred while canceling the sale", err)
	}

	s.publishEvent(ctx, domain.NewSaleCancelledEvent(updated))

	return updated, nil
}

// Update применяет патч к продаже. Обновление терминальной продажи запрещено.
func (s *Service) Update(ctx context.Context, saleID int64, in UpdateInput) (domain.Sale, error) {
	sale, err := s.update(ctx, saleID, in)
	s.metrics.RecordOperation(metrics.OperationUpdate, err)
	return sale, err
}

func (s *Service) update(ctx context.Context, saleID int64, in UpdateInput) (domain.Sale, error) {
	sale, err := s.sales.GetWithItems(saleID)
	if err != nil {
		return domain.Sale{}, domain.WrapUnexpected("an error occurred while updating the sale", err)
	}

	if sale.Status == domain.SaleStatusCanceled {
		return domain.Sale{}, domain.NewError(domain.KindSaleAlreadyCanceled,
			"cannot update a canceled sale")
	}

	sale.Status = in.Status
	sale.Date = in.Date
	sale.CustomerID = in.CustomerID
	sale.BranchID = in.BranchID
	sale.TotalAmount = in.TotalAmount

	if fields := s.validator.Validate(sale); len(fields) > 0 {
		return domain.Sale{}, domain.NewValidationError(fields)
	}

	updated, err := s.sales.Update(sale)
	if err != nil {
		return domain.Sale{}, domain.WrapUnexpected("an error occurred while updating the sale", err)
	}

	s.publishEvent(ctx, domain.NewSaleUpdatedEvent(updated))

	return updated, nil
}

// GetByID возвращает продажу вместе с позициями.
func (s *Service) GetByID(saleID int64) (domain.Sale, error) {
	sale, err := s.sales.GetWithItems(saleID)
	if err != nil {
		return domain.Sale{}, domain.WrapUnexpected("an error occurred while retrieving the sale", err)
	}
	return sale, nil
}

// GetItem возвращает позицию продажи по порядковому номеру.
func (s *Service) GetItem(saleID int64, sequence int32) (domain.SaleItem, error) {
	sale, err := s.sales.GetWithItems(saleID)
	if err != nil {
		return domain.SaleItem{}, domain.WrapUnexpected("an error occurred while retrieving the item", err)
	}

	item := sale.ItemBySequence(sequence)
	if item == nil {
		return domain.SaleItem{}, domain.NewErrorf(domain.KindNotFound,
			"sale item sequence %d not found in sale ID %d", sequence, saleID)
	}

	return *item, nil
}

// List возвращает страницу продаж по фильтру.
// Некорректная пагинация отклоняется до обращения к хранилищу.
func (s *Service) List(filter domain.SaleFilter, page, pageSize int) (domain.SalePage, error) {
	if page <= 0 || pageSize <= 0 {
		s.metrics.RecordOperation(metrics.OperationList, domain.NewError(domain.KindInvalidPagination, ""))
		return domain.SalePage{}, domain.NewError(domain.KindInvalidPagination,
			"page number and page size must be greater than zero")
	}

	result, err := s.sales.Page(page, pageSize, filter)
	s.metrics.RecordOperation(metrics.OperationList, err)
	if err != nil {
		return domain.SalePage{}, domain.WrapUnexpected("an error occurred while retrieving sales", err)
	}
	return result, nil
}

// Delete выполняет мягкое удаление продажи.
func (s *Service) Delete(saleID int64) error {
	err := s.delete(saleID)
	s.metrics.RecordOperation(metrics.OperationDelete, err)
	return err
}

func (s *Service) delete(saleID int64) error {
	sale, err := s.sales.Get(saleID)
	if err != nil {
		return domain.WrapUnexpected("an error occurred while deleting the sale", err)
	}
	if err := s.sales.Delete(sale); err != nil {
		return domain.WrapUnexpected("an error occurred while deleting the sale", err)
	}
	return nil
}

// publishEvent доставляет событие best-effort: отказ публикации только
// логируется и никогда не откатывает уже сохранённое состояние продажи.
func (s *Service) publishEvent(ctx context.Context, event domain.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.RecordEventDropped()
		s.logger.WithError(err).WithFields(log.Fields{
			"kind":       event.Kind,
			"subject_id": event.SubjectID,
		}).Error("failed to publish domain event")
	}
}
