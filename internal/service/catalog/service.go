// Package catalog обслуживает складские записи филиалов: регистрацию товара
// в филиале, изменение цены и остатка и распространение переименований
// каталога на все филиалы.
package catalog

import (
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// Service — сервис сопровождения складских записей.
type Service struct {
	stock  domain.StockRepository
	logger *log.Entry
}

// NewService конструирует сервис каталога.
func NewService(stock domain.StockRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog-service")
	}
	return &Service{stock: stock, logger: logger}
}

// CreateInput — запрос на регистрацию товара в филиале.
type CreateInput struct {
	BranchID        int64
	ProductID       int64
	ProductName     string
	ProductCategory string
	Price           decimal.Decimal
	StockQuantity   int32
	IsActive        bool
}

// UpdateInput — патч складской записи. Название и категория здесь не
// меняются: они приходят из каталога через UpdateCatalog.
type UpdateInput struct {
	Price         decimal.Decimal
	StockQuantity int32
	IsActive      bool
}

func validateRecord(branchID, productID int64, name string, price decimal.Decimal, quantity int32) []domain.FieldError {
	var fields []domain.FieldError
	if branchID <= 0 {
		fields = append(fields, domain.FieldError{Field: "BranchID", Message: "BranchID must be greater than zero."})
	}
	if productID <= 0 {
		fields = append(fields, domain.FieldError{Field: "ProductID", Message: "ProductID must be greater than zero."})
	}
	if name == "" {
		fields = append(fields, domain.FieldError{Field: "ProductName", Message: "ProductName must not be empty."})
	}
	if !price.IsPositive() {
		fields = append(fields, domain.FieldError{Field: "Price", Message: "Price must be greater than zero."})
	}
	if quantity < 0 {
		fields = append(fields, domain.FieldError{Field: "StockQuantity", Message: "StockQuantity must not be negative."})
	}
	return fields
}

// Create регистрирует товар в филиале. Повторная регистрация активного
// товара в том же филиале отклоняется.
func (s *Service) Create(in CreateInput) (domain.BranchProduct, error) {
	if fields := validateRecord(in.BranchID, in.ProductID, in.ProductName, in.Price, in.StockQuantity); len(fields) > 0 {
		return domain.BranchProduct{}, domain.NewValidationError(fields)
	}

	if _, err := s.stock.FindActive(in.BranchID, in.ProductID); err == nil {
		return domain.BranchProduct{}, domain.NewErrorf(domain.KindValidation,
			"product ID %d is already registered in branch ID %d", in.ProductID, in.BranchID)
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return domain.BranchProduct{}, domain.WrapUnexpected("an error occurred while processing branch product", err)
	}

	record, err := s.stock.Add(domain.BranchProduct{
		BranchID:        in.BranchID,
		ProductID:       in.ProductID,
		ProductName:     in.ProductName,
		ProductCategory: in.ProductCategory,
		Price:           in.Price,
		StockQuantity:   in.StockQuantity,
		IsActive:        in.IsActive,
	})
	if err != nil {
		return domain.BranchProduct{}, domain.WrapUnexpected("an error occurred while processing branch product", err)
	}

	s.logger.WithFields(log.Fields{
		"record_id":  record.ID,
		"branch_id":  record.BranchID,
		"product_id": record.ProductID,
	}).Info("branch product registered")

	return record, nil
}

// Update меняет цену, остаток и признак активности складской записи.
func (s *Service) Update(id int64, in UpdateInput) (domain.BranchProduct, error) {
	record, err := s.stock.Get(id)
	if err != nil {
		return domain.BranchProduct{}, err
	}

	if fields := validateRecord(record.BranchID, record.ProductID, record.ProductName, in.Price, in.StockQuantity); len(fields) > 0 {
		return domain.BranchProduct{}, domain.NewValidationError(fields)
	}

	record.Price = in.Price
	record.StockQuantity = in.StockQuantity
	record.IsActive = in.IsActive

	updated, err := s.stock.Update(record)
	if err != nil {
		return domain.BranchProduct{}, domain.WrapUnexpected("an error occurred while processing branch product", err)
	}
	return updated, nil
}

// UpdateCatalog распространяет новое название и категорию товара на
// складские записи всех филиалов.
func (s *Service) UpdateCatalog(productID int64, name, category string) error {
	if productID <= 0 || name == "" {
		return domain.NewError(domain.KindValidation, "product ID and name are required")
	}

	if err := s.stock.UpdateCatalogFields(productID, name, category); err != nil {
		return domain.WrapUnexpected("an error occurred while propagating catalog fields", err)
	}

	s.logger.WithFields(log.Fields{
		"product_id": productID,
		"name":       name,
		"category":   category,
	}).Info("catalog fields propagated to branches")

	return nil
}

// Get возвращает складскую запись по идентификатору.
func (s *Service) Get(id int64) (domain.BranchProduct, error) {
	return s.stock.Get(id)
}

// List возвращает страницу складских записей по фильтру.
func (s *Service) List(filter domain.BranchProductFilter, page, pageSize int) (domain.BranchProductPage, error) {
	if page <= 0 || pageSize <= 0 {
		return domain.BranchProductPage{}, domain.NewError(domain.KindInvalidPagination,
			"page and pageSize must be greater than zero")
	}
	return s.stock.Page(page, pageSize, filter)
}

// Delete мягко удаляет складскую запись.
func (s *Service) Delete(id int64) error {
	record, err := s.stock.Get(id)
	if err != nil {
		return err
	}
	return s.stock.Delete(record)
}
