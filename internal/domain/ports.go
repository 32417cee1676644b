package domain

import (
	"context"
	"time"
)

// SaleFilter ограничивает постраничную выборку продаж.
// nil-поле означает отсутствие фильтра по этому признаку.
type SaleFilter struct {
	ID         *int64
	BranchID   *int64
	CustomerID *int64
	Status     *SaleStatus
	StartDate  *time.Time
	EndDate    *time.Time
}

// SalePage — результат постраничной выборки.
type SalePage struct {
	TotalRecords int
	Sales        []Sale
}

// SaleRepository описывает требования к хранилищу продаж.
// Мягко удалённые записи исключаются из всех выборок явным предикатом.
type SaleRepository interface {
	// Get возвращает продажу без позиций или ошибку KindNotFound.
	Get(id int64) (Sale, error)
	// GetWithItems возвращает продажу вместе с позициями в порядке sequence.
	GetWithItems(id int64) (Sale, error)
	// Add атомарно сохраняет продажу вместе с позициями.
	Add(sale Sale) (Sale, error)
	// Update перезаписывает продажу и состояние её позиций.
	Update(sale Sale) (Sale, error)
	// Delete выполняет мягкое удаление; повторное удаление — KindAlreadyDeleted.
	Delete(sale Sale) error
	// Page возвращает страницу продаж по фильтру.
	Page(page, pageSize int, filter SaleFilter) (SalePage, error)
}

// BranchProductFilter ограничивает выборку складских записей.
type BranchProductFilter struct {
	ID        *int64
	BranchID  *int64
	ProductID *int64
	IsActive  *bool
}

// BranchProductPage — страница складских записей.
type BranchProductPage struct {
	TotalRecords int
	Records      []BranchProduct
}

// StockRepository описывает складской контракт, от которого зависит движок продаж.
type StockRepository interface {
	// FindActive возвращает активную складскую запись филиала по товару
	// или ошибку KindNotFound, если записи нет либо она неактивна.
	FindActive(branchID, productID int64) (BranchProduct, error)
	// Decrement атомарно уменьшает остаток. Проверка и списание выполняются
	// одним условным обновлением, поэтому остаток не уходит в минус даже при
	// конкурентных продажах; нехватка остатка — ошибка KindOutOfStock.
	Decrement(branchID, productID int64, quantity int32) error
	// UpdateCatalogFields массово обновляет снапшот названия и категории
	// товара во всех филиалах после изменения каталога.
	UpdateCatalogFields(productID int64, name, category string) error

	Get(id int64) (BranchProduct, error)
	Add(record BranchProduct) (BranchProduct, error)
	Update(record BranchProduct) (BranchProduct, error)
	Delete(record BranchProduct) error
	Page(page, pageSize int, filter BranchProductFilter) (BranchProductPage, error)
}

// SaleValidator проверяет структурные правила продажи.
// Пустой срез означает, что продажа валидна.
type SaleValidator interface {
	Validate(sale Sale) []FieldError
}

// EventPublisher доставляет доменные события внешним системам.
// Семантика at-least-once: повторы внутри, потеря без ошибки недопустима.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
