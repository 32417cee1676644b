package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BranchProduct — складская запись товара в конкретном филиале.
// Движок продаж читает её для проверки доступности и фиксации цены/названия,
// а после успешного сохранения продажи уменьшает StockQuantity.
type BranchProduct struct {
	ID        int64
	BranchID  int64
	ProductID int64
	// ProductName и ProductCategory — снапшот каталога; обновляются
	// массово при изменении товара (см. StockRepository.UpdateCatalogFields).
	ProductName     string
	ProductCategory string
	Price           decimal.Decimal
	// StockQuantity не может уходить в минус: уменьшение выполняется
	// условным обновлением на стороне хранилища.
	StockQuantity int32
	IsActive      bool
	IsDeleted     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
