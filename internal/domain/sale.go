package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus описывает жизненный цикл продажи.
type SaleStatus string

const (
	// SaleStatusCreated — продажа оформлена и действует.
	SaleStatusCreated SaleStatus = "created"
	// SaleStatusCanceled — продажа отменена целиком; терминальный статус.
	SaleStatusCanceled SaleStatus = "canceled"
)

// SaleItem представляет одну позицию продажи.
type SaleItem struct {
	ID     int64
	SaleID int64
	// Sequence — порядковый номер позиции внутри продажи, начиная с 1.
	// Присваивается при создании и никогда не переиспользуется.
	Sequence  int32
	ProductID int64
	// ProductName — снапшот названия товара на момент продажи.
	// Последующие переименования в каталоге исторические продажи не затрагивают.
	ProductName string
	Quantity    int32
	// UnitPrice — снапшот цены филиала на момент продажи.
	UnitPrice decimal.Decimal
	// Discount — скидка в процентах, 0..100.
	Discount decimal.Decimal
	// Price — итоговая сумма по позиции с учётом скидки.
	Price       decimal.Decimal
	IsCancelled bool
	CancelledAt *time.Time
}

// Sale агрегирует продажу и её позиции.
type Sale struct {
	ID         int64
	Status     SaleStatus
	Date       time.Time
	CustomerID int64
	BranchID   int64
	// TotalAmount — производная сумма по неотменённым позициям.
	TotalAmount decimal.Decimal
	CancelledAt *time.Time
	IsDeleted   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Items       []SaleItem
}

// ItemBySequence возвращает позицию по порядковому номеру или nil.
func (s *Sale) ItemBySequence(sequence int32) *SaleItem {
	for i := range s.Items {
		if s.Items[i].Sequence == sequence {
			return &s.Items[i]
		}
	}
	return nil
}

// RecalculateTotal пересчитывает TotalAmount по неотменённым позициям.
func (s *Sale) RecalculateTotal() {
	s.TotalAmount = TotalAmount(s.Items)
}
