package domain

import "time"

// EventDomainSale — имя домена для событий продаж; брокер выводит из него
// имя exchange ("ex_" + domain).
const EventDomainSale = "sale"

// Виды доменных событий; routing key сообщения равен kind.
const (
	EventKindSaleCreated       = "sale.created"
	EventKindSaleUpdated       = "sale.updated"
	EventKindSaleCancelled     = "sale.cancelled"
	EventKindSaleItemCancelled = "sale.item_cancelled"
)

// Event — неизменяемый факт об изменении состояния для внешних потребителей.
type Event struct {
	Domain     string         `json:"domain"`
	Kind       string         `json:"kind"`
	SubjectID  int64          `json:"subject_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// NewSaleCreatedEvent создаёт событие оформления продажи.
func NewSaleCreatedEvent(sale Sale) Event {
	return Event{
		Domain:     EventDomainSale,
		Kind:       EventKindSaleCreated,
		SubjectID:  sale.ID,
		OccurredAt: time.Now().UTC(),
		Fields: map[string]any{
			"date":         sale.Date,
			"total_amount": sale.TotalAmount,
		},
	}
}

// NewSaleUpdatedEvent создаёт событие обновления продажи.
func NewSaleUpdatedEvent(sale Sale) Event {
	return Event{
		Domain:     EventDomainSale,
		Kind:       EventKindSaleUpdated,
		SubjectID:  sale.ID,
		OccurredAt: time.Now().UTC(),
		Fields: map[string]any{
			"updated_at": sale.UpdatedAt,
		},
	}
}

// NewSaleCancelledEvent создаёт событие отмены продажи целиком.
func NewSaleCancelledEvent(sale Sale) Event {
	fields := map[string]any{}
	if sale.CancelledAt != nil {
		fields["cancelled_at"] = *sale.CancelledAt
	}
	return Event{
		Domain:     EventDomainSale,
		Kind:       EventKindSaleCancelled,
		SubjectID:  sale.ID,
		OccurredAt: time.Now().UTC(),
		Fields:     fields,
	}
}

// NewSaleItemCancelledEvent создаёт событие отмены отдельной позиции.
func NewSaleItemCancelledEvent(item SaleItem) Event {
	fields := map[string]any{
		"sale_id":  item.SaleID,
		"sequence": item.Sequence,
	}
	if item.CancelledAt != nil {
		fields["cancelled_at"] = *item.CancelledAt
	}
	return Event{
		Domain:     EventDomainSale,
		Kind:       EventKindSaleItemCancelled,
		SubjectID:  item.ID,
		OccurredAt: time.Now().UTC(),
		Fields:     fields,
	}
}
