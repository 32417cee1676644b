package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ItemPrice вычисляет сумму по позиции: unitPrice * quantity * (1 - discount/100),
// округлённую до двух знаков (денежная точность). Чистая функция без побочных эффектов.
func ItemPrice(unitPrice decimal.Decimal, quantity int32, discount decimal.Decimal) decimal.Decimal {
	multiplier := hundred.Sub(discount).Div(hundred)
	return unitPrice.Mul(decimal.NewFromInt32(quantity)).Mul(multiplier).Round(2)
}

// TotalAmount суммирует цены неотменённых позиций.
func TotalAmount(items []SaleItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item.IsCancelled {
			continue
		}
		total = total.Add(item.Price)
	}
	return total
}
