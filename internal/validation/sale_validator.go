// Пакет validation реализует структурную проверку продажи поверх
// go-playground/validator. Движок продаж видит только доменный
// интерфейс SaleValidator и список ошибок по полям.
package validation

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// SaleValidator проверяет инварианты продажи и её позиций.
type SaleValidator struct {
	validate *validator.Validate
}

// Теневые структуры с тегами правил: доменная модель остаётся чистой,
// а правила объявляются декларативно, как это делает validator.
type saleRules struct {
	BranchID    int64           `validate:"gt=0"`
	CustomerID  int64           `validate:"gt=0"`
	Date        time.Time       `validate:"notfuture"`
	TotalAmount decimal.Decimal `validate:"dgt"`
	Items       []itemRules     `validate:"min=1,dive"`
}

type itemRules struct {
	ProductID   int64           `validate:"gt=0"`
	ProductName string          `validate:"required,max=150"`
	Quantity    int32           `validate:"gt=0"`
	UnitPrice   decimal.Decimal `validate:"dgt"`
	Price       decimal.Decimal `validate:"dgt"`
	Discount    decimal.Decimal `validate:"dgte,dlte=100"`
}

// Сообщения по полю и правилу; непокрытые случаи получают generic-текст.
var fieldMessages = map[string]string{
	"BranchID.gt":          "BranchID must be greater than zero.",
	"CustomerID.gt":        "CustomerID must be greater than zero.",
	"Date.notfuture":       "Sale date cannot be in the future.",
	"TotalAmount.dgt":      "TotalAmount must be greater than zero.",
	"Items.min":            "Sale must contain at least one item.",
	"ProductID.gt":         "ProductID must be greater than zero.",
	"ProductName.required": "ProductName is required.",
	"ProductName.max":      "ProductName cannot exceed 150 characters.",
	"Quantity.gt":          "Quantity must be greater than zero.",
	"UnitPrice.dgt":        "UnitPrice must be greater than zero.",
	"Price.dgt":            "Price must be greater than zero.",
	"Discount.dgte":        "Discount must be between 0 and 100.",
	"Discount.dlte":        "Discount must be between 0 and 100.",
}

// NewSaleValidator регистрирует кастомные правила для decimal и дат.
func NewSaleValidator() *SaleValidator {
	v := validator.New()

	mustRegister(v, "notfuture", func(fl validator.FieldLevel) bool {
		date, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		return !date.After(time.Now())
	})
	mustRegister(v, "dgt", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && d.IsPositive()
	})
	mustRegister(v, "dgte", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && !d.IsNegative()
	})
	mustRegister(v, "dlte", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		limit, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return d.LessThanOrEqual(limit)
	})

	// decimal.Decimal — структура; без явной регистрации validator
	// попытался бы спуститься в её приватные поля.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d
		}
		return nil
	}, decimal.Decimal{})

	return &SaleValidator{validate: v}
}

// Validate возвращает ошибки по полям; пустой срез означает валидную продажу.
func (sv *SaleValidator) Validate(sale domain.Sale) []domain.FieldError {
	rules := saleRules{
		BranchID:    sale.BranchID,
		CustomerID:  sale.CustomerID,
		Date:        sale.Date,
		TotalAmount: sale.TotalAmount,
		Items:       make([]itemRules, 0, len(sale.Items)),
	}
	for _, item := range sale.Items {
		rules.Items = append(rules.Items, itemRules{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Price:       item.Price,
			Discount:    item.Discount,
		})
	}

	err := sv.validate.Struct(rules)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []domain.FieldError{{Field: "sale", Message: err.Error()}}
	}

	fields := make([]domain.FieldError, 0, len(verrs))
	for _, ve := range verrs {
		fields = append(fields, domain.FieldError{
			Field:   ve.Field(),
			Message: messageFor(ve),
		})
	}
	return fields
}

func messageFor(ve validator.FieldError) string {
	if msg, ok := fieldMessages[ve.Field()+"."+ve.Tag()]; ok {
		return msg
	}
	return fmt.Sprintf("%s failed validation rule %q.", ve.Field(), ve.Tag())
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

var _ domain.SaleValidator = (*SaleValidator)(nil)
