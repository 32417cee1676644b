package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind классифицирует доменные ошибки. Граница (HTTP-слой) отображает
// kind в статус ответа; сам движок о транспорте ничего не знает.
type ErrorKind string

const (
	// KindUnexpected — любая внутренняя ошибка, обёрнутая с контекстом операции.
	KindUnexpected ErrorKind = "unexpected"
	// KindNotFound — продажа, позиция или складская запись не найдены.
	KindNotFound ErrorKind = "not_found"
	// KindValidation — нарушены правила валидации; содержит ошибки по полям.
	KindValidation ErrorKind = "validation"
	// KindOutOfStock — запрошенное количество превышает остаток на складе.
	KindOutOfStock ErrorKind = "out_of_stock"
	// KindSaleAlreadyCanceled — операция над уже отменённой продажей.
	KindSaleAlreadyCanceled ErrorKind = "sale_already_canceled"
	// KindItemAlreadyCanceled — повторная отмена позиции.
	KindItemAlreadyCanceled ErrorKind = "item_already_canceled"
	// KindInvalidPagination — некорректные параметры постраничной выборки.
	KindInvalidPagination ErrorKind = "invalid_pagination"
	// KindAlreadyDeleted — повторное мягкое удаление записи.
	KindAlreadyDeleted ErrorKind = "already_deleted"
	// KindBrokerConnection — не удалось установить соединение с брокером.
	KindBrokerConnection ErrorKind = "broker_connection"
	// KindMessageDelivery — публикация сообщения исчерпала все попытки.
	KindMessageDelivery ErrorKind = "message_delivery"
)

// FieldError — одна ошибка валидации на уровне поля.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error — доменная ошибка с явным kind вместо диспетчеризации по типам.
type Error struct {
	Kind    ErrorKind
	Message string
	// Fields заполняется только для KindValidation.
	Fields []FieldError
	// Err хранит первопричину для диагностики.
	Err error
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		msgs := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			msgs = append(msgs, f.Field+": "+f.Message)
		}
		return e.Message + " (" + strings.Join(msgs, "; ") + ")"
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError создаёт ошибку заданного kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewErrorf создаёт ошибку заданного kind с форматированием сообщения.
func NewErrorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError агрегирует ошибки полей в одну доменную ошибку.
func NewValidationError(fields []FieldError) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "validation failed",
		Fields:  fields,
	}
}

// WrapUnexpected оборачивает внутреннюю ошибку с сообщением операции.
// Доменные ошибки не переупаковываются и проходят наружу без изменений.
func WrapUnexpected(message string, err error) error {
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindUnexpected, Message: message, Err: err}
}

// KindOf возвращает kind ошибки; для не-доменных ошибок — KindUnexpected.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnexpected
}

// IsKind проверяет, относится ли ошибка к заданному kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
