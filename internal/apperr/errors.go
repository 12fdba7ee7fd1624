// Package apperr определяет типизированные ошибки домена, пересекающие
// границы модулей: каждая ошибка несёт Kind, по которому HTTP-слой выбирает
// код ответа без посредника в виде gRPC-статусов.
package apperr

import "errors"

// Kind классифицирует ошибку по таблице §7 спецификации.
type Kind string

const (
	KindValidationFailure       Kind = "ValidationFailure"
	KindNotFound                Kind = "NotFound"
	KindInsufficientInventory   Kind = "InsufficientInventory"
	KindConcurrencyConflict     Kind = "ConcurrencyConflict"
	KindDuplicateOperation      Kind = "DuplicateOperation"
	KindPaymentVerificationFail Kind = "PaymentVerificationFailed"
	KindExternalServiceError    Kind = "ExternalServiceError"
	KindSignatureFailure        Kind = "SignatureFailure"
	KindFatalInternal           Kind = "FatalInternal"
)

// Error — ошибка с присоединённым Kind и опциональной причиной.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *Error) Unwrap() error { return e.cause }

// Kind возвращает классификацию ошибки.
func (e *Error) Kind() Kind { return e.kind }

// New создаёт ошибку заданного Kind с сообщением.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Wrap оборачивает cause ошибкой заданного Kind, сохраняя цепочку errors.Is/As.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

// KindOf извлекает Kind из err, если это *Error в цепочке; иначе
// KindFatalInternal — неклассифицированная ошибка считается фатальной по
// умолчанию, чтобы вызывающий код никогда молча не трактовал её как 400.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindFatalInternal
}

// Is сообщает, имеет ли err заданный Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Доменные ошибки общего назначения, переиспользуемые во всех модулях.
var (
	ErrOrderNotFound        = New(KindNotFound, "заказ не найден")
	ErrProductNotFound      = New(KindNotFound, "товар не найден")
	ErrProductInactive      = New(KindValidationFailure, "товар недоступен к заказу")
	ErrInventoryNotFound    = New(KindNotFound, "остаток не найден")
	ErrEmptyOrderItems      = New(KindValidationFailure, "заказ должен содержать хотя бы одну позицию")
	ErrInvalidQuantity      = New(KindValidationFailure, "количество должно быть больше нуля")
	ErrInvalidTransition    = New(KindValidationFailure, "недопустимый переход статуса заказа")
	ErrConcurrentInProgress = New(KindDuplicateOperation, "операция уже выполняется")
	ErrConcurrencyConflict  = New(KindConcurrencyConflict, "конфликт версии при записи")
	ErrInsufficientStock    = New(KindInsufficientInventory, "недостаточно остатка ни на одном складе")
	ErrSignatureInvalid     = New(KindSignatureFailure, "подпись webhook не прошла проверку")
	ErrSessionNotFound      = New(KindNotFound, "сессия не найдена или истекла")
)
