package errors

import (
	"errors"
	"fmt"
)

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf, true
	}
	return nil, false
}

const (
	CodeConflict            = "CONFLICT"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeOrderNotConfirmable = "ORDER_NOT_CONFIRMABLE"
	CodeOrderNotMutable     = "ORDER_NOT_MUTABLE"
	CodeInvalidTransition   = "INVALID_TRANSITION"
)

// ConflictError reports a request that is well formed but cannot be applied to
// the current state. Details carries itemized information when there is any,
// for example per-item stock availability.
type ConflictError struct {
	Code    string
	Message string
	Details any
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{Code: CodeConflict, Message: message}
}

func NewConflictErrorWithCode(code, message string, details any) *ConflictError {
	return &ConflictError{Code: code, Message: message, Details: details}
}

func IsConflictError(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	return e.Message
}

func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}

func IsUnauthorizedError(err error) (*UnauthorizedError, bool) {
	var ue *UnauthorizedError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

type DeadlockError struct {
	Message string
}

func (e *DeadlockError) Error() string {
	return e.Message
}

func NewDeadlockError(message string) *DeadlockError {
	return &DeadlockError{Message: message}
}

func IsDeadlockError(err error) (*DeadlockError, bool) {
	var de *DeadlockError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// DependencyUnavailableError means a downstream service could not be reached:
// its breaker is open, the connection failed or the call timed out.
type DependencyUnavailableError struct {
	Dependency string
	Cause      error
}

func (e *DependencyUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s service unavailable: %v", e.Dependency, e.Cause)
	}
	return fmt.Sprintf("%s service unavailable", e.Dependency)
}

func (e *DependencyUnavailableError) Unwrap() error {
	return e.Cause
}

func NewDependencyUnavailableError(dependency string, cause error) *DependencyUnavailableError {
	return &DependencyUnavailableError{Dependency: dependency, Cause: cause}
}

func IsDependencyUnavailableError(err error) (*DependencyUnavailableError, bool) {
	var de *DependencyUnavailableError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

type PaymentFailureKind string

const (
	PaymentDeclined   PaymentFailureKind = "DECLINED"
	PaymentProcessing PaymentFailureKind = "PROCESSING"
)

type PaymentError struct {
	Kind    PaymentFailureKind
	Message string
	Detail  any
}

func (e *PaymentError) Error() string {
	return e.Message
}

func NewPaymentDeclinedError(message string, detail any) *PaymentError {
	return &PaymentError{Kind: PaymentDeclined, Message: message, Detail: detail}
}

func NewPaymentProcessingError(message string, detail any) *PaymentError {
	return &PaymentError{Kind: PaymentProcessing, Message: message, Detail: detail}
}

func IsPaymentError(err error) (*PaymentError, bool) {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// StockItem identifies one product quantity touched while committing stock.
type StockItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// StockCommitError is returned when the payment went through but a stock
// decrement failed. The order stays PAID; Compensated lists the items whose
// decrement was reversed and CompensationFailed the ones that could not be.
type StockCommitError struct {
	OrderID            string
	PaymentID          string
	Failed             StockItem
	Reason             string
	Committed          []StockItem
	Compensated        []StockItem
	CompensationFailed []StockItem
}

func (e *StockCommitError) Error() string {
	return fmt.Sprintf("stock commit failed for product %s: %s", e.Failed.ProductID, e.Reason)
}

func IsStockCommitError(err error) (*StockCommitError, bool) {
	var se *StockCommitError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}
