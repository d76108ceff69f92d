package repositories

import "fmt"

// StockErrorCode enumerates repository error causes for stock operations.
type StockErrorCode string

const (
	// StockErrorUnknown represents an unspecified failure.
	StockErrorUnknown StockErrorCode = "stock_unknown"
	// StockErrorInsufficient indicates requested quantity exceeds availability.
	StockErrorInsufficient StockErrorCode = "stock_insufficient"
	// StockErrorNotFound indicates the stock document does not exist.
	StockErrorNotFound StockErrorCode = "stock_not_found"
)

// StockError wraps stock-specific failures with machine readable codes.
type StockError struct {
	Op      string
	Code    StockErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *StockError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *StockError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewStockError constructs a typed stock error.
func NewStockError(code StockErrorCode, message string, err error) *StockError {
	if message == "" {
		message = string(code)
	}
	return &StockError{Code: code, Message: message, Err: err}
}

// CouponCapErrorCode enumerates commit-time coupon capacity failures.
type CouponCapErrorCode string

const (
	// CouponCapErrorExhausted indicates the global usage cap was consumed,
	// possibly by a concurrent commit after validation passed.
	CouponCapErrorExhausted CouponCapErrorCode = "coupon_max_uses_reached"
	// CouponCapErrorGone indicates the coupon disappeared or was deactivated
	// between validation and commit.
	CouponCapErrorGone CouponCapErrorCode = "coupon_gone"
)

// CouponCapError wraps commit-time coupon failures with machine readable codes.
type CouponCapError struct {
	Op      string
	Code    CouponCapErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CouponCapError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *CouponCapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewCouponCapError constructs a typed coupon capacity error.
func NewCouponCapError(code CouponCapErrorCode, message string, err error) *CouponCapError {
	if message == "" {
		message = string(code)
	}
	return &CouponCapError{Code: code, Message: message, Err: err}
}

// CounterErrorCode enumerates failure reasons for counter operations.
type CounterErrorCode string

const (
	// CounterErrorUnknown represents an unspecified failure.
	CounterErrorUnknown CounterErrorCode = "counter_unknown"
	// CounterErrorInvalidInput indicates the caller supplied invalid arguments.
	CounterErrorInvalidInput CounterErrorCode = "counter_invalid_input"
	// CounterErrorExhausted indicates the counter reached its configured max value.
	CounterErrorExhausted CounterErrorCode = "counter_exhausted"
)

// CounterError wraps counter-specific failures with machine readable codes.
type CounterError struct {
	Op      string
	Code    CounterErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CounterError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *CounterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewCounterError constructs a typed counter error.
func NewCounterError(code CounterErrorCode, message string, err error) *CounterError {
	if message == "" {
		message = string(code)
	}
	return &CounterError{Code: code, Message: message, Err: err}
}
