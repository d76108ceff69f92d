package services

import (
	"errors"
	"fmt"
)

var (
	// ErrCouponRepositoryMissing indicates the coupon repository dependency is absent.
	ErrCouponRepositoryMissing = errors.New("coupon service: repository is not configured")
	// ErrCouponInvalid signals a coupon definition that fails admin validation.
	ErrCouponInvalid = errors.New("coupon service: invalid coupon")
	// ErrCouponMissing indicates no coupon exists for the provided id.
	ErrCouponMissing = errors.New("coupon service: coupon not found")
)

// Rejection codes surfaced to clients when a code does not apply. Checks run
// in this order and stop at the first failure.
const (
	CouponRejectedNotFound        = "NOT_FOUND"
	CouponRejectedInactive        = "INACTIVE"
	CouponRejectedExpired         = "EXPIRED"
	CouponRejectedMinPurchase     = "MIN_PURCHASE_NOT_MET"
	CouponRejectedTargetMismatch  = "TARGET_MISMATCH"
	CouponRejectedMaxUsesReached  = "MAX_USES_REACHED"
	CouponRejectedPerUserLimitHit = "PER_USER_LIMIT_REACHED"
)

// CouponRejectionError reports why a code cannot be applied to a cart. It is
// an expected outcome, not a system fault; handlers map it to a 422 payload.
type CouponRejectionError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *CouponRejectionError) Error() string {
	if e == nil {
		return "coupon rejected"
	}
	return fmt.Sprintf("coupon rejected (%s): %s", e.Code, e.Message)
}

func rejectCoupon(code, format string, args ...any) error {
	return &CouponRejectionError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsCouponRejection extracts a rejection from an error chain.
func AsCouponRejection(err error) (*CouponRejectionError, bool) {
	var rejection *CouponRejectionError
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}
