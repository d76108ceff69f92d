package services

import "errors"

var (
	// ErrPromotionRepositoryMissing indicates the discount repository dependency is absent.
	ErrPromotionRepositoryMissing = errors.New("promotion service: repository is not configured")
	// ErrDiscountInvalid signals a discount rule that fails creation-time validation.
	ErrDiscountInvalid = errors.New("promotion service: invalid discount")
	// ErrDiscountNotFound indicates no discount exists for the provided id.
	ErrDiscountNotFound = errors.New("promotion service: discount not found")
	// ErrDiscountExcessive marks a discount whose reduction exceeds the configured cap.
	ErrDiscountExcessive = errors.New("promotion service: discount exceeds maximum reduction")
)
