package money

import "errors"

var (
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrInvalidRate          = errors.New("invalid_rate")
	ErrInvalidTaxRate       = errors.New("invalid_tax_rate")
	ErrInvalidDiscount      = errors.New("invalid_discount")
	ErrDiscountExceedsTotal = errors.New("discount_exceeds_total")
)
