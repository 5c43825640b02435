package models

import "errors"

// Resource-exhaustion errors: the resource ran out under contention,
// callers may retry later.
var (
	ErrCouponOutOfStock           = errors.New("coupon out of stock")
	ErrInsufficientAvailableStock = errors.New("insufficient available stock")
	ErrInsufficientStock          = errors.New("insufficient stock")
	ErrInsufficientBalance        = errors.New("insufficient balance")
	ErrCartCapExceeded            = errors.New("cart quantity cap exceeded")
)

// Precondition-violation errors: the request itself must change.
var (
	ErrCartEmpty             = errors.New("cart is empty")
	ErrProductOptionInactive = errors.New("product option is inactive")
	ErrDuplicateReservation  = errors.New("user already has an active reservation")
	ErrCouponAlreadyIssued   = errors.New("coupon already issued to user")
	ErrCouponAlreadyUsed     = errors.New("coupon already used")
	ErrInvalidOrderAmount    = errors.New("order amount below coupon minimum")
	ErrCouponNotOwned        = errors.New("coupon does not belong to user")
	ErrDuplicateOrder        = errors.New("order already exists for idempotency key")
)

// Not-found errors.
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrProductOptionNotFound = errors.New("product option not found")
	ErrCouponNotFound        = errors.New("coupon not found")
	ErrUserCouponNotFound    = errors.New("user coupon not found")
	ErrReservationNotFound   = errors.New("reservation not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrStockNotFound         = errors.New("stock not found")
	ErrBalanceNotFound       = errors.New("balance not found")
	ErrCartItemNotFound      = errors.New("cart item not found")
)

// Expiry errors.
var (
	ErrCouponExpired      = errors.New("coupon expired")
	ErrReservationExpired = errors.New("reservation expired")
)

// ErrCode returns the stable machine-readable code for a domain error,
// or the empty string if err is not a domain error.
func ErrCode(err error) string {
	for e, code := range errCodes {
		if errors.Is(err, e) {
			return code
		}
	}
	return ""
}

var errCodes = map[error]string{
	ErrCouponOutOfStock:           "COUPON_OUT_OF_STOCK",
	ErrInsufficientAvailableStock: "INSUFFICIENT_AVAILABLE_STOCK",
	ErrInsufficientStock:          "INSUFFICIENT_STOCK",
	ErrInsufficientBalance:        "INSUFFICIENT_BALANCE",
	ErrCartCapExceeded:            "CART_CAP_EXCEEDED",
	ErrCartEmpty:                  "CART_EMPTY",
	ErrProductOptionInactive:      "PRODUCT_OPTION_INACTIVE",
	ErrDuplicateReservation:       "DUPLICATE_RESERVATION",
	ErrCouponAlreadyIssued:        "COUPON_ALREADY_ISSUED",
	ErrCouponAlreadyUsed:          "COUPON_ALREADY_USED",
	ErrInvalidOrderAmount:         "INVALID_ORDER_AMOUNT",
	ErrCouponNotOwned:             "COUPON_NOT_OWNED",
	ErrDuplicateOrder:             "DUPLICATE_ORDER",
	ErrUserNotFound:               "USER_NOT_FOUND",
	ErrProductOptionNotFound:      "PRODUCT_OPTION_NOT_FOUND",
	ErrCouponNotFound:             "COUPON_NOT_FOUND",
	ErrUserCouponNotFound:         "USER_COUPON_NOT_FOUND",
	ErrReservationNotFound:        "RESERVATION_NOT_FOUND",
	ErrOrderNotFound:              "ORDER_NOT_FOUND",
	ErrStockNotFound:              "STOCK_NOT_FOUND",
	ErrBalanceNotFound:            "BALANCE_NOT_FOUND",
	ErrCartItemNotFound:           "CART_ITEM_NOT_FOUND",
	ErrCouponExpired:              "COUPON_EXPIRED",
	ErrReservationExpired:         "RESERVATION_EXPIRED",
}
