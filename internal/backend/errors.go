package backend

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/qorikusi/storefront/internal/domain/account"
	"github.com/qorikusi/storefront/internal/domain/auth"
	"github.com/qorikusi/storefront/internal/domain/cart"
	"github.com/qorikusi/storefront/internal/domain/order"
	"github.com/qorikusi/storefront/internal/domain/payment"
	"github.com/qorikusi/storefront/internal/domain/product"
)

// ErrForbidden is returned when the caller lacks the role a call requires.
var ErrForbidden = errors.New("access denied")

// Server error codes.
const (
	CodeCartNotFound          = "CART_NOT_FOUND"
	CodeProductNotFound       = "PRODUCT_NOT_FOUND"
	CodeProductNotFoundInCart = "PRODUCT_NOT_FOUND_IN_CART"
	CodeInsufficientStock     = "INSUFFICIENT_STOCK"
	CodeUnauthorizedCart      = "UNAUTHORIZED_CART_ACCESS"
	CodeInvalidToken          = "INVALID_TOKEN"
	CodeExpiredToken          = "EXPIRED_TOKEN"
	CodeOrderNotFound         = "ORDER_NOT_FOUND"
	CodePaymentNotFound       = "PAYMENT_NOT_FOUND"
	CodePaymentDeclined       = "PAYMENT_DECLINED"
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeAccessDenied          = "ACCESS_DENIED"
	CodeBadCredentials        = "BAD_CREDENTIALS"
	CodeServiceCommunication  = "SERVICE_COMMUNICATION_ERROR"
	CodeInternal              = "INTERNAL_ERROR"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeCredentialsDisabled   = "CREDENTIALS_DISABLED"
	CodeTokenExpired          = "TOKEN_EXPIRED"
	CodeInvalidSignature      = "INVALID_TOKEN_SIGNATURE"
	CodeUserExists            = "USER_ALREADY_EXISTS"
	CodeEmailExists           = "EMAIL_ALREADY_EXISTS"
	CodeClientNotFound        = "CLIENT_NOT_FOUND"
	CodeCategoryNotFound      = "CATEGORY_NOT_FOUND"
)

var codeKinds = map[string]error{
	CodeCartNotFound:          cart.ErrNotFound,
	CodeProductNotFound:       product.ErrNotFound,
	CodeProductNotFoundInCart: cart.ErrItemNotFound,
	CodeInsufficientStock:     cart.ErrOutOfStock,
	CodeUnauthorizedCart:      auth.ErrUnauthorized,
	CodeInvalidToken:          auth.ErrUnauthorized,
	CodeExpiredToken:          auth.ErrUnauthorized,
	CodeBadCredentials:        auth.ErrUnauthorized,
	CodeOrderNotFound:         order.ErrNotFound,
	CodePaymentDeclined:       payment.ErrDeclined,
	CodeAccessDenied:          ErrForbidden,
	CodeInvalidCredentials:    auth.ErrUnauthorized,
	CodeCredentialsDisabled:   auth.ErrUnauthorized,
	CodeTokenExpired:          auth.ErrUnauthorized,
	CodeInvalidSignature:      auth.ErrUnauthorized,
	CodeUserExists:            account.ErrAlreadyExists,
	CodeEmailExists:           account.ErrAlreadyExists,
	CodeClientNotFound:        account.ErrNotFound,
	CodeCategoryNotFound:      product.ErrCategoryNotFound,
}

var codeMessages = map[string]string{
	CodeCartNotFound:          "Your cart no longer exists.",
	CodeProductNotFound:       "The product is no longer available.",
	CodeProductNotFoundInCart: "The product is not in your cart.",
	CodeInsufficientStock:     "There is not enough stock for this product.",
	CodeUnauthorizedCart:      "This cart belongs to another account.",
	CodeInvalidToken:          "Your session is invalid. Please log in again.",
	CodeExpiredToken:          "Your session has expired. Please log in again.",
	CodeBadCredentials:        "Incorrect username or password.",
	CodeOrderNotFound:         "The order was not found.",
	CodePaymentNotFound:       "The payment was not found.",
	CodePaymentDeclined:       "The payment was declined.",
	CodeInvalidRequest:        "The request is invalid.",
	CodeAccessDenied:          "You are not allowed to do this.",
	CodeServiceCommunication:  "A service is temporarily unavailable. Please try again.",
	CodeInternal:              "Something went wrong on our side. Please try again.",
	CodeInvalidCredentials:    "Incorrect username or password.",
	CodeCredentialsDisabled:   "Your account has been disabled. Please contact the store.",
	CodeTokenExpired:          "The link has expired. Please request a new one.",
	CodeInvalidSignature:      "The link is invalid. Please request a new one.",
	CodeUserExists:            "The user already exists.",
	CodeEmailExists:           "This email is already registered.",
	CodeClientNotFound:        "No account was found for this email.",
	CodeCategoryNotFound:      "The category was not found.",
}

func kindOf(code string, status int) error {
	if k, ok := codeKinds[code]; ok {
		return k
	}
	switch status {
	case http.StatusUnauthorized:
		return auth.ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	}
	return nil
}

// Message converts a backend failure into one user-displayable message: the
// text of a known server code, else the raw code, else the HTTP status.
// It returns false when err did not come from a backend call.
func Message(err error) (string, bool) {
	if errors.Is(err, ErrTimeout) {
		return "The service took too long to respond. Please try again.", true
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return "", false
	}
	if msg, ok := codeMessages[apiErr.Code]; ok {
		return msg, true
	}
	if apiErr.Code != "" {
		return fmt.Sprintf("error: %s", apiErr.Code), true
	}
	return fmt.Sprintf("server error (%d)", apiErr.Status), true
}
