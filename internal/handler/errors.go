package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/qorikusi/storefront/internal/backend"
	"github.com/qorikusi/storefront/internal/domain/account"
	"github.com/qorikusi/storefront/internal/domain/auth"
	"github.com/qorikusi/storefront/internal/domain/cart"
	"github.com/qorikusi/storefront/internal/domain/checkout"
	"github.com/qorikusi/storefront/internal/domain/order"
	"github.com/qorikusi/storefront/internal/domain/product"
	"github.com/qorikusi/storefront/internal/session"
)

var errForbidden = errors.New("admin role required")

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

// errorResponse is the body of every failed request.
type errorResponse struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	ReturnPath string            `json:"returnPath,omitempty"`
}

// userMessage turns any error into an HTTP status and one message a user
// can read. Backend failures use the server code's text, falling back to the
// HTTP status.
func userMessage(err error) (int, errorResponse) {
	var (
		validation *checkout.ValidationError
		login      *checkout.NotAuthenticatedError
		bad        *badRequestError
		apiErr     *backend.Error
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, errorResponse{
			Code:    "VALIDATION_FAILED",
			Message: "Please correct the highlighted fields.",
			Fields:  validation.Fields,
		}
	case errors.As(err, &login):
		return http.StatusUnauthorized, errorResponse{
			Code:       "NOT_AUTHENTICATED",
			Message:    "Please log in to continue.",
			ReturnPath: login.ReturnPath,
		}
	case errors.As(err, &bad):
		return http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: bad.msg}
	case errors.Is(err, session.ErrInvalidID):
		return http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "The session is invalid."}
	case errors.Is(err, checkout.ErrSubmissionInProgress):
		return http.StatusConflict, errorResponse{Code: "SUBMISSION_IN_PROGRESS", Message: "Your payment is being processed."}
	case errors.Is(err, checkout.ErrWrongStep):
		return http.StatusConflict, errorResponse{Code: "WRONG_STEP", Message: "This action is not available at the current checkout step."}
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusConflict, errorResponse{Code: "EMPTY_CART", Message: "Your cart is empty."}
	case errors.Is(err, checkout.ErrPaymentDeclined):
		return http.StatusPaymentRequired, errorResponse{
			Code:    "PAYMENT_DECLINED",
			Message: backendMessage(err, "The payment was declined. Please try again or choose another method."),
		}
	case errors.Is(err, checkout.ErrOrderCreationFailed):
		return http.StatusBadGateway, errorResponse{
			Code:    "ORDER_CREATION_FAILED",
			Message: backendMessage(err, "We could not create your order. Please try again."),
		}
	case errors.Is(err, cart.ErrOutOfStock):
		return http.StatusConflict, errorResponse{Code: "OUT_OF_STOCK", Message: backendMessage(err, "This product is out of stock.")}
	case errors.Is(err, cart.ErrItemNotFound):
		return http.StatusNotFound, errorResponse{Code: "ITEM_NOT_FOUND", Message: "The product is not in your cart."}
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, errorResponse{Code: "PRODUCT_NOT_FOUND", Message: "The product is no longer available."}
	case errors.Is(err, product.ErrCategoryNotFound):
		return http.StatusNotFound, errorResponse{Code: "CATEGORY_NOT_FOUND", Message: "The category was not found."}
	case errors.Is(err, account.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{
			Code:    "ALREADY_EXISTS",
			Message: backendMessage(err, "An account with this email already exists."),
		}
	case errors.Is(err, account.ErrNotFound):
		return http.StatusNotFound, errorResponse{Code: "CLIENT_NOT_FOUND", Message: "No account was found for this email."}
	case errors.Is(err, account.ErrResetTokenInvalid):
		return http.StatusBadRequest, errorResponse{
			Code:    "INVALID_RESET_TOKEN",
			Message: "The link is invalid or has expired. Please request a new one.",
		}
	case errors.Is(err, account.ErrWrongPassword):
		return http.StatusBadRequest, errorResponse{Code: "WRONG_CREDENTIALS", Message: "The current password or email is incorrect."}
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, errorResponse{Code: "ORDER_NOT_FOUND", Message: "The order was not found."}
	case errors.Is(err, auth.ErrNoToken):
		return http.StatusUnauthorized, errorResponse{Code: "NOT_AUTHENTICATED", Message: "Please log in to continue."}
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: backendMessage(err, "Your session has expired. Please log in again.")}
	case errors.Is(err, errForbidden), errors.Is(err, backend.ErrForbidden):
		return http.StatusForbidden, errorResponse{Code: "FORBIDDEN", Message: "You are not allowed to do this."}
	case errors.Is(err, backend.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorResponse{Code: "TIMEOUT", Message: "The service took too long to respond. Please try again."}
	case errors.As(err, &apiErr):
		status := http.StatusBadGateway
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			status = apiErr.Status
		}
		code := apiErr.Code
		if code == "" {
			code = "BACKEND_ERROR"
		}
		return status, errorResponse{Code: code, Message: backendMessage(err, "")}
	}
	return http.StatusInternalServerError, errorResponse{
		Code:    "INTERNAL_ERROR",
		Message: "Something went wrong on our side. Please try again.",
	}
}

func backendMessage(err error, fallback string) string {
	if msg, ok := backend.Message(err); ok {
		return msg
	}
	return fallback
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := userMessage(err)
	lg := zctx.From(r.Context())
	if status >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		lg.Debug("Request rejected", zap.Int("status", status), zap.String("code", body.Code), zap.Error(err))
	}
	respondJSON(w, r, status, body)
}
