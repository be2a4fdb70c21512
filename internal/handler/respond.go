package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/agrilink/storefront/internal/client"
	"github.com/agrilink/storefront/internal/domain/cart"
	"github.com/agrilink/storefront/internal/domain/coupon"
	"github.com/agrilink/storefront/internal/domain/guard"
	"github.com/agrilink/storefront/internal/domain/search"
	"github.com/agrilink/storefront/internal/domain/session"
	"github.com/agrilink/storefront/internal/domain/wishlist"
)

const maxBodyBytes = 1 << 20

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	// Redirect is set when the SPA should navigate, e.g. to /login.
	Redirect string `json:"redirect,omitempty"`
}

var errBadRequest = errors.New("malformed request body")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrap(errBadRequest, err.Error())
	}
	return nil
}

// writeError maps err to a status code and writes it as errorResponse.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Code: http.StatusInternalServerError, Message: "internal error"}

	var (
		fieldErr *session.FieldError
		minErr   *coupon.MinOrderError
		apiErr   *client.APIError
	)
	switch {
	case errors.As(err, &fieldErr):
		resp = errorResponse{Code: http.StatusBadRequest, Message: fieldErr.Message, Field: fieldErr.Field}
	case errors.Is(err, session.ErrInvalidCredentials):
		resp = errorResponse{Code: http.StatusUnauthorized, Message: err.Error()}
	case errors.Is(err, session.ErrNotAuthenticated), errors.Is(err, client.ErrUnauthorized):
		resp = errorResponse{
			Code:     http.StatusUnauthorized,
			Message:  "please sign in to continue",
			Redirect: guard.PathLogin,
		}
	case errors.Is(err, errForbidden):
		resp = errorResponse{Code: http.StatusForbidden, Message: err.Error()}
	case errors.Is(err, errBadRequest),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrMissingListing),
		errors.Is(err, wishlist.ErrMissingListing),
		errors.Is(err, search.ErrEmptyQuery):
		resp = errorResponse{Code: http.StatusBadRequest, Message: rootMessage(err)}
	case errors.Is(err, cart.ErrItemNotFound):
		resp = errorResponse{Code: http.StatusNotFound, Message: cart.ErrItemNotFound.Error()}
	case errors.As(err, &minErr):
		resp = errorResponse{Code: http.StatusUnprocessableEntity, Message: minErr.Error()}
	case errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponUsageLimitReached):
		resp = errorResponse{Code: http.StatusUnprocessableEntity, Message: rootMessage(err)}
	case errors.As(err, &apiErr):
		resp = errorResponse{Code: apiErr.Status, Message: apiErr.Message}
		if apiErr.Status >= http.StatusInternalServerError {
			resp.Code = http.StatusBadGateway
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		resp = errorResponse{Code: http.StatusGatewayTimeout, Message: "upstream request timed out"}
	}

	lg := zctx.From(r.Context())
	if resp.Code >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.Error(err))
	} else {
		lg.Debug("Request rejected", zap.Int("code", resp.Code), zap.Error(err))
	}
	writeJSON(w, resp.Code, resp)
}

// rootMessage returns the message of the innermost sentinel so clients get
// "invalid coupon code" rather than the wrapping chain.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
