// README: Base handler utilities (JSON decoding, validation, error mapping).
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"dropfee/internal/logger"
	"dropfee/internal/modules/cart"
	"dropfee/internal/modules/geo"
	"dropfee/internal/modules/pricing"
	"dropfee/internal/modules/settings"
	"dropfee/internal/modules/zone"
	"dropfee/internal/types"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

type pointDTO struct {
	Lat *float64 `json:"lat" validate:"required"`
	Lng *float64 `json:"lng" validate:"required"`
}

func (p pointDTO) point() types.Point {
	return types.Point{Lat: *p.Lat, Lng: *p.Lng}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// isValidID accepts the path ids used by carts and zones: letters, digits, '-' and '_'.
func isValidID(v string) bool {
	if v == "" || len(v) > 128 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

// bindJSON decodes and validates the body, writing a 400 on failure.
func bindJSON(c *gin.Context, dest any) bool {
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	if err := validate.Struct(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fieldPath(fe)] = validationMessage(fe)
			}
			c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Details: details})
			return false
		}
		writeError(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// fieldPath drops the root struct name from the namespace, e.g. "feeRequest.drop.lat" -> "drop.lat".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return "is invalid"
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps module sentinels to status codes. Anything unrecognised is a 500
// and is logged with the request id.
func writeDomainError(c *gin.Context, logg *logger.Logger, err error) {
	switch {
	case errors.Is(err, geo.ErrInvalidGeometry),
		errors.Is(err, zone.ErrInvalidZone),
		errors.Is(err, settings.ErrInvalidSettings),
		errors.Is(err, pricing.ErrInvalidRequest),
		errors.Is(err, cart.ErrInvalidCart):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrInvalidPrice):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, zone.ErrZoneNotFound), errors.Is(err, cart.ErrItemNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, cart.ErrRestaurantMismatch), errors.Is(err, cart.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		_ = c.Error(err)
		logg.Error(c.Request.Context(), "http.internal_error", err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func money(d decimal.Decimal) float64 {
	return types.MoneyFloat(types.RoundMoney(d))
}

func ratio(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func moneyPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	v := money(*d)
	return &v
}
