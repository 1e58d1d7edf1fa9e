package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"

	"shiftpos/internal/apierror"
	"shiftpos/internal/middleware"
	"shiftpos/internal/repository"
	"shiftpos/internal/till"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

// newValidator lets decimal fields take numeric tags (gte, lte) by
// validating their float value.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeBadRequest, "invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusUnprocessableEntity, apierror.WithCode(apierror.CodeValidation, err.Error()))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// shiftErrorStatus maps the shift error taxonomy to HTTP.
var shiftErrorStatus = []struct {
	err    error
	status int
	code   string
}{
	{till.ErrAlreadyOpen, http.StatusConflict, apierror.CodeAlreadyOpen},
	{till.ErrNoActiveShift, http.StatusConflict, apierror.CodeNoActiveShift},
	{till.ErrBreakAlreadyActive, http.StatusConflict, apierror.CodeBreakAlreadyActive},
	{till.ErrNoActiveBreak, http.StatusConflict, apierror.CodeNoActiveBreak},
	{till.ErrShiftOnBreak, http.StatusConflict, apierror.CodeShiftOnBreak},
	{till.ErrInvalidAmount, http.StatusUnprocessableEntity, apierror.CodeInvalidAmount},
	{till.ErrInvalidBreakType, http.StatusUnprocessableEntity, apierror.CodeInvalidBreakType},
	{till.ErrCollaboratorUnavailable, http.StatusServiceUnavailable, apierror.CodeCollaboratorUnavailable},
	{repository.ErrNotFound, http.StatusNotFound, apierror.CodeNotFound},
}

// respondError writes the error envelope. Rule violations carry the
// sentinel's message; infrastructure failures never expose their cause.
func respondError(c *gin.Context, err error) {
	for _, m := range shiftErrorStatus {
		if !errors.Is(err, m.err) {
			continue
		}
		detail := err.Error()
		if m.code == apierror.CodeCollaboratorUnavailable {
			detail = m.err.Error()
		}
		c.JSON(m.status, apierror.WithCode(m.code, detail))
		return
	}
	_ = c.Error(err)
	log.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Msg("unmapped shift error")
	c.JSON(http.StatusInternalServerError, apierror.WithCode(apierror.CodeInternal, "internal server error"))
}

func pathShiftID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeBadRequest, "invalid shift id"))
		return uuid.Nil, false
	}
	return id, true
}

func cashierID(c *gin.Context) uuid.UUID {
	id, _ := middleware.GetClaims(c).CashierID()
	return id
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}
