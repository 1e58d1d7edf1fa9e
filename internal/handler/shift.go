package handler

import (
	"errors"
	"net/http"

	"shiftpos/internal/apierror"
	"shiftpos/internal/dto"
	"shiftpos/internal/service"
	"shiftpos/internal/till"

	"github.com/gin-gonic/gin"
)

type ShiftHandler struct{ svc service.ShiftService }

func NewShiftHandler(svc service.ShiftService) *ShiftHandler { return &ShiftHandler{svc: svc} }

// Session godoc
// @Summary Re-establishes the cashier session
// @Description Drops the cached current shift and re-reads it from the store. resume_required is true when a break is active.
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SessionResponse
// @Failure 503 {object} apierror.APIError
// @Router /v1/shifts/session [post]
func (h *ShiftHandler) Session(c *gin.Context) {
	resp, err := h.svc.Session(c.Request.Context(), cashierID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Current godoc
// @Summary Returns the cashier's open shift
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.ShiftResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/shifts/current [get]
func (h *ShiftHandler) Current(c *gin.Context) {
	resp, err := h.svc.Current(c.Request.Context(), cashierID(c))
	if errors.Is(err, till.ErrNoActiveShift) {
		c.JSON(http.StatusNotFound, apierror.WithCode(apierror.CodeNoActiveShift, err.Error()))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Start godoc
// @Summary Opens a shift
// @Tags shifts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.StartShiftRequest true "Opening data"
// @Success 201 {object} dto.ShiftResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/shifts [post]
func (h *ShiftHandler) Start(c *gin.Context) {
	var req dto.StartShiftRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Start(c.Request.Context(), cashierID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// AddMovement godoc
// @Summary Records a pay-in or pay-out
// @Tags shifts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Shift ID"
// @Param body body dto.CashMovementRequest true "Movement"
// @Success 200 {object} dto.ShiftResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/shifts/{id}/movements [post]
func (h *ShiftHandler) AddMovement(c *gin.Context) {
	id, ok := pathShiftID(c)
	if !ok {
		return
	}
	var req dto.CashMovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddMovement(c.Request.Context(), cashierID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StartBreak godoc
// @Summary Starts a break
// @Tags shifts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Shift ID"
// @Param body body dto.StartBreakRequest true "Break"
// @Success 200 {object} dto.ShiftResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/shifts/{id}/breaks [post]
func (h *ShiftHandler) StartBreak(c *gin.Context) {
	id, ok := pathShiftID(c)
	if !ok {
		return
	}
	var req dto.StartBreakRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.StartBreak(c.Request.Context(), cashierID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// EndBreak godoc
// @Summary Ends the active break and resumes the shift
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Shift ID"
// @Success 200 {object} dto.ShiftResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/shifts/{id}/breaks/end [post]
func (h *ShiftHandler) EndBreak(c *gin.Context) {
	id, ok := pathShiftID(c)
	if !ok {
		return
	}
	resp, err := h.svc.EndBreak(c.Request.Context(), cashierID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// End godoc
// @Summary Closes the shift and reconciles the drawer
// @Tags shifts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Shift ID"
// @Param body body dto.EndShiftRequest true "Counted amounts"
// @Success 200 {object} dto.ShiftResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/shifts/{id}/end [post]
func (h *ShiftHandler) End(c *gin.Context) {
	id, ok := pathShiftID(c)
	if !ok {
		return
	}
	var req dto.EndShiftRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.End(c.Request.Context(), cashierID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History godoc
// @Summary Lists the cashier's closed shifts, newest first
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size (1-100)"
// @Success 200 {object} dto.ShiftHistoryResponse
// @Router /v1/shifts/history [get]
func (h *ShiftHandler) History(c *gin.Context) {
	resp, err := h.svc.History(c.Request.Context(), cashierID(c), queryInt(c, "page", 1), queryInt(c, "limit", 20))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Report godoc
// @Summary Supervisor view of a shift with its reconciliation
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Shift ID"
// @Success 200 {object} dto.ShiftReportResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/shifts/{id}/report [get]
func (h *ShiftHandler) Report(c *gin.Context) {
	id, ok := pathShiftID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Report(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecordPayment godoc
// @Summary Adds a tender amount to the shift's payment summary
// @Tags shifts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Shift ID"
// @Param body body dto.PaymentRequest true "Payment"
// @Success 200 {object} dto.ShiftResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/shifts/{id}/payments [post]
func (h *ShiftHandler) RecordPayment(c *gin.Context) {
	id, ok := pathShiftID(c)
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RecordPayment(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
