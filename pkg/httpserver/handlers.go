package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
	"github.com/intergroup-dev/volunteer-shifts/pkg/core/services"
)

// actionDescription is the response body for GET /action/:token: everything a
// confirmation page needs to describe the pending action before the volunteer
// commits to it
type actionDescription struct {
	Action        string `json:"action"`
	VolunteerName string `json:"volunteer_name"`
	ShiftDate     string `json:"shift_date"`
	SlotLabel     string `json:"slot_label"`
	StartTime     string `json:"start_time"`
	ExpiresAt     string `json:"expires_at"`
}

// actionResult is the response body for POST /action/:token
type actionResult struct {
	Action  string `json:"action"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// openShift is one row of GET /shifts/open
type openShift struct {
	ID            string `json:"id"`
	Date          string `json:"date"`
	TimeSlotID    string `json:"time_slot_id"`
	SlotLabel     string `json:"slot_label"`
	StartTime     string `json:"start_time"`
	Role          string `json:"role"`
	BackupsVacant int    `json:"backups_vacant"`
}

// submitRequestBody is the self-service request payload. Either shift_id or
// date plus time_slot_id selects the shift.
type submitRequestBody struct {
	ShiftID    string `json:"shift_id"`
	Date       string `json:"date"`
	TimeSlotID string `json:"time_slot_id"`
	Slot       string `json:"slot"`
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Phone      string `json:"phone"`
}

func (s *Server) handleDescribeAction(c *gin.Context) {
	actionCtx, err := services.LoadActionToken(c.Request.Context(), s.store, c.Param("token"), s.now())
	if err != nil {
		s.abortTokenError(c, err)
		return
	}

	c.JSON(http.StatusOK, actionDescription{
		Action:        string(actionCtx.Token.Action),
		VolunteerName: actionCtx.Volunteer.Name,
		ShiftDate:     actionCtx.Shift.Date,
		SlotLabel:     actionCtx.TimeSlot.Label,
		StartTime:     actionCtx.TimeSlot.StartTime,
		ExpiresAt:     actionCtx.Token.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (s *Server) handleExecuteAction(c *gin.Context) {
	outcome, err := services.ExecuteTokenAction(c.Request.Context(), s.store, s.logger, c.Param("token"), s.now())
	if err != nil {
		s.abortTokenError(c, err)
		return
	}

	c.JSON(http.StatusOK, actionResult{
		Action:  string(outcome.Action),
		Title:   outcome.Title,
		Message: outcome.Message,
	})
}

func (s *Server) handleListOpenShifts(c *gin.Context) {
	ctx := c.Request.Context()
	now := s.now()

	shifts, err := s.store.ListOpenShifts(ctx, now.Format("2006-01-02"))
	if err != nil {
		s.abortInternal(c, fmt.Errorf("failed to list open shifts: %w", err))
		return
	}

	slots, err := s.store.ListTimeSlots(ctx)
	if err != nil {
		s.abortInternal(c, fmt.Errorf("failed to list time slots: %w", err))
		return
	}
	slotsByID := make(map[string]model.TimeSlot, len(slots))
	for _, slot := range slots {
		slotsByID[slot.ID] = slot
	}

	out := make([]openShift, 0, len(shifts))
	for _, shift := range shifts {
		slot, ok := slotsByID[shift.TimeSlotID]
		if !ok {
			s.logger.Warn("Open shift references unknown time slot",
				zap.String("shift_id", shift.ID),
				zap.String("time_slot_id", shift.TimeSlotID))
			continue
		}

		vacantBackups := 0
		for _, st := range []model.SlotType{model.SlotBackup1, model.SlotBackup2} {
			if shift.SlotVacant(st) {
				vacantBackups++
			}
		}

		out = append(out, openShift{
			ID:            shift.ID,
			Date:          shift.Date,
			TimeSlotID:    shift.TimeSlotID,
			SlotLabel:     slot.Label,
			StartTime:     slot.StartTime,
			Role:          string(shift.Role),
			BackupsVacant: vacantBackups,
		})
	}

	c.JSON(http.StatusOK, gin.H{"shifts": out})
}

func (s *Server) handleSubmitRequest(c *gin.Context) {
	var body submitRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"code":  "invalid_request",
			"error": err.Error(),
		})
		return
	}

	slot := model.SlotType(body.Slot)
	if body.Slot == "" {
		slot = model.SlotPrimary
	}

	result, err := services.SubmitShiftRequest(c.Request.Context(), s.store, s.notifier, s.logger, services.SubmitRequestInput{
		ShiftID:    body.ShiftID,
		Date:       body.Date,
		TimeSlotID: body.TimeSlotID,
		Slot:       slot,
		Name:       body.Name,
		Email:      body.Email,
		Phone:      body.Phone,
	}, s.now())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSlotUnavailable):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"code":  "slot_unavailable",
				"error": "That slot is no longer available.",
			})
		case errors.Is(err, services.ErrDuplicateRequest):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"code":  "duplicate_request",
				"error": "You already have a pending request for this slot.",
			})
		default:
			s.logger.Warn("Shift request rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":  "invalid_request",
				"error": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"request_id": result.Request.ID,
		"shift_id":   result.Shift.ID,
		"status":     string(result.Request.Status),
	})
}

// abortTokenError maps the four token error categories onto distinct codes
// and statuses; anything else is an internal error
func (s *Server) abortTokenError(c *gin.Context, err error) {
	var tokenErr *services.TokenError
	if !errors.As(err, &tokenErr) {
		s.abortInternal(c, err)
		return
	}

	status := http.StatusConflict
	switch tokenErr.Category {
	case services.CategoryInvalid:
		status = http.StatusNotFound
	case services.CategoryExpired, services.CategoryUsed:
		status = http.StatusGone
	}

	c.AbortWithStatusJSON(status, gin.H{
		"code":   string(tokenErr.Category),
		"title":  tokenErr.Title,
		"detail": tokenErr.Detail,
	})
}

func (s *Server) abortInternal(c *gin.Context, err error) {
	s.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"code":  "internal_error",
		"error": "Something went wrong. Please try again later.",
	})
}
