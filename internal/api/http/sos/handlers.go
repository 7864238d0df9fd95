package sos

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/careline/sos-beacon/internal/auth"
	"github.com/careline/sos-beacon/internal/domain/alert"
	"github.com/careline/sos-beacon/internal/domain/subscriber"
	"github.com/careline/sos-beacon/internal/logger"
	"github.com/careline/sos-beacon/internal/repository/records"
)

// createAlert raises a new SOS alert. The response carries only the alert id;
// notification fan-out and location acquisition continue in the background.
func (s *Server) createAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	ctx := c.Request.Context()
	identity, _ := auth.IdentityFromContext(ctx)

	reporterID := req.ReporterID
	if reporterID == "" {
		reporterID = identity.UserID
	}

	role := alert.TriggerRole(req.TriggeredByRole)
	if req.TriggeredByRole == "" {
		role = alert.RoleCaregiver
		if reporterID == req.SubjectID {
			role = alert.RoleSubject
		}
	}

	if !role.Valid() {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown trigger role"})

		return
	}

	alertID, err := s.service.CreateAlert(ctx, req.SubjectID, reporterID, role)
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) {
			c.JSON(http.StatusUnauthorized, errorResponse{Error: "caller identity required"})

			return
		}

		logger.ErrorKV(ctx, "Alert creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "unable to create alert"})

		return
	}

	c.JSON(http.StatusCreated, createAlertResponse{AlertID: alertID})
}

// getAlert returns the current record for one alert.
func (s *Server) getAlert(c *gin.Context) {
	ctx := c.Request.Context()

	record, err := s.store.GetAlert(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "alert not found"})

			return
		}

		logger.ErrorKV(ctx, "Alert read failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "unable to read alert"})

		return
	}

	c.JSON(http.StatusOK, toAlertResponse(record))
}

// updateStatus applies a responder's status transition. The caller identity
// is recorded as the responder.
func (s *Server) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	newStatus := alert.Status(req.Status)
	if !newStatus.Valid() {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown alert status"})

		return
	}

	ctx := c.Request.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "caller identity required"})

		return
	}

	responderID := req.ResponderID
	if responderID == "" {
		responderID = identity.UserID
	}

	if err := s.service.UpdateStatus(ctx, c.Param("id"), newStatus, responderID); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "alert not found"})

			return
		}

		logger.ErrorKV(ctx, "Status update failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "unable to update status"})

		return
	}

	c.Status(http.StatusNoContent)
}

// upsertSubscriber registers or replaces a notification subscriber.
func (s *Server) upsertSubscriber(c *gin.Context) {
	var req subscriberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	if !subscriber.Role(req.Role).Valid() {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown subscriber role"})

		return
	}

	ctx := c.Request.Context()

	if err := s.store.UpsertSubscriber(ctx, toSubscriber(c.Param("id"), req)); err != nil {
		logger.ErrorKV(ctx, "Subscriber write failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "unable to store subscriber"})

		return
	}

	c.Status(http.StatusNoContent)
}

// upsertProfile registers or replaces a subject's display profile.
func (s *Server) upsertProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	ctx := c.Request.Context()
	profile := &subscriber.Profile{ID: c.Param("id"), DisplayName: req.DisplayName}

	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		logger.ErrorKV(ctx, "Profile write failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "unable to store profile"})

		return
	}

	c.Status(http.StatusNoContent)
}
