package sos

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/careline/sos-beacon/internal/domain/alert"
	"github.com/careline/sos-beacon/internal/repository/records"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	CreateAlert(ctx context.Context, subjectID, reporterID string, role alert.TriggerRole) (string, error)
	UpdateStatus(ctx context.Context, alertID string, newStatus alert.Status, responderID string) error
}

// Server implements the SOS HTTP API: alert lifecycle endpoints plus the
// live SSE views backed by the record store's change feed.
type Server struct {
	// service provides the alert lifecycle operations.
	service Service
	// store serves reads, directory writes and live subscriptions.
	store records.Store
}

// NewServer wires the provided service and store into an HTTP handler.
func NewServer(service Service, store records.Store) *Server {
	return &Server{
		service: service,
		store:   store,
	}
}

// Register mounts the v1 API onto the router.
func (s *Server) Register(router gin.IRouter) {
	v1 := router.Group("/v1", identityMiddleware())

	v1.POST("/alerts", s.createAlert)
	v1.GET("/alerts/:id", s.getAlert)
	v1.POST("/alerts/:id/status", s.updateStatus)

	v1.GET("/streams/pending", s.streamPending)
	v1.GET("/streams/caregiver", s.streamCaregiver)
	v1.GET("/streams/subject/:id", s.streamSubject)

	v1.PUT("/subscribers/:id", s.upsertSubscriber)
	v1.PUT("/profiles/:id", s.upsertProfile)
}
