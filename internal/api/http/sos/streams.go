package sos

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/careline/sos-beacon/internal/domain/alert"
	"github.com/careline/sos-beacon/internal/logger"
	"github.com/careline/sos-beacon/internal/repository/records"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 15 * time.Second

// streamPending pushes the live set of PENDING alerts: the responder
// dashboard view. The first event is the current snapshot.
func (s *Server) streamPending(c *gin.Context) {
	s.streamAlerts(c, records.AlertFilter{
		Statuses: []alert.Status{alert.StatusPending},
	})
}

// streamCaregiver pushes alerts for the subjects named in the "subjects"
// query parameter (comma-separated). An empty subject set keeps the stream
// open and delivers nothing, so a caregiver without links still gets a
// well-formed connection.
func (s *Server) streamCaregiver(c *gin.Context) {
	subjects := make([]string, 0)

	for _, id := range strings.Split(c.Query("subjects"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			subjects = append(subjects, id)
		}
	}

	s.streamAlerts(c, records.AlertFilter{SubjectIDs: subjects})
}

// streamSubject pushes the alert history of a single subject.
func (s *Server) streamSubject(c *gin.Context) {
	s.streamAlerts(c, records.AlertFilter{SubjectIDs: []string{c.Param("id")}})
}

// streamAlerts subscribes to the store's change feed and relays each matching
// snapshot as an SSE "alerts" event until the client disconnects.
func (s *Server) streamAlerts(c *gin.Context, filter records.AlertFilter) {
	ctx := c.Request.Context()

	snapshots, err := s.store.WatchAlerts(ctx, filter)
	if err != nil {
		logger.ErrorKV(ctx, "Alert subscription failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "unable to subscribe"})

		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case snapshot, ok := <-snapshots:
			if !ok {
				// Client disconnected or the store shut down.
				return false
			}

			c.SSEvent("alerts", toAlertResponses(snapshot))

			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", time.Now().UTC().Format(time.RFC3339))

			return true
		}
	})
}
