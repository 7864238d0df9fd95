package sos

import (
	"time"

	"github.com/careline/sos-beacon/internal/domain/alert"
	"github.com/careline/sos-beacon/internal/domain/subscriber"
)

type createAlertRequest struct {
	// SubjectID is the person the alert is about.
	SubjectID string `json:"subject_id" binding:"required"`
	// ReporterID identifies who raised the alert. Omitted, the caller did.
	ReporterID string `json:"reporter_id"`
	// TriggeredByRole is "subject" or "caregiver". Omitted, it is derived
	// from whether the reporter is the subject.
	TriggeredByRole string `json:"triggered_by_role"`
}

type createAlertResponse struct {
	AlertID string `json:"alert_id"`
}

type updateStatusRequest struct {
	// Status is the new alert status, e.g. "ACCEPTED".
	Status string `json:"status" binding:"required"`
	// ResponderID records who responded. Omitted, the caller did.
	ResponderID string `json:"responder_id"`
}

type positionResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type alertResponse struct {
	ID                string            `json:"id"`
	SubjectID         string            `json:"subject_id"`
	ReporterID        string            `json:"reporter_id"`
	TriggeredByRole   string            `json:"triggered_by_role"`
	Status            string            `json:"status"`
	LocationStatus    string            `json:"location_status"`
	Position          *positionResponse `json:"position,omitempty"`
	MapLink           string            `json:"map_link,omitempty"`
	RespondedBy       string            `json:"responded_by,omitempty"`
	ResponseTimestamp *time.Time        `json:"response_timestamp,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

type subscriberRequest struct {
	// Role is "caregiver" or "staff".
	Role string `json:"role" binding:"required"`
	// LinkedSubjects are the subject ids this subscriber watches over.
	LinkedSubjects []string `json:"linked_subjects"`
}

type profileRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toAlertResponse(r *alert.Record) alertResponse {
	resp := alertResponse{
		ID:              r.ID,
		SubjectID:       r.SubjectID,
		ReporterID:      r.ReporterID,
		TriggeredByRole: string(r.TriggeredByRole),
		Status:          string(r.Status),
		LocationStatus:  string(r.LocationStatus),
		MapLink:         r.MapLink,
		RespondedBy:     r.RespondedBy,
		CreatedAt:       r.CreatedAt,
	}

	if r.Position != nil {
		resp.Position = &positionResponse{
			Latitude:  r.Position.Latitude,
			Longitude: r.Position.Longitude,
		}
	}

	if !r.ResponseTimestamp.IsZero() {
		ts := r.ResponseTimestamp
		resp.ResponseTimestamp = &ts
	}

	return resp
}

func toAlertResponses(list []*alert.Record) []alertResponse {
	out := make([]alertResponse, 0, len(list))

	for _, r := range list {
		out = append(out, toAlertResponse(r))
	}

	return out
}

func toSubscriber(id string, req subscriberRequest) *subscriber.Subscriber {
	return &subscriber.Subscriber{
		ID:             id,
		Role:           subscriber.Role(req.Role),
		LinkedSubjects: req.LinkedSubjects,
	}
}
