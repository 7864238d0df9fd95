// Package sos exposes the alert coordination service over HTTP: REST
// endpoints for raising alerts and applying responder transitions, SSE
// streams for the live dashboard and caregiver views, and directory
// endpoints for subscribers and subject profiles.
package sos
