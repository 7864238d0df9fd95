// Package config defines runtime settings for the sos-server binary and
// provides helpers to load and validate them from YAML with environment
// overrides.
//
// The Config type holds the HTTP listen address, record store backend
// selection, location acquisition knobs and watchdog schedule.
package config
