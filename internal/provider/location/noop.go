package location

import "context"

// NoopProvider is used when no position gateway is configured. It reports
// permission as permanently denied, so alerts are created and fanned out
// normally and their location status settles at "not_available".
type NoopProvider struct{}

// NewNoopProvider creates a provider without any position source.
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

// Permission always reports denied_forever.
func (*NoopProvider) Permission(context.Context, string) (PermissionState, error) {
	return PermissionDeniedForever, nil
}

// RequestPermission always reports denied_forever.
func (*NoopProvider) RequestPermission(context.Context, string) (PermissionState, error) {
	return PermissionDeniedForever, nil
}

// Current never produces a fix.
func (*NoopProvider) Current(context.Context, string, Accuracy) (Fix, error) {
	return Fix{}, ErrNoFix
}

// Watch never produces a stream.
func (*NoopProvider) Watch(context.Context, string, StreamOptions) (<-chan Fix, <-chan error, error) {
	return nil, nil, ErrNoFix
}
