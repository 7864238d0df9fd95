package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/careline/sos-beacon/internal/logger"
)

// RedisFeed reads positions relayed by the mobile gateway through redis.
// The gateway keeps the permission state at a key, caches the latest fix at
// another and publishes every new fix on a per-subject channel.
type RedisFeed struct {
	// client is the redis connection pool, shared with the record store.
	client *redis.Client
	// prefix namespaces the feed keys and channels.
	prefix string
}

// ErrNoFix is returned by Current when no fix arrives before the deadline.
var ErrNoFix = errors.New("no position fix available")

// NewRedisFeed creates a provider reading the gateway's redis feed.
func NewRedisFeed(client *redis.Client, prefix string) *RedisFeed {
	if prefix == "" {
		prefix = "sos"
	}

	return &RedisFeed{
		client: client,
		prefix: prefix,
	}
}

// fixDoc is the published JSON shape of a fix.
type fixDoc struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Permission returns the stored permission state. A subject the gateway has
// never reported on counts as denied: a re-request may still resolve it.
func (f *RedisFeed) Permission(ctx context.Context, subjectID string) (PermissionState, error) {
	raw, err := f.client.Get(ctx, f.permissionKey(subjectID)).Result()
	if errors.Is(err, redis.Nil) {
		return PermissionDenied, nil
	}

	if err != nil {
		return "", fmt.Errorf("get permission: %w", err)
	}

	switch state := PermissionState(raw); state {
	case PermissionGranted, PermissionDenied, PermissionDeniedForever:
		return state, nil
	default:
		return "", fmt.Errorf("unknown permission state %q", raw)
	}
}

// RequestPermission nudges the gateway to prompt the person and re-reads the
// outcome. The prompt itself happens on the device; a grant already delivered
// since the last read is picked up here.
func (f *RedisFeed) RequestPermission(ctx context.Context, subjectID string) (PermissionState, error) {
	if err := f.client.Publish(ctx, f.key("location:permission:requests"), subjectID).Err(); err != nil {
		logger.WarnKV(ctx, "Permission request publish failed", "subject_id", subjectID, "error", err)
	}

	return f.Permission(ctx, subjectID)
}

// Current returns the freshest fix: the next one published for the subject,
// or the gateway's cached last fix when nothing arrives first. The caller
// bounds the wait with the context deadline.
func (f *RedisFeed) Current(ctx context.Context, subjectID string, _ Accuracy) (Fix, error) {
	pubsub := f.client.Subscribe(ctx, f.fixChannel(subjectID))
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		return Fix{}, fmt.Errorf("subscribe fixes: %w", err)
	}

	// A cached fix is good enough for the latency-shaving path.
	if fix, ok, err := f.lastFix(ctx, subjectID); err != nil {
		return Fix{}, err
	} else if ok {
		return fix, nil
	}

	select {
	case <-ctx.Done():
		return Fix{}, ErrNoFix
	case msg, ok := <-pubsub.Channel():
		if !ok {
			return Fix{}, ErrNoFix
		}

		return decodeFix([]byte(msg.Payload))
	}
}

// Watch streams fixes published for the subject, suppressing movements
// smaller than the configured threshold.
func (f *RedisFeed) Watch(
	ctx context.Context,
	subjectID string,
	opts StreamOptions,
) (<-chan Fix, <-chan error, error) {
	pubsub := f.client.Subscribe(ctx, f.fixChannel(subjectID))

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()

		return nil, nil, fmt.Errorf("subscribe fixes: %w", err)
	}

	fixes := make(chan Fix)
	errs := make(chan error, 1)

	go func() {
		defer close(fixes)
		defer close(errs)
		defer func() { _ = pubsub.Close() }()

		var (
			last    Fix
			haveOne bool
		)

		messages := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}

				fix, err := decodeFix([]byte(msg.Payload))
				if err != nil {
					select {
					case errs <- err:
					default:
					}

					continue
				}

				if haveOne && distanceMeters(last, fix) < opts.MinMovementMeters {
					continue
				}

				select {
				case <-ctx.Done():
					return
				case fixes <- fix:
					last = fix
					haveOne = true
				}
			}
		}
	}()

	return fixes, errs, nil
}

// lastFix reads the gateway's cached latest fix.
func (f *RedisFeed) lastFix(ctx context.Context, subjectID string) (Fix, bool, error) {
	raw, err := f.client.Get(ctx, f.lastFixKey(subjectID)).Result()
	if errors.Is(err, redis.Nil) {
		return Fix{}, false, nil
	}

	if err != nil {
		return Fix{}, false, fmt.Errorf("get last fix: %w", err)
	}

	fix, err := decodeFix([]byte(raw))
	if err != nil {
		return Fix{}, false, err
	}

	return fix, true, nil
}

// decodeFix parses a published fix document.
func decodeFix(data []byte) (Fix, error) {
	var doc fixDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return Fix{}, fmt.Errorf("decode fix: %w", err)
	}

	return Fix{
		Latitude:   doc.Latitude,
		Longitude:  doc.Longitude,
		RecordedAt: doc.RecordedAt,
	}, nil
}

// key prepends the feed prefix.
func (f *RedisFeed) key(suffix string) string {
	return f.prefix + ":" + suffix
}

// permissionKey locates a subject's permission state.
func (f *RedisFeed) permissionKey(subjectID string) string {
	return f.key("location:permission:" + subjectID)
}

// lastFixKey locates a subject's cached latest fix.
func (f *RedisFeed) lastFixKey(subjectID string) string {
	return f.key("location:last:" + subjectID)
}

// fixChannel locates a subject's fix pub/sub channel.
func (f *RedisFeed) fixChannel(subjectID string) string {
	return f.key("location:fixes:" + subjectID)
}
