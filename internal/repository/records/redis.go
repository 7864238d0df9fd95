package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/careline/sos-beacon/internal/domain/alert"
	"github.com/careline/sos-beacon/internal/domain/notification"
	"github.com/careline/sos-beacon/internal/domain/subscriber"
	"github.com/careline/sos-beacon/internal/logger"
)

// RedisStore persists records in redis: one JSON document per key, id index
// sets per collection, and a pub/sub channel driving live subscriptions.
// Concurrent writers to the same document are last-write-wins.
type RedisStore struct {
	// client is the underlying redis connection pool.
	client *redis.Client
	// prefix namespaces every key and channel written by this store.
	prefix string
}

// Connect opens a redis connection pool from a URL (redis://host:port/db),
// hardens client timeouts and fails fast when the server is unreachable.
// The pool is shared between the record store and the location feed.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// NewRedisStore creates a store over an established redis connection pool.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "sos"
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// alertDoc is the stored JSON shape of an alert record.
type alertDoc struct {
	ID                string     `json:"id"`
	SubjectID         string     `json:"subject_id"`
	ReporterID        string     `json:"reporter_id"`
	TriggeredByRole   string     `json:"triggered_by_role"`
	Status            string     `json:"status"`
	LocationStatus    string     `json:"location_status"`
	Latitude          *float64   `json:"latitude,omitempty"`
	Longitude         *float64   `json:"longitude,omitempty"`
	MapLink           string     `json:"map_link,omitempty"`
	RespondedBy       string     `json:"responded_by,omitempty"`
	ResponseTimestamp *time.Time `json:"response_timestamp,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// subscriberDoc is the stored JSON shape of a subscriber.
type subscriberDoc struct {
	ID             string   `json:"id"`
	Role           string   `json:"role"`
	LinkedSubjects []string `json:"linked_subjects"`
}

// profileDoc is the stored JSON shape of a subject profile.
type profileDoc struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// notificationDoc is the stored JSON shape of a notification record.
type notificationDoc struct {
	ID           string    `json:"id"`
	SubscriberID string    `json:"subscriber_id"`
	AlertID      string    `json:"alert_id"`
	Message      string    `json:"message"`
	Priority     string    `json:"priority"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateAlert stores a new alert record and announces the change.
func (s *RedisStore) CreateAlert(ctx context.Context, r *alert.Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	if err := s.writeAlert(ctx, r); err != nil {
		return err
	}

	if err := s.client.SAdd(ctx, s.key("alerts"), r.ID).Err(); err != nil {
		return fmt.Errorf("index alert: %w", err)
	}

	s.announce(ctx, r.ID)

	return nil
}

// GetAlert returns the alert or ErrNotFound.
func (s *RedisStore) GetAlert(ctx context.Context, id string) (*alert.Record, error) {
	raw, err := s.client.Get(ctx, s.key("alert:"+id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}

	return decodeAlert([]byte(raw))
}

// UpdateAlertPosition writes a fresh fix and moves LocationStatus to "available".
func (s *RedisStore) UpdateAlertPosition(ctx context.Context, id string, pos alert.Position, mapLink string) error {
	r, err := s.GetAlert(ctx, id)
	if err != nil {
		return err
	}

	r.Position = pos.Clone()
	r.MapLink = mapLink
	r.LocationStatus = alert.LocationAvailable

	if err := s.writeAlert(ctx, r); err != nil {
		return err
	}

	s.announce(ctx, id)

	return nil
}

// MarkAlertLocationUnavailable moves LocationStatus from "pending" to
// "not_available". Any other current value is left as is.
func (s *RedisStore) MarkAlertLocationUnavailable(ctx context.Context, id string) error {
	r, err := s.GetAlert(ctx, id)
	if err != nil {
		return err
	}

	if r.LocationStatus != alert.LocationPending {
		return nil
	}

	r.LocationStatus = alert.LocationNotAvailable

	if err := s.writeAlert(ctx, r); err != nil {
		return err
	}

	s.announce(ctx, id)

	return nil
}

// UpdateAlertStatus unconditionally applies the status and responder fields.
func (s *RedisStore) UpdateAlertStatus(
	ctx context.Context,
	id string,
	st alert.Status,
	responderID string,
	respondedAt time.Time,
) error {
	r, err := s.GetAlert(ctx, id)
	if err != nil {
		return err
	}

	r.Status = st
	r.RespondedBy = responderID
	r.ResponseTimestamp = respondedAt

	if err := s.writeAlert(ctx, r); err != nil {
		return err
	}

	s.announce(ctx, id)

	return nil
}

// WatchAlerts subscribes to the alert event channel and delivers a fresh
// filtered snapshot after every announced change, starting with the current one.
func (s *RedisStore) WatchAlerts(ctx context.Context, f AlertFilter) (<-chan []*alert.Record, error) {
	pubsub := s.client.Subscribe(ctx, s.key("alerts:events"))

	// Confirm the subscription before the initial snapshot so no change
	// between snapshot and subscribe is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()

		return nil, fmt.Errorf("subscribe alerts: %w", err)
	}

	out := make(chan []*alert.Record, watcherBufferSize)

	snapshot, err := s.snapshot(ctx, f)
	if err != nil {
		_ = pubsub.Close()

		return nil, err
	}

	out <- snapshot

	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		updates := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-updates:
				if !ok {
					return
				}

				snapshot, err := s.snapshot(ctx, f)
				if err != nil {
					logger.WarnKV(ctx, "Alert snapshot reload failed", "error", err)

					continue
				}

				select {
				case out <- snapshot:
				default:
					// Slow consumer, skip this snapshot.
				}
			}
		}
	}()

	return out, nil
}

// CreateNotifications writes the batch in one MULTI/EXEC transaction.
func (s *RedisStore) CreateNotifications(ctx context.Context, batch []*notification.Record) error {
	if len(batch) == 0 {
		return nil
	}

	now := time.Now()
	pipe := s.client.TxPipeline()

	for _, n := range batch {
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}

		data, err := json.Marshal(notificationDoc{
			ID:           n.ID,
			SubscriberID: n.SubscriberID,
			AlertID:      n.AlertID,
			Message:      n.Message,
			Priority:     n.Priority,
			Type:         n.Type,
			CreatedAt:    n.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("encode notification: %w", err)
		}

		pipe.Set(ctx, s.key("notification:"+n.ID), data, 0)
		pipe.SAdd(ctx, s.key("notifications"), n.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("commit notification batch: %w", err)
	}

	return nil
}

// ListAlerts returns the current filtered snapshot once.
func (s *RedisStore) ListAlerts(ctx context.Context, f AlertFilter) ([]*alert.Record, error) {
	return s.snapshot(ctx, f)
}

// CaregiversLinkedTo returns caregivers whose linked-subjects set contains the subject.
func (s *RedisStore) CaregiversLinkedTo(ctx context.Context, subjectID string) ([]*subscriber.Subscriber, error) {
	ids, err := s.client.SMembers(ctx, s.key("subscribers")).Result()
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}

	var result []*subscriber.Subscriber

	for _, id := range ids {
		raw, err := s.client.Get(ctx, s.key("subscriber:"+id)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("get subscriber: %w", err)
		}

		var doc subscriberDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode subscriber: %w", err)
		}

		sub := &subscriber.Subscriber{
			ID:             doc.ID,
			Role:           subscriber.Role(doc.Role),
			LinkedSubjects: doc.LinkedSubjects,
		}

		if sub.Role == subscriber.RoleCaregiver && sub.IsLinkedTo(subjectID) {
			result = append(result, sub)
		}
	}

	return result, nil
}

// SubjectProfile returns the subject's profile or ErrNotFound.
func (s *RedisStore) SubjectProfile(ctx context.Context, subjectID string) (*subscriber.Profile, error) {
	raw, err := s.client.Get(ctx, s.key("profile:"+subjectID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	var doc profileDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	return &subscriber.Profile{
		ID:          doc.ID,
		DisplayName: doc.DisplayName,
	}, nil
}

// UpsertSubscriber stores or replaces a subscriber.
func (s *RedisStore) UpsertSubscriber(ctx context.Context, sub *subscriber.Subscriber) error {
	data, err := json.Marshal(subscriberDoc{
		ID:             sub.ID,
		Role:           string(sub.Role),
		LinkedSubjects: sub.LinkedSubjects,
	})
	if err != nil {
		return fmt.Errorf("encode subscriber: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key("subscriber:"+sub.ID), data, 0)
	pipe.SAdd(ctx, s.key("subscribers"), sub.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store subscriber: %w", err)
	}

	return nil
}

// UpsertProfile stores or replaces a subject profile.
func (s *RedisStore) UpsertProfile(ctx context.Context, p *subscriber.Profile) error {
	data, err := json.Marshal(profileDoc{
		ID:          p.ID,
		DisplayName: p.DisplayName,
	})
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	if err := s.client.Set(ctx, s.key("profile:"+p.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}

	return nil
}

// Close releases the redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// key prepends the store prefix.
func (s *RedisStore) key(suffix string) string {
	return s.prefix + ":" + suffix
}

// announce publishes a change event. Failures are logged, not escalated:
// watchers fall behind rather than writers failing.
func (s *RedisStore) announce(ctx context.Context, alertID string) {
	if err := s.client.Publish(ctx, s.key("alerts:events"), alertID).Err(); err != nil {
		logger.WarnKV(ctx, "Alert change announcement failed", "alert_id", alertID, "error", err)
	}
}

// writeAlert encodes and stores the record document.
func (s *RedisStore) writeAlert(ctx context.Context, r *alert.Record) error {
	doc := alertDoc{
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
		doc.Latitude = &r.Position.Latitude
		doc.Longitude = &r.Position.Longitude
	}

	if !r.ResponseTimestamp.IsZero() {
		ts := r.ResponseTimestamp
		doc.ResponseTimestamp = &ts
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	if err := s.client.Set(ctx, s.key("alert:"+r.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("store alert: %w", err)
	}

	return nil
}

// decodeAlert parses a stored alert document into the domain record.
func decodeAlert(data []byte) (*alert.Record, error) {
	var doc alertDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode alert: %w", err)
	}

	r := &alert.Record{
		ID:              doc.ID,
		SubjectID:       doc.SubjectID,
		ReporterID:      doc.ReporterID,
		TriggeredByRole: alert.TriggerRole(doc.TriggeredByRole),
		Status:          alert.Status(doc.Status),
		LocationStatus:  alert.LocationStatus(doc.LocationStatus),
		MapLink:         doc.MapLink,
		RespondedBy:     doc.RespondedBy,
		CreatedAt:       doc.CreatedAt,
	}

	if doc.Latitude != nil && doc.Longitude != nil {
		r.Position = &alert.Position{
			Latitude:  *doc.Latitude,
			Longitude: *doc.Longitude,
		}
	}

	if doc.ResponseTimestamp != nil {
		r.ResponseTimestamp = *doc.ResponseTimestamp
	}

	return r, nil
}

// snapshot loads and filters the full alert collection.
func (s *RedisStore) snapshot(ctx context.Context, f AlertFilter) ([]*alert.Record, error) {
	ids, err := s.client.SMembers(ctx, s.key("alerts")).Result()
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	result := make([]*alert.Record, 0, len(ids))

	for _, id := range ids {
		r, err := s.GetAlert(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}

		if err != nil {
			return nil, err
		}

		if f.Matches(r) {
			result = append(result, r)
		}
	}

	sortAlerts(result)

	return result, nil
}
