// Package reconcile records verified payments that could not be written to
// the order store so they can be settled by hand later.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

const incidentsKey = "checkout:incidents"

var ErrIncidentNotFound = errors.New("incident not found")

type Incident struct {
	GatewayOrderID string    `json:"gatewayOrderId"`
	PaymentID      string    `json:"paymentId"`
	Reason         string    `json:"reason"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Queue is a Redis hash of open incidents keyed by payment id. A payment
// has at most one open incident; recording it again overwrites the reason.
type Queue struct {
	client *redis.Client
}

func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func (q *Queue) Record(ctx context.Context, incident Incident) error {
	if incident.PaymentID == "" {
		return errors.New("incident has no payment id")
	}
	if incident.OccurredAt.IsZero() {
		incident.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("marshal incident failed: %w", err)
	}
	if err := q.client.HSet(ctx, incidentsKey, incident.PaymentID, data).Err(); err != nil {
		return fmt.Errorf("redis hset failed: %w", err)
	}
	return nil
}

func (q *Queue) Get(ctx context.Context, paymentID string) (Incident, error) {
	data, err := q.client.HGet(ctx, incidentsKey, paymentID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Incident{}, ErrIncidentNotFound
	}
	if err != nil {
		return Incident{}, fmt.Errorf("redis hget failed: %w", err)
	}

	var incident Incident
	if err := json.Unmarshal(data, &incident); err != nil {
		return Incident{}, fmt.Errorf("unmarshal incident failed: %w", err)
	}
	return incident, nil
}

// List returns open incidents, oldest first. Entries that no longer decode
// are skipped.
func (q *Queue) List(ctx context.Context) ([]Incident, error) {
	raw, err := q.client.HGetAll(ctx, incidentsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	incidents := lo.FilterMap(lo.Values(raw), func(v string, _ int) (Incident, bool) {
		var incident Incident
		return incident, json.Unmarshal([]byte(v), &incident) == nil
	})
	sort.Slice(incidents, func(i, j int) bool {
		return incidents[i].OccurredAt.Before(incidents[j].OccurredAt)
	})
	return incidents, nil
}

func (q *Queue) Resolve(ctx context.Context, paymentID string) error {
	n, err := q.client.HDel(ctx, incidentsKey, paymentID).Result()
	if err != nil {
		return fmt.Errorf("redis hdel failed: %w", err)
	}
	if n == 0 {
		return ErrIncidentNotFound
	}
	return nil
}
