// Package eventlog records workflow execution events for debugging and
// audit. Events are append-only per workflow; the Redis recorder keeps a
// bounded, expiring trail.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event kinds.
const (
	KindWorkflowStarted  = "workflow_started"
	KindNodeEntered      = "node_entered"
	KindAgentCompleted   = "agent_completed"
	KindWorkflowFinished = "workflow_finished"
	KindWorkflowFailed   = "workflow_failed"
	KindWorkflowStopped  = "workflow_stopped"
)

// Event is one step in a workflow's execution trail.
type Event struct {
	WorkflowID string         `json:"workflow_id"`
	Kind       string         `json:"kind"`
	Node       string         `json:"node,omitempty"`
	Agent      string         `json:"agent,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Recorder persists workflow events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
	History(ctx context.Context, workflowID string) ([]Event, error)
}

// NoOpRecorder discards all events.
type NoOpRecorder struct{}

func (NoOpRecorder) Record(_ context.Context, _ Event) error { return nil }

func (NoOpRecorder) History(_ context.Context, _ string) ([]Event, error) { return nil, nil }

// RedisOptions configures the Redis recorder.
type RedisOptions struct {
	// KeyPrefix namespaces the per-workflow lists.
	KeyPrefix string
	// MaxEvents bounds each workflow's trail.
	MaxEvents int64
	// TTL expires trails of finished workflows.
	TTL time.Duration
}

// RedisRecorder keeps one bounded Redis list per workflow.
type RedisRecorder struct {
	client redis.UniversalClient
	opts   RedisOptions
}

// NewRedisRecorder creates a recorder over an existing Redis client.
func NewRedisRecorder(client redis.UniversalClient, optFns ...func(o *RedisOptions)) *RedisRecorder {
	opts := RedisOptions{
		KeyPrefix: "bioai:events",
		MaxEvents: 256,
		TTL:       24 * time.Hour,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &RedisRecorder{client: client, opts: opts}
}

func (r *RedisRecorder) key(workflowID string) string {
	return fmt.Sprintf("%s:%s", r.opts.KeyPrefix, workflowID)
}

// Record appends the event and trims the trail to the configured bound.
func (r *RedisRecorder) Record(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := r.key(ev.WorkflowID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, -r.opts.MaxEvents, -1)
	pipe.Expire(ctx, key, r.opts.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// History returns the recorded trail in execution order.
func (r *RedisRecorder) History(ctx context.Context, workflowID string) ([]Event, error) {
	raw, err := r.client.LRange(ctx, r.key(workflowID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read event history: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}
