package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"teamdict/features/job"
	"teamdict/internal/config"
	"teamdict/internal/slack"
)

// Producer publishes serialized envelopes to the queue. Satisfied by
// *nsq.Producer.
type Producer interface {
	Publish(topic string, body []byte) error
}

// Service is the synchronous half of the dispatcher: it authenticates an
// inbound request, wraps it in an Envelope, and publishes it. It never
// performs the command's work itself.
type Service struct {
	secret string
	pub    Producer
	jobs   *job.Service
}

func NewService(secret string, pub Producer, jobs *job.Service) *Service {
	return &Service{secret: secret, pub: pub, jobs: jobs}
}

// Authorize checks the request signature and timestamp freshness at the
// HTTP trust boundary. The same check is repeated by the worker from
// envelope data before any side effect runs.
func (s *Service) Authorize(timestamp string, body []byte, signature string) bool {
	return slack.Fresh(timestamp) && slack.Verify(s.secret, timestamp, body, signature)
}

// Secret exposes the signing secret for worker-side re-verification.
func (s *Service) Secret() string { return s.secret }

// Enqueue wraps the captured request in an Envelope and hands it to the
// queue. Queue unavailability is returned to the caller so the HTTP layer
// can answer 5xx and let Slack's own retry engage.
func (s *Service) Enqueue(ctx context.Context, jobType JobType, headers, form map[string]string, rawBody string) (*Envelope, error) {
	env := &Envelope{
		ID:         uuid.New().String(),
		Type:       jobType,
		Headers:    headers,
		Form:       form,
		RawBody:    rawBody,
		EnqueuedAt: time.Now().UTC(),
	}

	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	if err := s.pub.Publish(config.TopicCommand, body); err != nil {
		return nil, fmt.Errorf("enqueue failed: %w", err)
	}

	slog.InfoContext(ctx, "envelope enqueued", "envelope_id", env.ID, "job_type", env.Type)
	return env, nil
}

// EnqueueUtility records a pending utility job and publishes its task,
// returning the job ID so the caller can poll GET /jobs/{id} for status.
func (s *Service) EnqueueUtility(ctx context.Context, kind string, payload any) (string, error) {
	j, err := s.jobs.Start(ctx, kind)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(UtilityEnvelope{JobID: j.ID, Kind: kind, Payload: raw})
	if err != nil {
		return "", err
	}

	if err := s.pub.Publish(config.TopicUtility, body); err != nil {
		if failErr := s.jobs.Fail(ctx, j.ID, "enqueue failed"); failErr != nil {
			slog.ErrorContext(ctx, "failed to mark job as failed", "job_id", j.ID, "error", failErr)
		}
		return "", fmt.Errorf("enqueue failed: %w", err)
	}

	slog.InfoContext(ctx, "utility job enqueued", "job_id", j.ID, "kind", kind)
	return j.ID, nil
}
