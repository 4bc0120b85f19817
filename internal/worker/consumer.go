package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"teamdict/features/command"
	"teamdict/features/dataentry"
	"teamdict/features/table"
	"teamdict/internal/middleware"
	"teamdict/internal/slack"
)

// Dispatcher routes a dequeued envelope. Satisfied by *command.Router.
type Dispatcher interface {
	Route(ctx context.Context, env *command.Envelope) error
}

// Jobs records utility job outcomes. Satisfied by *job.Service.
type Jobs interface {
	Finish(ctx context.Context, id string) error
	Fail(ctx context.Context, id, errMsg string) error
}

// TableWriter applies bulk entries. Satisfied by *table.Service.
type TableWriter interface {
	Upsert(ctx context.Context, long, key, value string) error
}

// Notifier delivers completion messages. Satisfied by *slack.Notifier.
type Notifier interface {
	Notify(ctx context.Context, responseURL string, msg slack.Message) error
}

// CommandConsumer drains the command topic. The idempotency gate runs before
// routing so a redelivered envelope never repeats its side effects; the
// claim is released again when routing fails on infrastructure, keeping the
// redelivery effective.
type CommandConsumer struct {
	router Dispatcher
	marks  command.MarkRepository
}

func NewCommandConsumer(router Dispatcher, marks command.MarkRepository) *CommandConsumer {
	return &CommandConsumer{router: router, marks: marks}
}

func (c *CommandConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var env command.Envelope
	if err := json.Unmarshal(m.Body, &env); err != nil {
		// Poison pill, don't retry.
		slog.Error("poison pill: invalid envelope json", "error", err)
		return nil
	}

	ctx := middleware.WithCorrelationID(context.Background(), env.ID)

	first, err := c.marks.Claim(ctx, env.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to claim envelope", "envelope_id", env.ID, "error", err)
		return err
	}
	if !first {
		slog.InfoContext(ctx, "duplicate delivery skipped", "envelope_id", env.ID)
		return nil
	}

	if err := c.router.Route(ctx, &env); err != nil {
		slog.ErrorContext(ctx, "routing failed", "envelope_id", env.ID, "error", err)
		if releaseErr := c.marks.Release(ctx, env.ID); releaseErr != nil {
			slog.ErrorContext(ctx, "failed to release claim", "envelope_id", env.ID, "error", releaseErr)
		}
		return err
	}
	return nil
}

// UtilityConsumer drains the utility topic and updates the pollable job row
// as it goes.
type UtilityConsumer struct {
	tables   TableWriter
	jobs     Jobs
	notifier Notifier
	timeout  time.Duration
}

func NewUtilityConsumer(tables TableWriter, jobs Jobs, notifier Notifier) *UtilityConsumer {
	return &UtilityConsumer{tables: tables, jobs: jobs, notifier: notifier, timeout: 60 * time.Second}
}

func (c *UtilityConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var env command.UtilityEnvelope
	if err := json.Unmarshal(m.Body, &env); err != nil {
		slog.Error("poison pill: invalid utility envelope json", "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(middleware.WithCorrelationID(context.Background(), env.JobID), c.timeout)
	defer cancel()

	switch env.Kind {
	case dataentry.Kind:
		return c.handleDataEntry(ctx, env)
	default:
		slog.WarnContext(ctx, "unknown utility kind, dropping", "job_id", env.JobID, "kind", env.Kind)
		if err := c.jobs.Fail(ctx, env.JobID, fmt.Sprintf("unknown kind %q", env.Kind)); err != nil {
			slog.ErrorContext(ctx, "failed to mark job as failed", "job_id", env.JobID, "error", err)
		}
		return nil
	}
}

func (c *UtilityConsumer) handleDataEntry(ctx context.Context, env command.UtilityEnvelope) error {
	var task dataentry.TaskPayload
	if err := json.Unmarshal(env.Payload, &task); err != nil {
		slog.ErrorContext(ctx, "poison pill: invalid task payload", "job_id", env.JobID, "error", err)
		if failErr := c.jobs.Fail(ctx, env.JobID, "malformed payload"); failErr != nil {
			slog.ErrorContext(ctx, "failed to mark job as failed", "job_id", env.JobID, "error", failErr)
		}
		return nil
	}

	for _, pair := range task.Pairs {
		err := c.tables.Upsert(ctx, task.TableName, pair.Key, pair.Value)
		if err == nil {
			continue
		}

		// A missing or unusable table cannot heal on redelivery, so the
		// job is failed and the user told, instead of letting the queue
		// retry forever.
		if errors.Is(err, table.ErrTableMissing) || errors.Is(err, table.ErrBadName) {
			slog.WarnContext(ctx, "bulk entry target unusable", "job_id", env.JobID, "table", task.TableName, "error", err)
			if failErr := c.jobs.Fail(ctx, env.JobID, err.Error()); failErr != nil {
				slog.ErrorContext(ctx, "failed to mark job as failed", "job_id", env.JobID, "error", failErr)
			}
			c.notify(ctx, task.ResponseURL,
				fmt.Sprintf("No table named `%s` exists.", table.ShortName(task.TableName)))
			return nil
		}

		slog.ErrorContext(ctx, "bulk entry failed", "job_id", env.JobID, "table", task.TableName, "error", err)
		if failErr := c.jobs.Fail(ctx, env.JobID, err.Error()); failErr != nil {
			slog.ErrorContext(ctx, "failed to mark job as failed", "job_id", env.JobID, "error", failErr)
		}
		return err
	}

	if err := c.jobs.Finish(ctx, env.JobID); err != nil {
		slog.ErrorContext(ctx, "failed to mark job as finished", "job_id", env.JobID, "error", err)
		return err
	}

	c.report(ctx, task)
	slog.InfoContext(ctx, "bulk entry applied", "job_id", env.JobID, "table", task.TableName, "entries", len(task.Pairs))
	return nil
}

// report tells the channel the upload landed. Best effort: the rows are
// already committed, so a delivery failure is only logged.
func (c *UtilityConsumer) report(ctx context.Context, task dataentry.TaskPayload) {
	plural := "y"
	if len(task.Pairs) > 1 {
		plural = "ies"
	}
	c.notify(ctx, task.ResponseURL,
		fmt.Sprintf("%d entr%s added to `%s`.", len(task.Pairs), plural, table.ShortName(task.TableName)))
}

func (c *UtilityConsumer) notify(ctx context.Context, responseURL, text string) {
	if responseURL == "" {
		return
	}
	if err := c.notifier.Notify(ctx, responseURL, slack.TextMessage(text)); err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(ctx, "failed to deliver notification", "error", err)
	}
}
