package dataentry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// UtilityQueue enqueues a pollable utility job. Satisfied by
// *command.Service.
type UtilityQueue interface {
	EnqueueUtility(ctx context.Context, kind string, payload any) (string, error)
}

type Service struct {
	repo    Repository
	queue   UtilityQueue
	baseURL string
	ttl     time.Duration
}

func NewService(repo Repository, queue UtilityQueue, baseURL string, ttl time.Duration) *Service {
	return &Service{repo: repo, queue: queue, baseURL: baseURL, ttl: ttl}
}

// IssueToken mints a single-use entry token for tableName and returns the
// URL to hand to the user. Expired leftovers are purged opportunistically
// so abandoned links do not accumulate.
func (s *Service) IssueToken(ctx context.Context, tableName, responseURL, userID, channelID, messageTS string) (string, error) {
	if err := s.repo.PurgeExpired(ctx); err != nil {
		slog.WarnContext(ctx, "failed to purge expired entry tokens", "error", err)
	}

	t := &Token{
		Ext:         uuid.New().String(),
		TableName:   tableName,
		ResponseURL: responseURL,
		UserID:      userID,
		ChannelID:   channelID,
		MessageTS:   messageTS,
		ExpDate:     time.Now().UTC().Add(s.ttl),
	}
	if err := s.repo.Save(ctx, t); err != nil {
		return "", err
	}
	return s.EntryURL(t.Ext), nil
}

// Verify returns the token behind ext if it is still valid.
func (s *Service) Verify(ctx context.Context, ext string) (*Token, error) {
	return s.repo.Get(ctx, ext)
}

// Submit parses the uploaded rows, consumes the token, and queues the
// ingestion task. The returned job ID is pollable via the jobs endpoint.
func (s *Service) Submit(ctx context.Context, ext string, data io.Reader) (string, error) {
	t, err := s.repo.Get(ctx, ext)
	if err != nil {
		return "", err
	}

	pairs, err := ParseCSV(data)
	if err != nil {
		return "", err
	}
	if len(pairs) == 0 {
		return "", ErrNoRows
	}

	// Consuming before enqueueing keeps the token single-use even when the
	// same form is posted twice concurrently.
	if err := s.repo.Consume(ctx, ext); err != nil {
		return "", err
	}

	return s.queue.EnqueueUtility(ctx, Kind, TaskPayload{
		TableName:   t.TableName,
		ResponseURL: t.ResponseURL,
		Pairs:       pairs,
	})
}

func (s *Service) EntryURL(ext string) string {
	return fmt.Sprintf("%s/data_entry/%s", s.baseURL, ext)
}
