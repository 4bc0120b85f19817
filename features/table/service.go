package table

import (
	"context"
	"errors"
	"fmt"
)

// Service applies channel namespacing on top of the repository and enforces
// the CRUD semantics of the slash commands: existence checks before
// mutation, and domain errors for every user-correctable failure.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create makes a new key-value table in the channel. ErrTableExists if a
// table with that short name is already present, so the DDL never runs twice.
func (s *Service) Create(ctx context.Context, scope Scope, short string) error {
	long, err := LongName(scope, short)
	if err != nil {
		return err
	}
	exists, err := s.repo.Exists(ctx, long)
	if err != nil {
		return err
	}
	if exists {
		return ErrTableExists
	}
	return s.repo.Create(ctx, long)
}

// Drop removes a table identified by its long name, as round-tripped through
// an interactive confirmation's callback_id. ErrTableMissing if it is gone
// already (for example a duplicate confirmation click).
func (s *Service) Drop(ctx context.Context, long string) error {
	exists, err := s.repo.Exists(ctx, long)
	if err != nil {
		return err
	}
	if !exists {
		return ErrTableMissing
	}
	return s.repo.Drop(ctx, long)
}

// Has reports whether the channel has a table with the given short name.
func (s *Service) Has(ctx context.Context, scope Scope, short string) (bool, error) {
	long, err := LongName(scope, short)
	if err != nil {
		return false, err
	}
	return s.repo.Exists(ctx, long)
}

// DeleteNamed removes a row from a table identified by its long name, as
// round-tripped through an interactive callback.
func (s *Service) DeleteNamed(ctx context.Context, long, key string) error {
	exists, err := s.repo.Exists(ctx, long)
	if err != nil {
		return err
	}
	if !exists {
		return ErrTableMissing
	}
	return s.repo.Delete(ctx, long, key)
}

// Add inserts a key-value row. ErrTableMissing if the table does not exist,
// ErrDuplicateKey if the key is taken.
func (s *Service) Add(ctx context.Context, scope Scope, short, key, value string) error {
	long, err := s.resolve(ctx, scope, short)
	if err != nil {
		return err
	}
	return s.repo.Insert(ctx, long, key, value)
}

// Upsert inserts or overwrites a row, used by bulk data entry where
// re-submitting the same key is expected.
func (s *Service) Upsert(ctx context.Context, long, key, value string) error {
	exists, err := s.repo.Exists(ctx, long)
	if err != nil {
		return err
	}
	if !exists {
		return ErrTableMissing
	}
	return s.repo.Upsert(ctx, long, key, value)
}

// Delete removes a row by key. ErrTableMissing / ErrKeyMissing as applicable.
func (s *Service) Delete(ctx context.Context, scope Scope, short, key string) error {
	long, err := s.resolve(ctx, scope, short)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, long, key)
}

// Lookup finds a key in the named table, or across every table in the
// channel when short is empty. A missing key is not an error here; it just
// yields no matches.
func (s *Service) Lookup(ctx context.Context, scope Scope, key, short string) ([]Match, error) {
	if short != "" {
		long, err := s.resolve(ctx, scope, short)
		if err != nil {
			return nil, err
		}
		value, err := s.repo.Lookup(ctx, long, key)
		if errors.Is(err, ErrKeyMissing) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []Match{{Table: short, Value: value}}, nil
	}

	longs, err := s.list(ctx, scope)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, long := range longs {
		value, err := s.repo.Lookup(ctx, long, key)
		if errors.Is(err, ErrKeyMissing) {
			continue
		}
		if err != nil {
			return nil, err
		}
		matches = append(matches, Match{Table: ShortName(long), Value: value})
	}
	return matches, nil
}

// List returns the short names of every table in the channel.
func (s *Service) List(ctx context.Context, scope Scope) ([]string, error) {
	longs, err := s.list(ctx, scope)
	if err != nil {
		return nil, err
	}
	shorts := make([]string, 0, len(longs))
	for _, long := range longs {
		shorts = append(shorts, ShortName(long))
	}
	return shorts, nil
}

func (s *Service) list(ctx context.Context, scope Scope) ([]string, error) {
	prefix, err := LongName(scope, "")
	if err != nil {
		return nil, err
	}
	return s.repo.ListByPrefix(ctx, prefix)
}

func (s *Service) resolve(ctx context.Context, scope Scope, short string) (string, error) {
	long, err := LongName(scope, short)
	if err != nil {
		return "", err
	}
	exists, err := s.repo.Exists(ctx, long)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrTableMissing, short)
	}
	return long, nil
}
