package leaderboard

import (
	"context"
	"errors"
	"log"
	"time"

	"assessment-system/internal/models"
	"assessment-system/internal/session"
)

// Scope selects which results a board ranks: one assessment type,
// optionally narrowed to a subject.
type Scope struct {
	Kind    session.Kind `json:"kind"`
	Subject string       `json:"subject,omitempty"`
}

var ErrInvalidScope = errors.New("leaderboard scope needs kind quiz or mock_test")

type Repository interface {
	ResultRows(ctx context.Context, kind session.Kind, subject string) ([]models.ResultRow, error)
	Subjects(ctx context.Context, kind session.Kind) ([]string, error)
}

type Cache interface {
	GetLeaderboard(ctx context.Context, kind, subject string) ([]models.LeaderboardEntry, error)
	LeaderboardGeneration(ctx context.Context, kind string) (int64, error)
	SetLeaderboard(ctx context.Context, kind, subject string, generation int64, entries []models.LeaderboardEntry, ttl time.Duration) (bool, error)
	InvalidateLeaderboards(ctx context.Context, kind string) error
}

type Service struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
}

// NewService builds the leaderboard service. cache may be nil.
func NewService(repo Repository, cache Cache, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

func (s *Service) Board(ctx context.Context, scope Scope) ([]models.LeaderboardEntry, error) {
	if !scope.Kind.Valid() {
		return nil, ErrInvalidScope
	}

	// A board is only cached if no result landed while it was read.
	var generation int64
	cacheable := false
	if s.cache != nil {
		entries, err := s.cache.GetLeaderboard(ctx, string(scope.Kind), scope.Subject)
		if err == nil {
			return entries, nil
		}
		if generation, err = s.cache.LeaderboardGeneration(ctx, string(scope.Kind)); err == nil {
			cacheable = true
		}
	}

	rows, err := s.repo.ResultRows(ctx, scope.Kind, scope.Subject)
	if err != nil {
		log.Printf("Error getting leaderboard rows for %s/%s: %v", scope.Kind, scope.Subject, err)
		return nil, err
	}
	entries := Aggregate(rows)

	if cacheable {
		stored, err := s.cache.SetLeaderboard(ctx, string(scope.Kind), scope.Subject, generation, entries, s.ttl)
		if err != nil {
			log.Printf("Error caching leaderboard for %s/%s: %v", scope.Kind, scope.Subject, err)
		} else if !stored {
			log.Printf("Leaderboard %s/%s changed while building, not cached", scope.Kind, scope.Subject)
		}
	}
	return entries, nil
}

func (s *Service) Subjects(ctx context.Context, kind session.Kind) ([]string, error) {
	if !kind.Valid() {
		return nil, ErrInvalidScope
	}
	return s.repo.Subjects(ctx, kind)
}

// ResultRecorded drops cached boards of a kind after a new result lands.
func (s *Service) ResultRecorded(ctx context.Context, kind session.Kind) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateLeaderboards(ctx, string(kind)); err != nil {
		log.Printf("Error invalidating %s leaderboards: %v", kind, err)
	}
}
