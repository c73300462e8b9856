// backend/internal/profile/service.go
package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"assessment-system/internal/models"
)

var (
	ErrNotFound          = errors.New("profile not found")
	ErrIncompleteProfile = errors.New("all profile fields are required")
)

type Repository interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, p *models.Profile) error
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Get(ctx context.Context, userID string) (*models.Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

// Upsert stores the caller's profile. Every field must be filled in.
func (s *Service) Upsert(ctx context.Context, userID string, p models.Profile) (*models.Profile, error) {
	p.UserID = userID
	fields := map[string]*string{
		"name":              &p.Name,
		"regimental_number": &p.RegimentalNumber,
		"unit":              &p.Unit,
		"school_college":    &p.SchoolCollege,
		"directorate":       &p.Directorate,
		"group":             &p.Group,
	}
	var missing []string
	for name, v := range fields {
		*v = strings.TrimSpace(*v)
		if *v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteProfile, strings.Join(missing, ", "))
	}

	now := s.now()
	p.UpdatedAt = now
	if existing, err := s.repo.GetProfile(ctx, userID); err == nil {
		p.CreatedAt = existing.CreatedAt
	} else if errors.Is(err, ErrNotFound) {
		p.CreatedAt = now
	} else {
		return nil, err
	}

	if err := s.repo.UpsertProfile(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// IsComplete reports whether the user has stored a profile.
func (s *Service) IsComplete(ctx context.Context, userID string) (bool, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Name != "", nil
}
