// backend/internal/profile/repository.go
package profile

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"assessment-system/internal/models"
)

type GormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		log.Printf("Error getting profile for user %s: %v", userID, err)
		return nil, err
	}
	return &p, nil
}

func (r *GormRepository) UpsertProfile(ctx context.Context, p *models.Profile) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "regimental_number", "unit", "school_college", "directorate", "group", "updated_at",
		}),
	}).Create(p).Error
	if err != nil {
		log.Printf("Error saving profile for user %s: %v", p.UserID, err)
	}
	return err
}
