package repository

import (
	"context"

	"workflowbridge/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepository hands out gap-tolerant, never-repeating counter values.
type SequenceRepository interface {
	// Next increments the named counter and returns the new value. When the
	// counter does not exist yet it starts from initial. Must run inside a
	// transaction for the increment and read to be atomic.
	Next(ctx context.Context, name string, initial int64) (int64, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) Next(ctx context.Context, name string, initial int64) (int64, error) {
	db := GetDB(ctx, r.db)

	seed := model.Sequence{Name: name, Value: initial}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, err
	}

	// the row lock taken here serialises concurrent callers until commit
	if err := db.Model(&model.Sequence{}).
		Where("name = ?", name).
		UpdateColumn("value", gorm.Expr("value + ?", 1)).Error; err != nil {
		return 0, err
	}

	var seq model.Sequence
	if err := db.First(&seq, "name = ?", name).Error; err != nil {
		return 0, err
	}
	return seq.Value, nil
}
