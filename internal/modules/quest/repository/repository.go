package repository

import (
	"context"
	"errors"
	"time"

	"anoa.com/memberclub/internal/entity"
	"anoa.com/memberclub/pkg/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrApprovalTaken means another approved completion already holds the same
// (quest, member, approval key).
var ErrApprovalTaken = errors.New("quest completion already approved")

type CompletionFilter struct {
	QuestID *uuid.UUID
	Status  *entity.CompletionStatus
	UserID  *uuid.UUID
	Limit   int
	Offset  int
}

type QuestRepository interface {
	CreateDefinition(ctx context.Context, quest *entity.QuestDefinition) error
	FindDefinition(ctx context.Context, id uuid.UUID) (*entity.QuestDefinition, error)
	ListDefinitions(ctx context.Context, activeOnly bool) ([]entity.QuestDefinition, error)
	FindActiveAutomatic(ctx context.Context, evaluationKey string) ([]entity.QuestDefinition, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// CreateApproved inserts an approved completion unless one with the same approval
	// key exists. The stored completion is returned either way.
	CreateApproved(ctx context.Context, completion *entity.QuestCompletion) (*entity.QuestCompletion, bool, error)
	CreatePending(ctx context.Context, completion *entity.QuestCompletion) error
	HasApproved(ctx context.Context, questID, userID uuid.UUID) (bool, error)
	FindCompletion(ctx context.Context, id uuid.UUID) (*entity.QuestCompletion, error)
	ListCompletions(ctx context.Context, filter CompletionFilter) ([]entity.QuestCompletion, int64, error)

	// Review moves a pending completion to status. It reports false when the row
	// was no longer pending.
	Review(ctx context.Context, id uuid.UUID, status entity.CompletionStatus, approvalKey *string, reviewerID uuid.UUID, now time.Time) (bool, error)
}

type questRepository struct {
	db *gorm.DB
}

func NewQuestRepository(db *gorm.DB) QuestRepository {
	return &questRepository{db: db}
}

func (r *questRepository) CreateDefinition(ctx context.Context, quest *entity.QuestDefinition) error {
	return r.db.WithContext(ctx).Create(quest).Error
}

func (r *questRepository) FindDefinition(ctx context.Context, id uuid.UUID) (*entity.QuestDefinition, error) {
	var quest entity.QuestDefinition
	if err := r.db.WithContext(ctx).First(&quest, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &quest, nil
}

func (r *questRepository) ListDefinitions(ctx context.Context, activeOnly bool) ([]entity.QuestDefinition, error) {
	query := r.db.WithContext(ctx).Model(&entity.QuestDefinition{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var quests []entity.QuestDefinition
	err := query.Order("created_at ASC").Find(&quests).Error
	return quests, err
}

func (r *questRepository) FindActiveAutomatic(ctx context.Context, evaluationKey string) ([]entity.QuestDefinition, error) {
	var quests []entity.QuestDefinition
	err := r.db.WithContext(ctx).
		Where("active = ? AND evaluation_mode = ? AND evaluation_key = ?", true, entity.QuestAutomatic, evaluationKey).
		Order("created_at ASC").
		Find(&quests).Error
	return quests, err
}

func (r *questRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result := r.db.WithContext(ctx).Model(&entity.QuestDefinition{}).
		Where("id = ?", id).
		Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *questRepository) CreateApproved(ctx context.Context, completion *entity.QuestCompletion) (*entity.QuestCompletion, bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(completion)
	if result.Error != nil && !database.IsDuplicateKey(result.Error) {
		return nil, false, result.Error
	}
	if result.Error == nil && result.RowsAffected == 1 {
		return completion, true, nil
	}

	var existing entity.QuestCompletion
	err := r.db.WithContext(ctx).
		Where("quest_id = ? AND user_id = ? AND approval_key = ?", completion.QuestID, completion.UserID, *completion.ApprovalKey).
		First(&existing).Error
	if err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *questRepository) CreatePending(ctx context.Context, completion *entity.QuestCompletion) error {
	return r.db.WithContext(ctx).Create(completion).Error
}

func (r *questRepository) HasApproved(ctx context.Context, questID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.QuestCompletion{}).
		Where("quest_id = ? AND user_id = ? AND status = ?", questID, userID, entity.CompletionApproved).
		Count(&count).Error
	return count > 0, err
}

func (r *questRepository) FindCompletion(ctx context.Context, id uuid.UUID) (*entity.QuestCompletion, error) {
	var completion entity.QuestCompletion
	err := r.db.WithContext(ctx).
		Preload("Quest").
		First(&completion, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &completion, nil
}

func (r *questRepository) ListCompletions(ctx context.Context, filter CompletionFilter) ([]entity.QuestCompletion, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.QuestCompletion{})
	if filter.QuestID != nil {
		query = query.Where("quest_id = ?", *filter.QuestID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var completions []entity.QuestCompletion
	err := query.
		Preload("Quest").
		Preload("Member", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "display_name", "avatar_url", "membership_serial")
		}).
		Order("created_at ASC").
		Find(&completions).Error
	return completions, total, err
}

func (r *questRepository) Review(ctx context.Context, id uuid.UUID, status entity.CompletionStatus, approvalKey *string, reviewerID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entity.QuestCompletion{}).
		Where("id = ? AND status = ?", id, entity.CompletionPending).
		Updates(map[string]interface{}{
			"status":       status,
			"approval_key": approvalKey,
			"reviewed_by":  reviewerID,
			"reviewed_at":  now,
		})
	if result.Error != nil {
		if database.IsDuplicateKey(result.Error) {
			return false, ErrApprovalTaken
		}
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
