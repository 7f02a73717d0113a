package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuestEvaluationMode string

const (
	QuestManualSubmission QuestEvaluationMode = "manual_submission"
	QuestAutomatic        QuestEvaluationMode = "automatic"
)

// Evaluation keys for automatic quests.
const (
	EvaluateProfileComplete = "profile_complete"
	EvaluateMapVisible      = "map_visible"
	EvaluateReferral        = "referral"
)

type QuestDefinition struct {
	ID             uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	Slug           string              `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Title          string              `gorm:"size:200;not null" json:"title"`
	Description    string              `gorm:"type:text" json:"description"`
	PointsReward   int                 `gorm:"not null" json:"points_reward"`
	EvaluationMode QuestEvaluationMode `gorm:"size:30;not null" json:"evaluation_mode"`
	EvaluationKey  *string             `gorm:"size:50" json:"evaluation_key,omitempty"`
	Repeatable     bool                `gorm:"not null;default:false" json:"repeatable"`
	Active         bool                `gorm:"not null" json:"active"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

func (q *QuestDefinition) BeforeCreate(tx *gorm.DB) (err error) {
	if q.ID == uuid.Nil {
		q.ID, err = uuid.NewV7()
	}
	return
}

func (q *QuestDefinition) IsAutomatic() bool {
	return q.EvaluationMode == QuestAutomatic
}

type CompletionStatus string

const (
	CompletionPending  CompletionStatus = "pending"
	CompletionApproved CompletionStatus = "approved"
	CompletionRejected CompletionStatus = "rejected"
)

// QuestCompletion holds one attempt at a quest.
//
// ApprovalKey is set only on approved rows and is unique per (quest, user): the dedupe
// tag for pair-scoped quests, "once" for one-shot quests, NULL for repeatable ones.
type QuestCompletion struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	QuestID     uuid.UUID        `gorm:"type:uuid;not null;index:idx_quest_completion_approval,unique,priority:1" json:"quest_id"`
	Quest       *QuestDefinition `gorm:"foreignKey:QuestID;constraint:OnDelete:CASCADE" json:"quest,omitempty"`
	UserID      uuid.UUID        `gorm:"type:uuid;not null;index:idx_quest_completion_approval,unique,priority:2;index" json:"user_id"`
	Member      *Member          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Status      CompletionStatus `gorm:"size:20;not null;index" json:"status"`
	DedupeTag   *string          `gorm:"size:100" json:"dedupe_tag,omitempty"`
	ApprovalKey *string          `gorm:"size:100;index:idx_quest_completion_approval,unique,priority:3" json:"-"`
	Evidence    *string          `gorm:"type:text" json:"evidence,omitempty"`
	ReviewedBy  *uuid.UUID       `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (c *QuestCompletion) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID, err = uuid.NewV7()
	}
	return
}
