package dto

import (
	"time"

	"anoa.com/memberclub/internal/entity"
	commonDto "anoa.com/memberclub/pkg/dto"
	"github.com/google/uuid"
)

type CreateQuestRequest struct {
	Slug           string                     `json:"slug" binding:"required,min=3,max=100"`
	Title          string                     `json:"title" binding:"required,min=3,max=200"`
	Description    string                     `json:"description" binding:"max=2000"`
	PointsReward   int                        `json:"points_reward" binding:"required,min=1,max=100000"`
	EvaluationMode entity.QuestEvaluationMode `json:"evaluation_mode" binding:"omitempty,oneof=manual_submission automatic"`
	EvaluationKey  *string                    `json:"evaluation_key" binding:"omitempty,oneof=profile_complete map_visible referral"`
	Repeatable     bool                       `json:"repeatable"`
	Active         *bool                      `json:"active"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type SubmitRequest struct {
	Evidence string `json:"evidence" binding:"required,min=3,max=2000"`
}

type CompletionQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=pending approved rejected"`
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// QuestResponse is a quest as seen by one member.
type QuestResponse struct {
	ID             uuid.UUID                  `json:"id"`
	Slug           string                     `json:"slug"`
	Title          string                     `json:"title"`
	Description    string                     `json:"description"`
	PointsReward   int                        `json:"points_reward"`
	EvaluationMode entity.QuestEvaluationMode `json:"evaluation_mode"`
	Repeatable     bool                       `json:"repeatable"`
	Active         bool                       `json:"active"`
	Completed      bool                       `json:"completed"`
	TimesCompleted int                        `json:"times_completed"`
	Pending        bool                       `json:"pending"`
}

type CompletionResponse struct {
	ID         uuid.UUID                `json:"id"`
	QuestID    uuid.UUID                `json:"quest_id"`
	QuestTitle string                   `json:"quest_title,omitempty"`
	Member     *commonDto.MemberSummary `json:"member,omitempty"`
	Status     entity.CompletionStatus  `json:"status"`
	DedupeTag  *string                  `json:"dedupe_tag,omitempty"`
	Evidence   *string                  `json:"evidence,omitempty"`
	ReviewedBy *uuid.UUID               `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time               `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
}

type CompletionListResponse struct {
	Data []CompletionResponse     `json:"data"`
	Meta commonDto.PaginationMeta `json:"meta"`
}

// Outcome of one automatic evaluation. Awarded is false when the completion
// already existed.
type EvaluationResult struct {
	QuestID      uuid.UUID `json:"quest_id"`
	Slug         string    `json:"slug"`
	CompletionID uuid.UUID `json:"completion_id"`
	Points       int       `json:"points"`
	Awarded      bool      `json:"awarded"`
}

func ToQuestResponse(quest *entity.QuestDefinition) QuestResponse {
	return QuestResponse{
		ID:             quest.ID,
		Slug:           quest.Slug,
		Title:          quest.Title,
		Description:    quest.Description,
		PointsReward:   quest.PointsReward,
		EvaluationMode: quest.EvaluationMode,
		Repeatable:     quest.Repeatable,
		Active:         quest.Active,
	}
}

func ToCompletionResponse(c *entity.QuestCompletion) CompletionResponse {
	resp := CompletionResponse{
		ID:         c.ID,
		QuestID:    c.QuestID,
		Status:     c.Status,
		DedupeTag:  c.DedupeTag,
		Evidence:   c.Evidence,
		ReviewedBy: c.ReviewedBy,
		ReviewedAt: c.ReviewedAt,
		CreatedAt:  c.CreatedAt,
	}
	if c.Quest != nil {
		resp.QuestTitle = c.Quest.Title
	}
	if c.Member != nil {
		resp.Member = &commonDto.MemberSummary{
			ID:               c.Member.ID,
			DisplayName:      c.Member.DisplayName,
			AvatarURL:        c.Member.AvatarURL,
			MembershipSerial: c.Member.MembershipSerial,
		}
	}
	return resp
}
