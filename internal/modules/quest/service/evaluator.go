package service

import (
	"context"

	"anoa.com/memberclub/internal/entity"
	questDto "anoa.com/memberclub/internal/modules/quest/dto"
	questRepo "anoa.com/memberclub/internal/modules/quest/repository"
	rewardService "anoa.com/memberclub/internal/modules/reward/service"
	"anoa.com/memberclub/pkg/apperror"
	"anoa.com/memberclub/pkg/logger"
	"anoa.com/memberclub/pkg/metrics"
	"github.com/google/uuid"
)

const (
	sourceAutomatic = "automatic"
	sourceReview    = "review"
)

// RewardGranter pays out a quest once its completion is approved.
type RewardGranter interface {
	GrantQuestReward(ctx context.Context, userID uuid.UUID, quest *entity.QuestDefinition, completionID uuid.UUID) (rewardService.GrantResult, error)
}

// Evaluator runs the system quests. Every call is safe to repeat: a satisfied quest
// gets exactly one approved completion and one reward however often it is evaluated.
type Evaluator interface {
	EvaluateProfile(ctx context.Context, member *entity.Member) ([]questDto.EvaluationResult, error)
	EvaluateReferral(ctx context.Context, inviterID uuid.UUID, invitee *entity.Member) ([]questDto.EvaluationResult, error)
}

type evaluator struct {
	repo    questRepo.QuestRepository
	rewards RewardGranter
	log     *logger.Logger
}

func NewEvaluator(repo questRepo.QuestRepository, rewards RewardGranter, log *logger.Logger) Evaluator {
	return &evaluator{
		repo:    repo,
		rewards: rewards,
		log:     log,
	}
}

func (e *evaluator) EvaluateProfile(ctx context.Context, member *entity.Member) ([]questDto.EvaluationResult, error) {
	checks := []struct {
		key       string
		satisfied bool
	}{
		{entity.EvaluateProfileComplete, ProfileComplete(member)},
		{entity.EvaluateMapVisible, MapVisible(member)},
	}

	var results []questDto.EvaluationResult
	for _, check := range checks {
		if !check.satisfied {
			continue
		}
		res, err := e.completeAll(ctx, check.key, member.ID, nil)
		if err != nil {
			return results, err
		}
		results = append(results, res...)
	}
	return results, nil
}

// EvaluateReferral credits the inviter once per invitee. Invitees on a paid tier only
// count after their payment is confirmed, so callers run this again at that point.
func (e *evaluator) EvaluateReferral(ctx context.Context, inviterID uuid.UUID, invitee *entity.Member) ([]questDto.EvaluationResult, error) {
	if inviterID == invitee.ID || !ReferralEligible(invitee) {
		return nil, nil
	}
	tag := invitee.ID.String()
	return e.completeAll(ctx, entity.EvaluateReferral, inviterID, &tag)
}

func (e *evaluator) completeAll(ctx context.Context, key string, userID uuid.UUID, dedupeTag *string) ([]questDto.EvaluationResult, error) {
	quests, err := e.repo.FindActiveAutomatic(ctx, key)
	if err != nil {
		return nil, apperror.Unavailable("load automatic quests", err)
	}

	results := make([]questDto.EvaluationResult, 0, len(quests))
	for i := range quests {
		res, err := e.complete(ctx, &quests[i], userID, dedupeTag)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// complete ensures one approved completion exists and pays its reward. The reward is
// keyed by the completion id, so a rerun after a failed grant pays exactly once.
func (e *evaluator) complete(ctx context.Context, quest *entity.QuestDefinition, userID uuid.UUID, dedupeTag *string) (questDto.EvaluationResult, error) {
	result := questDto.EvaluationResult{QuestID: quest.ID, Slug: quest.Slug, Points: quest.PointsReward}

	completion := &entity.QuestCompletion{
		QuestID:     quest.ID,
		UserID:      userID,
		Status:      entity.CompletionApproved,
		DedupeTag:   dedupeTag,
		ApprovalKey: approvalKeyFor(quest, dedupeTag),
	}
	stored, created, err := e.repo.CreateApproved(ctx, completion)
	if err != nil {
		metrics.QuestCompletions.WithLabelValues(sourceAutomatic, metrics.OutcomeFailed).Inc()
		return result, apperror.Unavailable("record quest completion", err)
	}
	result.CompletionID = stored.ID

	grant, err := e.rewards.GrantQuestReward(ctx, userID, quest, stored.ID)
	if err != nil {
		metrics.QuestCompletions.WithLabelValues(sourceAutomatic, metrics.OutcomeFailed).Inc()
		return result, err
	}
	result.Awarded = created || grant.Granted

	if !result.Awarded {
		metrics.QuestCompletions.WithLabelValues(sourceAutomatic, metrics.OutcomeDuplicate).Inc()
		return result, nil
	}

	metrics.QuestCompletions.WithLabelValues(sourceAutomatic, metrics.OutcomeGranted).Inc()
	e.log.WithUserID(userID).WithFields(map[string]interface{}{
		"quest":  quest.Slug,
		"points": quest.PointsReward,
	}).Info("automatic quest completed")
	return result, nil
}
