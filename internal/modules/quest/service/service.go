package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"anoa.com/memberclub/internal/entity"
	questDto "anoa.com/memberclub/internal/modules/quest/dto"
	questRepo "anoa.com/memberclub/internal/modules/quest/repository"
	"anoa.com/memberclub/pkg/apperror"
	"anoa.com/memberclub/pkg/database"
	commonDto "anoa.com/memberclub/pkg/dto"
	"anoa.com/memberclub/pkg/logger"
	"anoa.com/memberclub/pkg/metrics"
	"anoa.com/memberclub/pkg/sanitize"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuestService interface {
	ListForMember(ctx context.Context, userID uuid.UUID) ([]questDto.QuestResponse, error)
	Submit(ctx context.Context, userID, questID uuid.UUID, req questDto.SubmitRequest) (*questDto.CompletionResponse, error)

	// Admin
	ListDefinitions(ctx context.Context) ([]questDto.QuestResponse, error)
	CreateDefinition(ctx context.Context, req questDto.CreateQuestRequest) (*questDto.QuestResponse, error)
	SetActive(ctx context.Context, questID uuid.UUID, active bool) error
	ListCompletions(ctx context.Context, query questDto.CompletionQuery) (*questDto.CompletionListResponse, error)
	Approve(ctx context.Context, completionID, reviewerID uuid.UUID) (*questDto.CompletionResponse, error)
	Reject(ctx context.Context, completionID, reviewerID uuid.UUID) (*questDto.CompletionResponse, error)
}

type questService struct {
	repo    questRepo.QuestRepository
	rewards RewardGranter
	log     *logger.Logger
	now     func() time.Time
}

func NewQuestService(repo questRepo.QuestRepository, rewards RewardGranter, log *logger.Logger) QuestService {
	return &questService{
		repo:    repo,
		rewards: rewards,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *questService) ListForMember(ctx context.Context, userID uuid.UUID) ([]questDto.QuestResponse, error) {
	quests, err := s.repo.ListDefinitions(ctx, true)
	if err != nil {
		return nil, apperror.Unavailable("list quests", err)
	}

	completions, _, err := s.repo.ListCompletions(ctx, questRepo.CompletionFilter{UserID: &userID})
	if err != nil {
		return nil, apperror.Unavailable("list quest completions", err)
	}

	approved := make(map[uuid.UUID]int)
	pending := make(map[uuid.UUID]bool)
	for _, c := range completions {
		switch c.Status {
		case entity.CompletionApproved:
			approved[c.QuestID]++
		case entity.CompletionPending:
			pending[c.QuestID] = true
		}
	}

	res := make([]questDto.QuestResponse, 0, len(quests))
	for i := range quests {
		item := questDto.ToQuestResponse(&quests[i])
		item.TimesCompleted = approved[quests[i].ID]
		item.Completed = item.TimesCompleted > 0 && !quests[i].Repeatable
		item.Pending = pending[quests[i].ID]
		res = append(res, item)
	}
	return res, nil
}

func (s *questService) Submit(ctx context.Context, userID, questID uuid.UUID, req questDto.SubmitRequest) (*questDto.CompletionResponse, error) {
	quest, err := s.findQuest(ctx, questID)
	if err != nil {
		return nil, err
	}
	if !quest.Active {
		return nil, ErrQuestInactive
	}
	if quest.IsAutomatic() {
		return nil, ErrNotSubmittable
	}

	if !quest.Repeatable {
		done, err := s.repo.HasApproved(ctx, quest.ID, userID)
		if err != nil {
			return nil, apperror.Unavailable("check quest completion", err)
		}
		if done {
			return nil, ErrAlreadyCompleted
		}
	}

	status := entity.CompletionPending
	waiting, _, err := s.repo.ListCompletions(ctx, questRepo.CompletionFilter{QuestID: &quest.ID, UserID: &userID, Status: &status})
	if err != nil {
		return nil, apperror.Unavailable("check pending submissions", err)
	}
	if len(waiting) > 0 {
		return nil, ErrAlreadyPending
	}

	completion := &entity.QuestCompletion{
		QuestID:  quest.ID,
		UserID:   userID,
		Status:   entity.CompletionPending,
		Evidence: sanitize.Optional(&req.Evidence),
	}
	if err := s.repo.CreatePending(ctx, completion); err != nil {
		return nil, apperror.Unavailable("submit quest", err)
	}

	s.log.WithUserID(userID).WithField("quest", quest.Slug).Info("quest submitted for review")

	completion.Quest = quest
	res := questDto.ToCompletionResponse(completion)
	return &res, nil
}

func (s *questService) ListDefinitions(ctx context.Context) ([]questDto.QuestResponse, error) {
	quests, err := s.repo.ListDefinitions(ctx, false)
	if err != nil {
		return nil, apperror.Unavailable("list quests", err)
	}

	res := make([]questDto.QuestResponse, 0, len(quests))
	for i := range quests {
		res = append(res, questDto.ToQuestResponse(&quests[i]))
	}
	return res, nil
}

func (s *questService) CreateDefinition(ctx context.Context, req questDto.CreateQuestRequest) (*questDto.QuestResponse, error) {
	mode := req.EvaluationMode
	if mode == "" {
		mode = entity.QuestManualSubmission
	}
	if (mode == entity.QuestAutomatic) != (req.EvaluationKey != nil) {
		return nil, ErrEvaluationKey
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	quest := &entity.QuestDefinition{
		Slug:           strings.ToLower(strings.TrimSpace(req.Slug)),
		Title:          sanitize.Text(req.Title),
		Description:    sanitize.Text(req.Description),
		PointsReward:   req.PointsReward,
		EvaluationMode: mode,
		EvaluationKey:  req.EvaluationKey,
		Repeatable:     req.Repeatable,
		Active:         active,
	}
	if err := s.repo.CreateDefinition(ctx, quest); err != nil {
		if database.IsDuplicateKey(err) {
			return nil, ErrSlugTaken
		}
		return nil, apperror.Unavailable("create quest", err)
	}

	s.log.WithFields(map[string]interface{}{"quest": quest.Slug, "mode": mode}).Info("quest created")

	res := questDto.ToQuestResponse(quest)
	return &res, nil
}

func (s *questService) SetActive(ctx context.Context, questID uuid.UUID, active bool) error {
	if err := s.repo.SetActive(ctx, questID, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestNotFound
		}
		return apperror.Unavailable("update quest", err)
	}
	return nil
}

func (s *questService) ListCompletions(ctx context.Context, query questDto.CompletionQuery) (*questDto.CompletionListResponse, error) {
	page, limit := query.Page, query.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	filter := questRepo.CompletionFilter{Limit: limit, Offset: (page - 1) * limit}
	if query.Status != "" {
		status := entity.CompletionStatus(query.Status)
		filter.Status = &status
	}

	completions, total, err := s.repo.ListCompletions(ctx, filter)
	if err != nil {
		return nil, apperror.Unavailable("list quest completions", err)
	}

	data := make([]questDto.CompletionResponse, 0, len(completions))
	for i := range completions {
		data = append(data, questDto.ToCompletionResponse(&completions[i]))
	}

	return &questDto.CompletionListResponse{
		Data: data,
		Meta: commonDto.NewPaginationMeta(page, limit, total),
	}, nil
}

// Approve moves a pending completion to approved and pays the reward. Approving an
// already approved completion only retries the payout, which is idempotent.
func (s *questService) Approve(ctx context.Context, completionID, reviewerID uuid.UUID) (*questDto.CompletionResponse, error) {
	completion, err := s.findCompletion(ctx, completionID)
	if err != nil {
		return nil, err
	}

	switch completion.Status {
	case entity.CompletionRejected:
		return nil, ErrAlreadyReviewed
	case entity.CompletionPending:
		key := approvalKeyFor(completion.Quest, completion.DedupeTag)
		ok, err := s.repo.Review(ctx, completion.ID, entity.CompletionApproved, key, reviewerID, s.now())
		if err != nil {
			if errors.Is(err, questRepo.ErrApprovalTaken) {
				metrics.QuestCompletions.WithLabelValues(sourceReview, metrics.OutcomeDuplicate).Inc()
				return nil, ErrAlreadyCompleted
			}
			return nil, apperror.Unavailable("approve quest completion", err)
		}

		// Lost a race with another reviewer; go with whatever they decided.
		if completion, err = s.findCompletion(ctx, completionID); err != nil {
			return nil, err
		}
		if !ok && completion.Status != entity.CompletionApproved {
			return nil, ErrAlreadyReviewed
		}
	}

	grant, err := s.rewards.GrantQuestReward(ctx, completion.UserID, completion.Quest, completion.ID)
	if err != nil {
		metrics.QuestCompletions.WithLabelValues(sourceReview, metrics.OutcomeFailed).Inc()
		return nil, err
	}
	if grant.Granted {
		metrics.QuestCompletions.WithLabelValues(sourceReview, metrics.OutcomeGranted).Inc()
		s.log.WithUserID(completion.UserID).WithFields(map[string]interface{}{
			"quest":       completion.Quest.Slug,
			"reviewer_id": reviewerID.String(),
		}).Info("quest completion approved")
	}

	res := questDto.ToCompletionResponse(completion)
	return &res, nil
}

func (s *questService) Reject(ctx context.Context, completionID, reviewerID uuid.UUID) (*questDto.CompletionResponse, error) {
	completion, err := s.findCompletion(ctx, completionID)
	if err != nil {
		return nil, err
	}
	if completion.Status != entity.CompletionPending {
		return nil, ErrAlreadyReviewed
	}

	ok, err := s.repo.Review(ctx, completion.ID, entity.CompletionRejected, nil, reviewerID, s.now())
	if err != nil {
		return nil, apperror.Unavailable("reject quest completion", err)
	}
	if !ok {
		return nil, ErrAlreadyReviewed
	}

	completion, err = s.findCompletion(ctx, completionID)
	if err != nil {
		return nil, err
	}
	res := questDto.ToCompletionResponse(completion)
	return &res, nil
}

func (s *questService) findQuest(ctx context.Context, id uuid.UUID) (*entity.QuestDefinition, error) {
	quest, err := s.repo.FindDefinition(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, apperror.Unavailable("find quest", err)
	}
	return quest, nil
}

func (s *questService) findCompletion(ctx context.Context, id uuid.UUID) (*entity.QuestCompletion, error) {
	completion, err := s.repo.FindCompletion(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompletionNotFound
		}
		return nil, apperror.Unavailable("find quest completion", err)
	}
	return completion, nil
}
