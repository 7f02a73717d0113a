package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"anoa.com/memberclub/internal/config"
	"anoa.com/memberclub/internal/entity"
	ledgerRepo "anoa.com/memberclub/internal/modules/ledger/repository"
	ledgerService "anoa.com/memberclub/internal/modules/ledger/service"
	"anoa.com/memberclub/pkg/apperror"
	"anoa.com/memberclub/pkg/logger"
	"anoa.com/memberclub/pkg/metrics"
	"anoa.com/memberclub/pkg/sanitize"
	"github.com/google/uuid"
)

const welcomeKey = "welcome"

// RankNotifier is told when a grant moves a member into a higher tier.
type RankNotifier interface {
	NotifyRankUp(ctx context.Context, userID uuid.UUID, fromRank, toRank string, total int) error
}

// GrantResult describes one idempotent grant attempt. Granted is false when the entry
// already existed; that is a success, not an error.
type GrantResult struct {
	Kind    entity.LedgerKind `json:"kind"`
	Key     string            `json:"idempotency_key,omitempty"`
	Points  int               `json:"points"`
	Granted bool              `json:"granted"`
}

type LoginResult struct {
	Login      GrantResult   `json:"login"`
	Streak     int           `json:"streak"`
	Milestones []GrantResult `json:"milestones,omitempty"`
}

// Issuer appends ledger entries for every reward kind. Each idempotent grant relies on
// the ledger's (user, kind, key) unique index, never on a prior read.
type Issuer interface {
	GrantWelcomeBonus(ctx context.Context, userID uuid.UUID) (GrantResult, error)
	GrantDailyLoginBonus(ctx context.Context, userID uuid.UUID, now time.Time) (*LoginResult, error)
	GrantStreakBonus(ctx context.Context, userID uuid.UUID, key string, points int) (GrantResult, error)
	GrantInviteBonus(ctx context.Context, inviterID, inviteeID uuid.UUID) (GrantResult, error)
	GrantQuestReward(ctx context.Context, userID uuid.UUID, quest *entity.QuestDefinition, completionID uuid.UUID) (GrantResult, error)

	RecordAdminAward(ctx context.Context, userID uuid.UUID, delta int, memo string) (*entity.LedgerEntry, error)
	RecordAdminAdjustment(ctx context.Context, userID uuid.UUID, delta int, memo string) (*entity.LedgerEntry, error)
	SetBalance(ctx context.Context, userID uuid.UUID, target int, memo string) (*entity.LedgerEntry, error)
	SetRank(ctx context.Context, userID uuid.UUID, rankName string, memo string) (*entity.LedgerEntry, error)
}

type issuer struct {
	repo     ledgerRepo.LedgerRepository
	ranks    *ledgerService.RankTable
	rewards  config.Rewards
	notifier RankNotifier
	log      *logger.Logger
}

func NewIssuer(repo ledgerRepo.LedgerRepository, ranks *ledgerService.RankTable, rewards config.Rewards, notifier RankNotifier, log *logger.Logger) Issuer {
	return &issuer{
		repo:     repo,
		ranks:    ranks,
		rewards:  rewards,
		notifier: notifier,
		log:      log,
	}
}

func (s *issuer) GrantWelcomeBonus(ctx context.Context, userID uuid.UUID) (GrantResult, error) {
	return s.grant(ctx, userID, entity.KindWelcomeBonus, welcomeKey, s.rewards.WelcomeBonus, "Welcome to the club")
}

// GrantDailyLoginBonus grants today's bonus and then evaluates the streak. The streak
// step runs even when today's bonus already existed, so a milestone lost to a failed
// request is granted on the next login of the same day.
func (s *issuer) GrantDailyLoginBonus(ctx context.Context, userID uuid.UUID, now time.Time) (*LoginResult, error) {
	today := LoginDay(now)

	login, err := s.grant(ctx, userID, entity.KindLoginBonus, today, s.rewards.DailyLoginBonus, "Daily login bonus")
	if err != nil {
		return nil, err
	}
	result := &LoginResult{Login: login}

	dates, err := s.repo.LoginDates(ctx, userID)
	if err != nil {
		return nil, apperror.Unavailable("load login history", err)
	}
	result.Streak = CurrentStreak(dates, now)

	for _, days := range Milestones(result.Streak) {
		points := s.rewards.Streak7DayBonus
		if days == 30 {
			points = s.rewards.Streak30DayBonus
		}

		key := fmt.Sprintf("%d-day:%s", days, today)
		milestone, err := s.GrantStreakBonus(ctx, userID, key, points)
		if err != nil {
			return nil, err
		}
		result.Milestones = append(result.Milestones, milestone)
	}

	return result, nil
}

func (s *issuer) GrantStreakBonus(ctx context.Context, userID uuid.UUID, key string, points int) (GrantResult, error) {
	return s.grant(ctx, userID, entity.KindLoginStreakBonus, key, points, "Login streak bonus ("+key+")")
}

func (s *issuer) GrantInviteBonus(ctx context.Context, inviterID, inviteeID uuid.UUID) (GrantResult, error) {
	if inviterID == inviteeID {
		return GrantResult{}, apperror.ErrInvalidInput
	}
	return s.grant(ctx, inviterID, entity.KindInviteBonus, inviteeID.String(), s.rewards.InviteBonus, "Invite bonus: a new member joined with your code")
}

func (s *issuer) GrantQuestReward(ctx context.Context, userID uuid.UUID, quest *entity.QuestDefinition, completionID uuid.UUID) (GrantResult, error) {
	return s.grant(ctx, userID, entity.KindQuestReward, completionID.String(), quest.PointsReward, "Quest completed: "+quest.Title)
}

func (s *issuer) RecordAdminAward(ctx context.Context, userID uuid.UUID, delta int, memo string) (*entity.LedgerEntry, error) {
	return s.appendAdmin(ctx, userID, entity.KindAdminAward, delta, memo)
}

func (s *issuer) RecordAdminAdjustment(ctx context.Context, userID uuid.UUID, delta int, memo string) (*entity.LedgerEntry, error) {
	return s.appendAdmin(ctx, userID, entity.KindAdminAdjustment, delta, memo)
}

// SetBalance appends target minus the current sum. Two concurrent calls for the same
// member can both read the same sum; the last one wins by delta, not by value.
func (s *issuer) SetBalance(ctx context.Context, userID uuid.UUID, target int, memo string) (*entity.LedgerEntry, error) {
	current, err := s.repo.SumPoints(ctx, userID)
	if err != nil {
		return nil, apperror.Unavailable("sum ledger points", err)
	}
	if memo == "" {
		memo = fmt.Sprintf("Balance set to %d", target)
	}
	return s.appendAdmin(ctx, userID, entity.KindAdminAdjustment, target-current, memo)
}

// SetRank moves the balance to the threshold of the named tier.
func (s *issuer) SetRank(ctx context.Context, userID uuid.UUID, rankName string, memo string) (*entity.LedgerEntry, error) {
	tier, ok := s.ranks.ByName(rankName)
	if !ok {
		return nil, apperror.New(http.StatusBadRequest, fmt.Sprintf("unknown rank %q", rankName), apperror.ErrInvalidInput)
	}

	current, err := s.repo.SumPoints(ctx, userID)
	if err != nil {
		return nil, apperror.Unavailable("sum ledger points", err)
	}
	if memo == "" {
		memo = "Rank set to " + tier.Name
	}
	return s.appendAdmin(ctx, userID, entity.KindRankAdjustment, tier.MinPoints-current, memo)
}

func (s *issuer) grant(ctx context.Context, userID uuid.UUID, kind entity.LedgerKind, key string, points int, memo string) (GrantResult, error) {
	result := GrantResult{Kind: kind, Key: key, Points: points}

	entry := &entity.LedgerEntry{
		UserID:         userID,
		Kind:           kind,
		Points:         points,
		IdempotencyKey: &key,
		Memo:           memo,
	}

	inserted, err := s.repo.Append(ctx, entry)
	if err != nil {
		metrics.LedgerGrants.WithLabelValues(string(kind), metrics.OutcomeFailed).Inc()
		s.log.WithUserID(userID).WithError(err).WithField("kind", kind).Error("ledger grant failed")
		return result, apperror.Unavailable("grant "+string(kind), err)
	}
	if !inserted {
		metrics.LedgerGrants.WithLabelValues(string(kind), metrics.OutcomeDuplicate).Inc()
		s.log.WithUserID(userID).WithFields(map[string]interface{}{"kind": kind, "key": key}).Debug("grant already recorded")
		return result, nil
	}

	metrics.LedgerGrants.WithLabelValues(string(kind), metrics.OutcomeGranted).Inc()
	result.Granted = true
	s.afterAppend(ctx, userID, points)
	return result, nil
}

func (s *issuer) appendAdmin(ctx context.Context, userID uuid.UUID, kind entity.LedgerKind, delta int, memo string) (*entity.LedgerEntry, error) {
	entry := &entity.LedgerEntry{
		UserID: userID,
		Kind:   kind,
		Points: delta,
		Memo:   sanitize.Text(memo),
	}

	if _, err := s.repo.Append(ctx, entry); err != nil {
		metrics.LedgerGrants.WithLabelValues(string(kind), metrics.OutcomeFailed).Inc()
		return nil, apperror.Unavailable("record "+string(kind), err)
	}

	metrics.LedgerGrants.WithLabelValues(string(kind), metrics.OutcomeGranted).Inc()
	s.log.WithUserID(userID).WithFields(map[string]interface{}{"kind": kind, "points": delta}).Info("admin ledger entry recorded")
	s.afterAppend(ctx, userID, delta)
	return entry, nil
}

// afterAppend refreshes the leaderboard cache and announces rank-ups. The entry is
// already durable, so failures here are only logged.
func (s *issuer) afterAppend(ctx context.Context, userID uuid.UUID, points int) {
	total, err := s.repo.RefreshStats(ctx, userID)
	if err != nil {
		s.log.WithUserID(userID).WithError(err).Warn("failed to refresh member stats")
		return
	}

	if points <= 0 || s.notifier == nil {
		return
	}

	previous := s.ranks.Rank(total - points)
	current := s.ranks.Rank(total)
	if current.Index <= previous.Index {
		return
	}

	if err := s.notifier.NotifyRankUp(ctx, userID, previous.Name, current.Name, total); err != nil {
		s.log.WithUserID(userID).WithError(err).Warn("failed to send rank up notification")
		return
	}
	s.log.WithUserID(userID).WithFields(map[string]interface{}{"from": previous.Name, "to": current.Name}).Info("✅ rank up notification sent")
}
