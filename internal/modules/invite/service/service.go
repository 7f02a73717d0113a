package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"anoa.com/memberclub/internal/entity"
	inviteDto "anoa.com/memberclub/internal/modules/invite/dto"
	inviteRepo "anoa.com/memberclub/internal/modules/invite/repository"
	"anoa.com/memberclub/pkg/apperror"
	"anoa.com/memberclub/pkg/codegen"
	"anoa.com/memberclub/pkg/database"
	commonDto "anoa.com/memberclub/pkg/dto"
	"anoa.com/memberclub/pkg/logger"
	"anoa.com/memberclub/pkg/metrics"
	"anoa.com/memberclub/pkg/ratelimit"
	"anoa.com/memberclub/pkg/sanitize"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	actionRedeem = "invite_redeem"
	actionIssue  = "invite_issue"

	maxCodeAttempts = 5
)

// Redemption outcomes for metrics.
const (
	outcomeRedeemed  = "redeemed"
	outcomeReplayed  = "replayed"
	outcomeInvalid   = "invalid"
	outcomeConsumed  = "consumed"
	outcomeExhausted = "exhausted"
)

// MemberLookup resolves the issuer of an invite.
type MemberLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Member, error)
}

type Options struct {
	FailureLimit  int
	FailureWindow time.Duration
	IssueCooldown time.Duration
}

// InviteService is the invite registry. It never grants points; callers act on the
// returned RedemptionResult.
type InviteService interface {
	Validate(ctx context.Context, code string) (*inviteDto.ValidationResponse, error)
	Redeem(ctx context.Context, code string, redeemerID uuid.UUID) (*inviteDto.RedemptionResult, error)
	// FindRedemption returns the member's earlier redemption of code, or nil when there
	// is none. It never consumes the invite.
	FindRedemption(ctx context.Context, code string, redeemerID uuid.UUID) (*inviteDto.RedemptionResult, error)
	Issue(ctx context.Context, issuerID uuid.UUID, req inviteDto.IssueInviteRequest) (*inviteDto.InviteResponse, error)
	List(ctx context.Context, issuedBy *uuid.UUID, page, limit int) (*inviteDto.InviteListResponse, error)
}

type inviteService struct {
	repo        inviteRepo.InviteRepository
	members     MemberLookup
	redisClient *redis.Client
	opts        Options
	log         *logger.Logger
	now         func() time.Time
}

func NewInviteService(repo inviteRepo.InviteRepository, members MemberLookup, redisClient *redis.Client, opts Options, log *logger.Logger) InviteService {
	return &inviteService{
		repo:        repo,
		members:     members,
		redisClient: redisClient,
		opts:        opts,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeCode makes codes case-insensitive for the member typing them.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *inviteService) Validate(ctx context.Context, code string) (*inviteDto.ValidationResponse, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrInvalidCode
	}

	invite, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, apperror.Unavailable("find invite", err)
	}
	if invite.Expired(s.now()) {
		return nil, ErrInvalidCode
	}

	resp := &inviteDto.ValidationResponse{
		Valid:   true,
		Tier:    invite.MembershipTier,
		Mode:    invite.Mode,
		Prefill: inviteDto.PrefillOf(invite),
	}

	switch v := invite.Variant().(type) {
	case entity.SingleUseInvite:
		if !v.Available() {
			return nil, ErrAlreadyConsumed
		}
	case entity.ReusableInvite:
		if !v.Available() {
			return nil, ErrExhausted
		}
		remaining := v.Remaining()
		resp.Remaining = &remaining
	}

	return resp, nil
}

func (s *inviteService) Redeem(ctx context.Context, code string, redeemerID uuid.UUID) (*inviteDto.RedemptionResult, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, s.fail(ctx, redeemerID, "", outcomeInvalid, ErrInvalidCode)
	}

	if s.opts.FailureLimit > 0 {
		failures, err := ratelimit.FailureCount(ctx, s.redisClient, redeemerID, actionRedeem)
		if err != nil {
			s.log.WithUserID(redeemerID).WithError(err).Warn("invite throttle unavailable")
		} else if failures >= int64(s.opts.FailureLimit) {
			return nil, ErrTooManyAttempts
		}
	}

	invite, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, s.fail(ctx, redeemerID, "", outcomeInvalid, ErrInvalidCode)
		}
		return nil, apperror.Unavailable("find invite", err)
	}
	if invite.IssuedBy == redeemerID {
		return nil, s.fail(ctx, redeemerID, invite.Mode, outcomeInvalid, ErrOwnInvite)
	}

	// A member replaying their own redemption gets the original result.
	if result, err := s.replay(ctx, invite, redeemerID); result != nil || err != nil {
		return result, err
	}

	if invite.Expired(s.now()) {
		return nil, s.fail(ctx, redeemerID, invite.Mode, outcomeInvalid, ErrInvalidCode)
	}
	if !invite.Variant().Available() {
		return nil, s.consumedError(ctx, invite, redeemerID)
	}

	redemption, err := s.repo.Redeem(ctx, invite, redeemerID, s.now())
	switch {
	case err == nil:
	case errors.Is(err, inviteRepo.ErrNotConsumed), errors.Is(err, inviteRepo.ErrAlreadyRedeemed):
		// Lost the race. If the winner was this same member, it is a replay.
		if result, rerr := s.replay(ctx, invite, redeemerID); result != nil || rerr != nil {
			return result, rerr
		}
		return nil, s.consumedError(ctx, invite, redeemerID)
	default:
		metrics.InviteRedemptions.WithLabelValues(string(invite.Mode), metrics.OutcomeFailed).Inc()
		return nil, apperror.Unavailable("redeem invite", err)
	}

	metrics.InviteRedemptions.WithLabelValues(string(invite.Mode), outcomeRedeemed).Inc()
	if err := ratelimit.ClearFailures(ctx, s.redisClient, redeemerID, actionRedeem); err != nil {
		s.log.WithUserID(redeemerID).WithError(err).Warn("failed to reset invite failures")
	}
	s.log.WithUserID(redeemerID).WithFields(map[string]interface{}{
		"invite_id": invite.ID.String(),
		"mode":      invite.Mode,
		"tier":      invite.MembershipTier,
	}).Info("invite redeemed")

	return toRedemptionResult(invite, redemption, false), nil
}

func (s *inviteService) FindRedemption(ctx context.Context, code string, redeemerID uuid.UUID) (*inviteDto.RedemptionResult, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, nil
	}

	invite, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperror.Unavailable("find invite", err)
	}

	redemption, err := s.repo.FindRedemption(ctx, invite.ID, redeemerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperror.Unavailable("find invite redemption", err)
	}
	return toRedemptionResult(invite, redemption, true), nil
}

func (s *inviteService) replay(ctx context.Context, invite *entity.Invite, redeemerID uuid.UUID) (*inviteDto.RedemptionResult, error) {
	existing, err := s.repo.FindRedemption(ctx, invite.ID, redeemerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperror.Unavailable("find invite redemption", err)
	}
	metrics.InviteRedemptions.WithLabelValues(string(invite.Mode), outcomeReplayed).Inc()
	return toRedemptionResult(invite, existing, true), nil
}

func (s *inviteService) consumedError(ctx context.Context, invite *entity.Invite, redeemerID uuid.UUID) error {
	if invite.Mode == entity.InviteModeReusable {
		return s.fail(ctx, redeemerID, invite.Mode, outcomeExhausted, ErrExhausted)
	}
	return s.fail(ctx, redeemerID, invite.Mode, outcomeConsumed, ErrAlreadyConsumed)
}

// fail records a failed attempt against the redeemer's throttle and returns err.
func (s *inviteService) fail(ctx context.Context, redeemerID uuid.UUID, mode entity.InviteMode, outcome string, err error) error {
	metrics.InviteRedemptions.WithLabelValues(string(mode), outcome).Inc()
	if s.opts.FailureLimit > 0 {
		if rerr := ratelimit.RecordFailure(ctx, s.redisClient, redeemerID, actionRedeem, s.opts.FailureWindow); rerr != nil {
			s.log.WithUserID(redeemerID).WithError(rerr).Warn("failed to record invite failure")
		}
	}
	return err
}

func toRedemptionResult(invite *entity.Invite, redemption *entity.InviteRedemption, replayed bool) *inviteDto.RedemptionResult {
	return &inviteDto.RedemptionResult{
		InviteID:  invite.ID,
		Code:      invite.Code,
		Mode:      invite.Mode,
		Tier:      redemption.MembershipTier,
		InviterID: redemption.InviterID,
		Prefill:   inviteDto.PrefillOf(invite),
		Replayed:  replayed,
	}
}

func (s *inviteService) Issue(ctx context.Context, issuerID uuid.UUID, req inviteDto.IssueInviteRequest) (*inviteDto.InviteResponse, error) {
	issuer, err := s.members.FindByID(ctx, issuerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotEligible
		}
		return nil, apperror.Unavailable("find issuer", err)
	}

	mode := req.Mode
	if mode == "" {
		mode = entity.InviteModeSingleUse
	}
	tier := req.Tier
	if tier == "" {
		tier = entity.TierStandard
	}

	if !issuer.IsAdmin() {
		if issuer.SubscriptionState != entity.StateActive && issuer.SubscriptionState != entity.StateFree {
			return nil, ErrNotEligible
		}
		if mode != entity.InviteModeSingleUse || tier != entity.TierStandard {
			return nil, ErrIssuePolicy
		}

		allowed, err := ratelimit.CheckAndSetRateLimit(ctx, s.redisClient, issuerID, actionIssue, s.opts.IssueCooldown)
		if err != nil {
			s.log.WithUserID(issuerID).WithError(err).Warn("invite issue cooldown unavailable")
		} else if !allowed {
			ttl, _ := ratelimit.GetRateLimitTTL(ctx, s.redisClient, issuerID, actionIssue)
			return nil, apperror.New(http.StatusTooManyRequests,
				fmt.Sprintf("please wait %d seconds before issuing another invite", int(ttl.Seconds())),
				apperror.ErrRateLimitExceeded)
		}
	}

	invite := &entity.Invite{
		IssuedBy:           issuerID,
		MembershipTier:     tier,
		Mode:               mode,
		PrefillDisplayName: sanitize.Optional(req.PrefillDisplayName),
		PrefillHomeCountry: sanitize.Optional(req.PrefillHomeCountry),
		PrefillHomeCity:    sanitize.Optional(req.PrefillHomeCity),
	}
	if mode == entity.InviteModeReusable {
		if req.Cap < 1 {
			return nil, ErrCapRequired
		}
		invite.UseCap = req.Cap
	}
	if req.ExpiresInDays > 0 {
		expires := s.now().AddDate(0, 0, req.ExpiresInDays)
		invite.ExpiresAt = &expires
	}

	for attempt := 1; ; attempt++ {
		invite.Code, err = codegen.InviteCode()
		if err != nil {
			return nil, fmt.Errorf("generate invite code: %w", err)
		}

		err = s.repo.Create(ctx, invite)
		if err == nil {
			break
		}
		if !database.IsDuplicateKey(err) || attempt >= maxCodeAttempts {
			return nil, apperror.Unavailable("create invite", err)
		}
		invite.ID = uuid.Nil
	}

	s.log.WithUserID(issuerID).WithFields(map[string]interface{}{
		"invite_id": invite.ID.String(),
		"mode":      mode,
		"tier":      tier,
	}).Info("invite issued")

	resp := inviteDto.ToInviteResponse(invite)
	return &resp, nil
}

func (s *inviteService) List(ctx context.Context, issuedBy *uuid.UUID, page, limit int) (*inviteDto.InviteListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	invites, total, err := s.repo.List(ctx, inviteRepo.InviteFilter{
		IssuedBy: issuedBy,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		return nil, apperror.Unavailable("list invites", err)
	}

	data := make([]inviteDto.InviteResponse, 0, len(invites))
	for i := range invites {
		data = append(data, inviteDto.ToInviteResponse(&invites[i]))
	}

	return &inviteDto.InviteListResponse{
		Data: data,
		Meta: commonDto.NewPaginationMeta(page, limit, total),
	}, nil
}
