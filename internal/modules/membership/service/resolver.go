package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"anoa.com/memberclub/internal/entity"
	inviteDto "anoa.com/memberclub/internal/modules/invite/dto"
	inviteService "anoa.com/memberclub/internal/modules/invite/service"
	membershipDto "anoa.com/memberclub/internal/modules/membership/dto"
	memberRepo "anoa.com/memberclub/internal/modules/membership/repository"
	questService "anoa.com/memberclub/internal/modules/quest/service"
	rewardService "anoa.com/memberclub/internal/modules/reward/service"
	searchService "anoa.com/memberclub/internal/modules/search/service"
	"anoa.com/memberclub/pkg/apperror"
	"anoa.com/memberclub/pkg/codegen"
	"anoa.com/memberclub/pkg/database"
	"anoa.com/memberclub/pkg/logger"
	"anoa.com/memberclub/pkg/metrics"
	"anoa.com/memberclub/pkg/payment"
	"anoa.com/memberclub/pkg/sanitize"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxSerialAttempts = 5

// InviteRedeemer is the part of the invite registry the resolver needs.
type InviteRedeemer interface {
	Redeem(ctx context.Context, code string, redeemerID uuid.UUID) (*inviteDto.RedemptionResult, error)
	FindRedemption(ctx context.Context, code string, redeemerID uuid.UUID) (*inviteDto.RedemptionResult, error)
}

type RewardIssuer interface {
	GrantWelcomeBonus(ctx context.Context, userID uuid.UUID) (rewardService.GrantResult, error)
	GrantDailyLoginBonus(ctx context.Context, userID uuid.UUID, now time.Time) (*rewardService.LoginResult, error)
	GrantInviteBonus(ctx context.Context, inviterID, inviteeID uuid.UUID) (rewardService.GrantResult, error)
}

// VerifyInput is one verified-identity event. UserID and Email come from the identity
// provider; the rest from the member.
type VerifyInput struct {
	UserID           uuid.UUID
	Email            string
	InviteCode       string
	PaymentReference string
}

// Resolver turns a verification event into a member profile with its sign-in rewards.
// Every step is idempotent, so a failed request can be retried from the start.
type Resolver interface {
	Resolve(ctx context.Context, in VerifyInput) (*membershipDto.VerifyResponse, error)
}

type resolver struct {
	members  memberRepo.MemberRepository
	invites  InviteRedeemer
	rewards  RewardIssuer
	quests   questService.Evaluator
	payments payment.StatusChecker
	index    searchService.MemberIndex
	log      *logger.Logger
	now      func() time.Time
}

func NewResolver(
	members memberRepo.MemberRepository,
	invites InviteRedeemer,
	rewards RewardIssuer,
	quests questService.Evaluator,
	payments payment.StatusChecker,
	index searchService.MemberIndex,
	log *logger.Logger,
) Resolver {
	return &resolver{
		members:  members,
		invites:  invites,
		rewards:  rewards,
		quests:   quests,
		payments: payments,
		index:    index,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *resolver) Resolve(ctx context.Context, in VerifyInput) (*membershipDto.VerifyResponse, error) {
	now := s.now()
	code := inviteService.NormalizeCode(in.InviteCode)
	log := s.log.WithUserID(in.UserID)

	// 1. Lookup. Joining needs an invite; active members may not spend one.
	member, err := s.members.FindByID(ctx, in.UserID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unavailable("find member", err)
		}
		member = nil
	}
	if member == nil && code == "" {
		return nil, ErrInviteRequired
	}

	var redemption *inviteDto.RedemptionResult
	if code != "" {
		redemption, err = s.redeem(ctx, member, code, in.UserID)
		if err != nil {
			return nil, err
		}
	}
	fresh := redemption != nil && !redemption.Replayed

	// 2. Subscription state.
	isNew := member == nil
	tier := entity.TierStandard
	current := entity.StatePending
	role := entity.RoleMember
	paymentRef := strings.TrimSpace(in.PaymentReference)
	if member != nil {
		tier, current, role = member.MembershipTier, member.SubscriptionState, member.Role
		if paymentRef == "" && member.PaymentReference != nil {
			paymentRef = *member.PaymentReference
		}
	}
	// A new join or a fresh redemption by a non-active member takes the invite's tier.
	redeemed := redemption != nil && (isNew || (fresh && current != entity.StateActive))
	if redeemed {
		tier = redemption.Tier
	}

	paid := false
	if role != entity.RoleAdmin && !tier.IsFree() && current != entity.StateActive && paymentRef != "" {
		paid = s.paymentConfirmed(ctx, in.UserID, paymentRef)
	}
	state := deriveState(current, redeemed, role, tier, paid)

	// 3. Create or update the profile.
	if isNew {
		member, err = s.create(ctx, in, tier, state, paymentRef, redemption)
		if err != nil {
			return nil, err
		}
	}
	if !isNew || member.SubscriptionState != state {
		if err := s.update(ctx, member, tier, state, in.PaymentReference, redemption, fresh); err != nil {
			return nil, err
		}
	}

	res := &membershipDto.VerifyResponse{
		Created: isNew,
		Invite:  redemption,
	}

	// 4. Welcome once, login every event.
	if res.Rewards.Welcome, err = s.rewards.GrantWelcomeBonus(ctx, member.ID); err != nil {
		return nil, err
	}
	if res.Rewards.Login, err = s.rewards.GrantDailyLoginBonus(ctx, member.ID, now); err != nil {
		return nil, err
	}

	if inviterID, ok := creditedInviter(member, redemption, redeemed); ok {
		bonus, err := s.rewards.GrantInviteBonus(ctx, inviterID, member.ID)
		if err != nil {
			return nil, err
		}
		res.Rewards.InviteBonus = &bonus

		if res.Rewards.Referral, err = s.quests.EvaluateReferral(ctx, inviterID, member); err != nil {
			return nil, err
		}
	}

	// 5. System quests.
	if res.Rewards.Quests, err = s.quests.EvaluateProfile(ctx, member); err != nil {
		return nil, err
	}

	if err := s.index.IndexMember(ctx, member); err != nil {
		log.WithError(err).Warn("failed to index member")
	}

	// 6. Route.
	res.Route = membershipDto.RouteProceed
	if needsPayment(member) {
		res.Route = membershipDto.RoutePayment
	}
	res.Profile = membershipDto.ToProfileResponse(member)

	metrics.ResolverRoutes.WithLabelValues(res.Route).Inc()
	log.WithFields(map[string]interface{}{
		"created": isNew,
		"state":   member.SubscriptionState,
		"route":   res.Route,
	}).Info("membership resolved")

	return res, nil
}

func (s *resolver) redeem(ctx context.Context, member *entity.Member, code string, userID uuid.UUID) (*inviteDto.RedemptionResult, error) {
	if member != nil && member.SubscriptionState == entity.StateActive {
		previous, err := s.invites.FindRedemption(ctx, code, userID)
		if err != nil {
			return nil, err
		}
		if previous == nil {
			return nil, ErrAlreadyMember
		}
		return previous, nil
	}
	return s.invites.Redeem(ctx, code, userID)
}

// paymentConfirmed never fails: any lookup problem reads as not paid.
func (s *resolver) paymentConfirmed(ctx context.Context, userID uuid.UUID, reference string) bool {
	status, err := s.payments.CheckStatus(ctx, reference)
	if err != nil {
		s.log.WithUserID(userID).WithError(err).Warn("payment status unavailable, treating as not paid")
		return false
	}
	return status.Confirmed()
}

// creditedInviter is the inviter whose code decided the member's current tier. A fresh
// redemption always wins over the stored inviter.
func creditedInviter(member *entity.Member, redemption *inviteDto.RedemptionResult, redeemed bool) (uuid.UUID, bool) {
	switch {
	case redeemed:
		return redemption.InviterID, redemption.InviterID != member.ID
	case member.InvitedBy != nil:
		return *member.InvitedBy, *member.InvitedBy != member.ID
	default:
		return uuid.Nil, false
	}
}

// needsPayment routes unconfirmed paid-tier members to checkout. An admin override to
// free is respected.
func needsPayment(member *entity.Member) bool {
	if member.Role == entity.RoleAdmin || member.MembershipTier.IsFree() {
		return false
	}
	return member.SubscriptionState != entity.StateActive && member.SubscriptionState != entity.StateFree
}

// deriveState never moves a member out of active. redeemed means the tier was just
// set by an invite; otherwise a paid-tier member keeps the state an admin gave them.
func deriveState(current entity.SubscriptionState, redeemed bool, role entity.Role, tier entity.MembershipTier, paid bool) entity.SubscriptionState {
	switch {
	case role == entity.RoleAdmin, current == entity.StateActive:
		return entity.StateActive
	case current == entity.StateInactive || current == entity.StateCanceled:
		if paid {
			return entity.StateActive
		}
		return current
	case tier.IsFree():
		return entity.StateFree
	case paid:
		return entity.StateActive
	case redeemed, current == entity.StatePending:
		return entity.StateFreeTier
	default:
		return current
	}
}

func (s *resolver) create(ctx context.Context, in VerifyInput, tier entity.MembershipTier, state entity.SubscriptionState, paymentRef string, redemption *inviteDto.RedemptionResult) (*entity.Member, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, ErrMissingEmail
	}

	member := &entity.Member{
		ID:                in.UserID,
		Email:             email,
		DisplayName:       defaultDisplayName(email),
		MembershipTier:    tier,
		SubscriptionState: state,
		Role:              entity.RoleMember,
	}
	if paymentRef != "" {
		member.PaymentReference = &paymentRef
	}
	if redemption != nil {
		inviter := redemption.InviterID
		member.InvitedBy = &inviter
		applyPrefill(member, redemption.Prefill)
	}

	for attempt := 1; ; attempt++ {
		serial, err := codegen.MembershipSerial()
		if err != nil {
			return nil, fmt.Errorf("generate membership serial: %w", err)
		}
		member.MembershipSerial = serial

		err = s.members.Create(ctx, member)
		if err == nil {
			s.log.WithUserID(member.ID).WithFields(map[string]interface{}{
				"tier":   tier,
				"state":  state,
				"serial": serial,
			}).Info("✅ member created")
			return member, nil
		}
		if !database.IsDuplicateKey(err) {
			return nil, apperror.Unavailable("create member", err)
		}

		// A concurrent request for the same identity won the insert.
		if existing, ferr := s.members.FindByID(ctx, in.UserID); ferr == nil {
			return existing, nil
		}
		if other, ferr := s.members.FindByEmail(ctx, email); ferr == nil && other.ID != in.UserID {
			return nil, ErrEmailTaken
		}
		if attempt >= maxSerialAttempts {
			return nil, apperror.Unavailable("create member", err)
		}
	}
}

func (s *resolver) update(ctx context.Context, member *entity.Member, tier entity.MembershipTier, state entity.SubscriptionState, paymentRef string, redemption *inviteDto.RedemptionResult, fresh bool) error {
	changed := false

	if fresh && member.SubscriptionState != entity.StateActive {
		inviter := redemption.InviterID
		member.InvitedBy = &inviter
		if !questService.ProfileComplete(member) {
			applyPrefill(member, redemption.Prefill)
		}
		changed = true
	}
	if member.MembershipTier != tier {
		member.MembershipTier = tier
		changed = true
	}
	if member.SubscriptionState != state {
		s.log.WithUserID(member.ID).WithFields(map[string]interface{}{
			"from": member.SubscriptionState,
			"to":   state,
		}).Info("subscription state changed")
		member.SubscriptionState = state
		changed = true
	}
	if ref := strings.TrimSpace(paymentRef); ref != "" && (member.PaymentReference == nil || *member.PaymentReference != ref) {
		member.PaymentReference = &ref
		changed = true
	}

	if !changed {
		return nil
	}
	if err := s.members.Update(ctx, member); err != nil {
		return apperror.Unavailable("update member", err)
	}
	return nil
}

func applyPrefill(member *entity.Member, prefill inviteDto.Prefill) {
	if name := sanitize.Optional(prefill.DisplayName); name != nil {
		member.DisplayName = *name
	}
	if prefill.HomeCountry != nil {
		member.HomeCountry = sanitize.Optional(prefill.HomeCountry)
	}
	if prefill.HomeCity != nil {
		member.HomeCity = sanitize.Optional(prefill.HomeCity)
	}
}

func defaultDisplayName(email string) string {
	name, _, _ := strings.Cut(email, "@")
	if name == "" {
		return "Member"
	}
	return name
}
