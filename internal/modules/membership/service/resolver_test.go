package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"anoa.com/memberclub/internal/config"
	"anoa.com/memberclub/internal/entity"
	inviteDto "anoa.com/memberclub/internal/modules/invite/dto"
	inviteRepo "anoa.com/memberclub/internal/modules/invite/repository"
	inviteService "anoa.com/memberclub/internal/modules/invite/service"
	ledgerRepo "anoa.com/memberclub/internal/modules/ledger/repository"
	ledgerService "anoa.com/memberclub/internal/modules/ledger/service"
	membershipDto "anoa.com/memberclub/internal/modules/membership/dto"
	memberRepo "anoa.com/memberclub/internal/modules/membership/repository"
	questRepo "anoa.com/memberclub/internal/modules/quest/repository"
	questService "anoa.com/memberclub/internal/modules/quest/service"
	rewardService "anoa.com/memberclub/internal/modules/reward/service"
	searchService "anoa.com/memberclub/internal/modules/search/service"
	"anoa.com/memberclub/internal/testutil"
	"anoa.com/memberclub/pkg/logger"
	"anoa.com/memberclub/pkg/payment"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakePayments struct {
	mu     sync.Mutex
	status map[string]payment.Status
	err    error
	calls  int
}

func (f *fakePayments) CheckStatus(ctx context.Context, reference string) (payment.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return payment.StatusUnknown, f.err
	}
	if status, ok := f.status[reference]; ok {
		return status, nil
	}
	return payment.StatusNotPaid, nil
}

type membershipFixture struct {
	db       *gorm.DB
	ledger   ledgerRepo.LedgerRepository
	members  memberRepo.MemberRepository
	invites  inviteService.InviteService
	payments *fakePayments
	resolver *resolver
	profiles ProfileService
	admin    *entity.Member
}

func newMembershipFixture(t *testing.T) *membershipFixture {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.SeedQuests(t, db)
	log := logger.Discard()

	ledger := ledgerRepo.NewLedgerRepository(db)
	ranks := ledgerService.DefaultRankTable()
	issuer := rewardService.NewIssuer(ledger, ranks, config.DefaultRewards(), nil, log)
	evaluator := questService.NewEvaluator(questRepo.NewQuestRepository(db), issuer, log)
	members := memberRepo.NewMemberRepository(db)
	invites := inviteService.NewInviteService(inviteRepo.NewInviteRepository(db), members, nil,
		inviteService.Options{FailureLimit: 10, FailureWindow: time.Minute}, log)
	payments := &fakePayments{status: map[string]payment.Status{}}

	r := NewResolver(members, invites, issuer, evaluator, payments, searchService.Disabled{}, log).(*resolver)

	return &membershipFixture{
		db:       db,
		ledger:   ledger,
		members:  members,
		invites:  invites,
		payments: payments,
		resolver: r,
		profiles: NewProfileService(members, ledgerService.NewLedgerService(ledger, ranks, log), evaluator, searchService.Disabled{}, log),
		admin:    testutil.CreateMember(t, db, func(m *entity.Member) { m.Role = entity.RoleAdmin }),
	}
}

func (f *membershipFixture) issue(t *testing.T, req inviteDto.IssueInviteRequest) string {
	t.Helper()
	invite, err := f.invites.Issue(context.Background(), f.admin.ID, req)
	require.NoError(t, err)
	return invite.Code
}

func (f *membershipFixture) balance(t *testing.T, userID uuid.UUID) int {
	t.Helper()
	total, err := f.ledger.SumPoints(context.Background(), userID)
	require.NoError(t, err)
	return total
}

func (f *membershipFixture) count(t *testing.T, userID uuid.UUID, kind entity.LedgerKind) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&entity.LedgerEntry{}).Where("user_id = ? AND kind = ?", userID, kind).Count(&n).Error)
	return n
}

func (f *membershipFixture) at(day time.Time) {
	f.resolver.now = func() time.Time { return day }
}

func newIdentity() VerifyInput {
	id := uuid.New()
	return VerifyInput{UserID: id, Email: "Member." + id.String()[:8] + "@Example.com"}
}

func TestResolveRequiresInviteToJoin(t *testing.T) {
	f := newMembershipFixture(t)

	_, err := f.resolver.Resolve(context.Background(), newIdentity())
	require.ErrorIs(t, err, ErrInviteRequired)

	_, err = f.resolver.Resolve(context.Background(), VerifyInput{UserID: uuid.New(), Email: "x@example.com", InviteCode: "NOPE234567"})
	require.ErrorIs(t, err, inviteService.ErrInvalidCode)
}

func TestReferralRunTwiceGrantsOnce(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()
	day := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	f.at(day)

	inviter := testutil.CreateMember(t, f.db)
	invite, err := f.invites.Issue(ctx, inviter.ID, inviteDto.IssueInviteRequest{})
	require.NoError(t, err)
	// Members may only issue standard invites; make this one a community invite.
	require.NoError(t, f.db.Model(&entity.Invite{}).Where("id = ?", invite.ID).
		Updates(map[string]interface{}{"membership_tier": entity.TierFreeCommunity, "prefill_home_city": "Bandung"}).Error)

	in := newIdentity()
	in.InviteCode = invite.Code

	first, err := f.resolver.Resolve(ctx, in)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, membershipDto.RouteProceed, first.Route)
	assert.Equal(t, entity.StateFree, first.Profile.SubscriptionState)
	assert.Equal(t, entity.TierFreeCommunity, first.Profile.MembershipTier)
	require.NotNil(t, first.Profile.InvitedBy)
	assert.Equal(t, inviter.ID, *first.Profile.InvitedBy)
	assert.Equal(t, "Bandung", *first.Profile.HomeCity)
	assert.Contains(t, first.Profile.Email, "@example.com")
	assert.True(t, first.Rewards.Welcome.Granted)
	assert.True(t, first.Rewards.Login.Login.Granted)
	assert.Equal(t, 1, first.Rewards.Login.Streak)
	require.NotNil(t, first.Rewards.InviteBonus)
	assert.True(t, first.Rewards.InviteBonus.Granted)
	require.Len(t, first.Rewards.Referral, 1)
	assert.True(t, first.Rewards.Referral[0].Awarded)

	second, err := f.resolver.Resolve(ctx, in)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.True(t, second.Invite.Replayed)
	assert.False(t, second.Rewards.Welcome.Granted)
	assert.False(t, second.Rewards.InviteBonus.Granted)

	var stored entity.Invite
	require.NoError(t, f.db.First(&stored, "id = ?", invite.ID).Error)
	require.NotNil(t, stored.UsedBy)
	assert.Equal(t, in.UserID, *stored.UsedBy)

	assert.Equal(t, 110, f.balance(t, in.UserID))
	assert.EqualValues(t, 1, f.count(t, inviter.ID, entity.KindInviteBonus))
	assert.EqualValues(t, 1, f.count(t, inviter.ID, entity.KindQuestReward))
	assert.Equal(t, 200, f.balance(t, inviter.ID))
}

func TestPaidTierRoutesToPaymentUntilConfirmed(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()

	in := newIdentity()
	in.InviteCode = f.issue(t, inviteDto.IssueInviteRequest{})

	res, err := f.resolver.Resolve(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, entity.StateFreeTier, res.Profile.SubscriptionState)
	assert.Equal(t, membershipDto.RoutePayment, res.Route)
	assert.Empty(t, res.Rewards.Referral)
	assert.Zero(t, f.payments.calls)
	assert.EqualValues(t, 1, f.count(t, f.admin.ID, entity.KindInviteBonus))
	assert.EqualValues(t, 0, f.count(t, f.admin.ID, entity.KindQuestReward))

	f.payments.status["cs_unpaid"] = payment.StatusUnknown
	res, err = f.resolver.Resolve(ctx, VerifyInput{UserID: in.UserID, Email: in.Email, PaymentReference: "cs_unpaid"})
	require.NoError(t, err)
	assert.Equal(t, entity.StateFreeTier, res.Profile.SubscriptionState)
	assert.Equal(t, membershipDto.RoutePayment, res.Route)

	f.payments.status["cs_paid"] = payment.StatusPaid
	res, err = f.resolver.Resolve(ctx, VerifyInput{UserID: in.UserID, Email: in.Email, PaymentReference: "cs_paid"})
	require.NoError(t, err)
	assert.Equal(t, entity.StateActive, res.Profile.SubscriptionState)
	assert.Equal(t, membershipDto.RouteProceed, res.Route)
	require.Len(t, res.Rewards.Referral, 1)
	assert.True(t, res.Rewards.Referral[0].Awarded)
	assert.EqualValues(t, 1, f.count(t, f.admin.ID, entity.KindQuestReward))

	// Active is never downgraded, and a confirmed member is not re-checked.
	calls := f.payments.calls
	f.payments.status["cs_paid"] = payment.StatusNotPaid
	res, err = f.resolver.Resolve(ctx, VerifyInput{UserID: in.UserID, Email: in.Email})
	require.NoError(t, err)
	assert.Equal(t, entity.StateActive, res.Profile.SubscriptionState)
	assert.Equal(t, calls, f.payments.calls)
	assert.EqualValues(t, 1, f.count(t, f.admin.ID, entity.KindQuestReward))
}

func TestPaymentLookupFailureDegradesToNotPaid(t *testing.T) {
	f := newMembershipFixture(t)
	f.payments.err = errors.New("stripe unreachable")

	in := newIdentity()
	in.InviteCode = f.issue(t, inviteDto.IssueInviteRequest{})
	in.PaymentReference = "cs_whatever"

	res, err := f.resolver.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, entity.StateFreeTier, res.Profile.SubscriptionState)
	assert.Equal(t, membershipDto.RoutePayment, res.Route)
	assert.Equal(t, 1, f.payments.calls)

	member, err := f.members.FindByID(context.Background(), in.UserID)
	require.NoError(t, err)
	require.NotNil(t, member.PaymentReference)
	assert.Equal(t, "cs_whatever", *member.PaymentReference)
}

func TestActiveMemberCannotRedeemAnotherInvite(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()
	f.payments.status["cs_paid"] = payment.StatusPaid

	in := newIdentity()
	in.InviteCode = f.issue(t, inviteDto.IssueInviteRequest{})
	in.PaymentReference = "cs_paid"

	res, err := f.resolver.Resolve(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, entity.StateActive, res.Profile.SubscriptionState)

	// Replaying the code they joined with is fine.
	res, err = f.resolver.Resolve(ctx, in)
	require.NoError(t, err)
	assert.True(t, res.Invite.Replayed)

	other := f.issue(t, inviteDto.IssueInviteRequest{})
	_, err = f.resolver.Resolve(ctx, VerifyInput{UserID: in.UserID, Email: in.Email, InviteCode: other})
	require.ErrorIs(t, err, ErrAlreadyMember)

	validation, err := f.invites.Validate(ctx, other)
	require.NoError(t, err)
	assert.True(t, validation.Valid)
}

func TestConcurrentFirstSignIn(t *testing.T) {
	f := newMembershipFixture(t)

	in := newIdentity()
	in.InviteCode = f.issue(t, inviteDto.IssueInviteRequest{Tier: entity.TierFreePartner})

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.resolver.Resolve(context.Background(), in)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var members int64
	require.NoError(t, f.db.Model(&entity.Member{}).Where("id = ?", in.UserID).Count(&members).Error)
	assert.EqualValues(t, 1, members)
	assert.EqualValues(t, 1, f.count(t, in.UserID, entity.KindWelcomeBonus))
	assert.EqualValues(t, 1, f.count(t, in.UserID, entity.KindLoginBonus))
	assert.EqualValues(t, 1, f.count(t, f.admin.ID, entity.KindInviteBonus))
	assert.Equal(t, 110, f.balance(t, in.UserID))
}

func TestSevenDaysOfSignInsEarnStreakBonus(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	in := newIdentity()
	in.InviteCode = f.issue(t, inviteDto.IssueInviteRequest{Tier: entity.TierFreeCommunity})

	var last *membershipDto.VerifyResponse
	for d := 0; d < 7; d++ {
		f.at(start.AddDate(0, 0, d))
		res, err := f.resolver.Resolve(ctx, VerifyInput{UserID: in.UserID, Email: in.Email, InviteCode: in.InviteCode})
		require.NoError(t, err)
		last = res
	}

	assert.Equal(t, 7, last.Rewards.Login.Streak)
	require.Len(t, last.Rewards.Login.Milestones, 1)
	assert.Equal(t, "7-day:2026-06-07", last.Rewards.Login.Milestones[0].Key)
	assert.True(t, last.Rewards.Login.Milestones[0].Granted)
	assert.Equal(t, 100+7*10+50, f.balance(t, in.UserID))
}

func TestAdminAlwaysActive(t *testing.T) {
	f := newMembershipFixture(t)

	require.NoError(t, f.members.SetSubscriptionState(context.Background(), f.admin.ID, entity.StatePending))

	res, err := f.resolver.Resolve(context.Background(), VerifyInput{UserID: f.admin.ID, Email: f.admin.Email})
	require.NoError(t, err)
	assert.Equal(t, entity.StateActive, res.Profile.SubscriptionState)
	assert.Equal(t, membershipDto.RouteProceed, res.Route)
	assert.Zero(t, f.payments.calls)
}

func TestResolveRejectsTakenEmail(t *testing.T) {
	f := newMembershipFixture(t)

	_, err := f.resolver.Resolve(context.Background(), VerifyInput{
		UserID:     uuid.New(),
		Email:      f.admin.Email,
		InviteCode: f.issue(t, inviteDto.IssueInviteRequest{Mode: entity.InviteModeReusable, Cap: 2}),
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLaterInviteCreditsItsOwnInviter(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()

	first := testutil.CreateMember(t, f.db)
	paidInvite, err := f.invites.Issue(ctx, first.ID, inviteDto.IssueInviteRequest{})
	require.NoError(t, err)

	second := testutil.CreateMember(t, f.db)
	freeInvite, err := f.invites.Issue(ctx, second.ID, inviteDto.IssueInviteRequest{})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&entity.Invite{}).Where("id = ?", freeInvite.ID).
		Update("membership_tier", entity.TierFreeCommunity).Error)

	in := newIdentity()
	in.InviteCode = paidInvite.Code
	res, err := f.resolver.Resolve(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, entity.StateFreeTier, res.Profile.SubscriptionState)
	assert.Equal(t, membershipDto.RoutePayment, res.Route)

	// Never paid; joins the community tier with someone else's code instead.
	res, err = f.resolver.Resolve(ctx, VerifyInput{UserID: in.UserID, Email: in.Email, InviteCode: freeInvite.Code})
	require.NoError(t, err)
	assert.False(t, res.Invite.Replayed)
	assert.Equal(t, entity.TierFreeCommunity, res.Profile.MembershipTier)
	assert.Equal(t, entity.StateFree, res.Profile.SubscriptionState)
	assert.Equal(t, membershipDto.RouteProceed, res.Route)
	require.NotNil(t, res.Profile.InvitedBy)
	assert.Equal(t, second.ID, *res.Profile.InvitedBy)
	require.NotNil(t, res.Rewards.InviteBonus)
	assert.True(t, res.Rewards.InviteBonus.Granted)
	require.Len(t, res.Rewards.Referral, 1)
	assert.True(t, res.Rewards.Referral[0].Awarded)

	// Plain sign-ins afterwards keep crediting nobody twice.
	_, err = f.resolver.Resolve(ctx, VerifyInput{UserID: in.UserID, Email: in.Email})
	require.NoError(t, err)

	assert.EqualValues(t, 1, f.count(t, first.ID, entity.KindInviteBonus))
	assert.EqualValues(t, 0, f.count(t, first.ID, entity.KindQuestReward))
	assert.EqualValues(t, 1, f.count(t, second.ID, entity.KindInviteBonus))
	assert.EqualValues(t, 1, f.count(t, second.ID, entity.KindQuestReward))
}

func TestAdminFreeOverrideSurvivesSignIn(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()

	in := newIdentity()
	in.InviteCode = f.issue(t, inviteDto.IssueInviteRequest{})
	res, err := f.resolver.Resolve(ctx, in)
	require.NoError(t, err)
	require.Equal(t, entity.StateFreeTier, res.Profile.SubscriptionState)

	_, err = f.profiles.SetSubscriptionState(ctx, in.UserID, entity.StateFree)
	require.NoError(t, err)

	res, err = f.resolver.Resolve(ctx, VerifyInput{UserID: in.UserID, Email: in.Email})
	require.NoError(t, err)
	assert.Equal(t, entity.StateFree, res.Profile.SubscriptionState)
	assert.Equal(t, entity.TierStandard, res.Profile.MembershipTier)
	assert.Equal(t, membershipDto.RouteProceed, res.Route)

	// Replaying the original code does not reapply its tier either.
	res, err = f.resolver.Resolve(ctx, in)
	require.NoError(t, err)
	assert.True(t, res.Invite.Replayed)
	assert.Equal(t, entity.StateFree, res.Profile.SubscriptionState)
}

func TestDeriveState(t *testing.T) {
	cases := []struct {
		name     string
		current  entity.SubscriptionState
		redeemed bool
		role     entity.Role
		tier     entity.MembershipTier
		paid     bool
		want     entity.SubscriptionState
	}{
		{"admin", entity.StatePending, false, entity.RoleAdmin, entity.TierStandard, false, entity.StateActive},
		{"new free tier", entity.StatePending, true, entity.RoleMember, entity.TierFreeCommunity, false, entity.StateFree},
		{"new paid confirmed", entity.StatePending, true, entity.RoleMember, entity.TierStandard, true, entity.StateActive},
		{"new paid unconfirmed", entity.StatePending, true, entity.RoleMember, entity.TierStandard, false, entity.StateFreeTier},
		{"active stays", entity.StateActive, false, entity.RoleMember, entity.TierFreePartner, false, entity.StateActive},
		{"canceled stays", entity.StateCanceled, false, entity.RoleMember, entity.TierStandard, false, entity.StateCanceled},
		{"canceled pays", entity.StateCanceled, false, entity.RoleMember, entity.TierStandard, true, entity.StateActive},
		{"free tier waits", entity.StateFreeTier, false, entity.RoleMember, entity.TierStandard, false, entity.StateFreeTier},
		{"pending waits", entity.StatePending, false, entity.RoleMember, entity.TierStandard, false, entity.StateFreeTier},
		{"free override kept", entity.StateFree, false, entity.RoleMember, entity.TierStandard, false, entity.StateFree},
		{"free override pays", entity.StateFree, false, entity.RoleMember, entity.TierStandard, true, entity.StateActive},
		{"paid code redeemed from free", entity.StateFree, true, entity.RoleMember, entity.TierStandard, false, entity.StateFreeTier},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, deriveState(tc.current, tc.redeemed, tc.role, tc.tier, tc.paid))
		})
	}
}
