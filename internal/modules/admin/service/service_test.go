package service

import (
	"context"
	"testing"

	"anoa.com/memberclub/internal/config"
	"anoa.com/memberclub/internal/entity"
	adminDto "anoa.com/memberclub/internal/modules/admin/dto"
	ledgerRepo "anoa.com/memberclub/internal/modules/ledger/repository"
	ledgerService "anoa.com/memberclub/internal/modules/ledger/service"
	memberRepo "anoa.com/memberclub/internal/modules/membership/repository"
	membershipService "anoa.com/memberclub/internal/modules/membership/service"
	questRepo "anoa.com/memberclub/internal/modules/quest/repository"
	questService "anoa.com/memberclub/internal/modules/quest/service"
	rewardService "anoa.com/memberclub/internal/modules/reward/service"
	searchService "anoa.com/memberclub/internal/modules/search/service"
	"anoa.com/memberclub/internal/testutil"
	"anoa.com/memberclub/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type adminFixture struct {
	db     *gorm.DB
	ledger ledgerRepo.LedgerRepository
	svc    AdminService
	admin  *entity.Member
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	db := testutil.NewDB(t)
	log := logger.Discard()

	ledger := ledgerRepo.NewLedgerRepository(db)
	ranks := ledgerService.DefaultRankTable()
	issuer := rewardService.NewIssuer(ledger, ranks, config.DefaultRewards(), nil, log)
	evaluator := questService.NewEvaluator(questRepo.NewQuestRepository(db), issuer, log)
	profiles := membershipService.NewProfileService(memberRepo.NewMemberRepository(db),
		ledgerService.NewLedgerService(ledger, ranks, log), evaluator, searchService.Disabled{}, log)

	return &adminFixture{
		db:     db,
		ledger: ledger,
		svc:    NewAdminService(issuer, profiles, log),
		admin:  testutil.CreateMember(t, db, func(m *entity.Member) { m.Role = entity.RoleAdmin }),
	}
}

func (f *adminFixture) balance(t *testing.T, id uuid.UUID) int {
	t.Helper()
	total, err := f.ledger.SumPoints(context.Background(), id)
	require.NoError(t, err)
	return total
}

func TestAwardsAreNeverDeduplicated(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	member := testutil.CreateMember(t, f.db)

	req := adminDto.AwardPointsRequest{Points: 25, Memo: "event helper"}
	for i := 0; i < 3; i++ {
		res, err := f.svc.AwardPoints(ctx, f.admin.ID, member.ID, req)
		require.NoError(t, err)
		assert.Equal(t, entity.KindAdminAward, res.Entry.Kind)
		assert.Nil(t, res.Entry.IdempotencyKey)
	}
	assert.Equal(t, 75, f.balance(t, member.ID))

	res, err := f.svc.AdjustPoints(ctx, f.admin.ID, member.ID, adminDto.AdjustPointsRequest{Points: -100, Memo: "correction"})
	require.NoError(t, err)
	assert.Equal(t, entity.KindAdminAdjustment, res.Entry.Kind)
	assert.Equal(t, -25, f.balance(t, member.ID))
	require.NotNil(t, res.Profile.GamificationStatus)
	assert.Equal(t, "Newcomer", res.Profile.GamificationStatus.RankName)
}

func TestSetBalanceAppendsDifference(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	member := testutil.CreateMember(t, f.db)

	_, err := f.svc.AwardPoints(ctx, f.admin.ID, member.ID, adminDto.AwardPointsRequest{Points: 140, Memo: "seed"})
	require.NoError(t, err)

	res, err := f.svc.SetBalance(ctx, f.admin.ID, member.ID, adminDto.SetBalanceRequest{Balance: testutil.Ptr(500)})
	require.NoError(t, err)
	assert.Equal(t, 360, res.Entry.Points)
	assert.Equal(t, "Balance set to 500", res.Entry.Memo)
	assert.Equal(t, 500, f.balance(t, member.ID))

	res, err = f.svc.SetBalance(ctx, f.admin.ID, member.ID, adminDto.SetBalanceRequest{Balance: testutil.Ptr(0), Memo: "reset"})
	require.NoError(t, err)
	assert.Equal(t, -500, res.Entry.Points)
	assert.Equal(t, 0, f.balance(t, member.ID))
}

func TestSetRankMovesToThreshold(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	member := testutil.CreateMember(t, f.db)

	res, err := f.svc.SetRank(ctx, f.admin.ID, member.ID, adminDto.SetRankRequest{Rank: "Contributor"})
	require.NoError(t, err)
	assert.Equal(t, entity.KindRankAdjustment, res.Entry.Kind)
	assert.Equal(t, 3000, f.balance(t, member.ID))
	assert.Equal(t, "Contributor", res.Profile.GamificationStatus.RankName)

	_, err = f.svc.SetRank(ctx, f.admin.ID, member.ID, adminDto.SetRankRequest{Rank: "Emperor"})
	require.Error(t, err)
	assert.Equal(t, 3000, f.balance(t, member.ID))
}

func TestUnknownMemberWritesNothing(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	ghost := uuid.New()

	_, err := f.svc.AwardPoints(ctx, f.admin.ID, ghost, adminDto.AwardPointsRequest{Points: 10, Memo: "x"})
	require.ErrorIs(t, err, membershipService.ErrMemberNotFound)
	assert.Equal(t, 0, f.balance(t, ghost))
}
