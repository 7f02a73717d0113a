package jobs

import (
	"context"
	"errors"
	"testing"

	"anoa.com/memberclub/internal/config"
	"anoa.com/memberclub/internal/entity"
	ledgerRepo "anoa.com/memberclub/internal/modules/ledger/repository"
	ledgerService "anoa.com/memberclub/internal/modules/ledger/service"
	"anoa.com/memberclub/internal/testutil"
	"anoa.com/memberclub/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReconciler struct {
	calls int
	err   error
}

func (c *countingReconciler) Reconcile(context.Context) (int64, error) {
	c.calls++
	return 0, c.err
}

func TestRegisterValidatesSchedule(t *testing.T) {
	s := NewScheduler(logger.Discard())

	require.NoError(t, s.Register(NewReconcileJob(&countingReconciler{}, "30 3 * * *")))
	require.Error(t, s.Register(NewReconcileJob(&countingReconciler{}, "every tuesday")))
	require.NoError(t, s.Register(NewReconcileJob(&countingReconciler{}, "")))
}

func TestRunByName(t *testing.T) {
	s := NewScheduler(logger.Discard())
	rec := &countingReconciler{}
	require.NoError(t, s.Register(NewReconcileJob(rec, "")))

	require.NoError(t, s.RunByName(context.Background(), ReconcileJobName))
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, []string{ReconcileJobName}, s.Registered())

	require.Error(t, s.RunByName(context.Background(), "missing"))

	rec.err = errors.New("db down")
	require.Error(t, s.RunByName(context.Background(), ReconcileJobName))
}

func TestReconcileRepairsStatsDrift(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	log := logger.Discard()
	repo := ledgerRepo.NewLedgerRepository(db)
	member := testutil.CreateMember(t, db)

	// Entries written straight to the table bypass the stats refresh.
	for _, pts := range []int{100, 40} {
		require.NoError(t, db.Create(&entity.LedgerEntry{UserID: member.ID, Kind: entity.KindAdminAward, Points: pts, Memo: "import"}).Error)
	}

	svc := ledgerService.NewLedgerService(repo, ledgerService.DefaultRankTable(), log)
	job := NewReconcileJob(svc, config.DefaultReconcileSchedule)
	require.NoError(t, job.Run(ctx))

	board, err := svc.GetLeaderboard(ctx, 10, "all_time")
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, member.ID, board[0].Member.ID)
	assert.Equal(t, 140, board[0].GamificationStatus.CurrentPoints)
}
