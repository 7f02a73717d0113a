package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"anoa.com/memberclub/internal/config"
	"anoa.com/memberclub/internal/entity"
	ledgerRepo "anoa.com/memberclub/internal/modules/ledger/repository"
	ledgerService "anoa.com/memberclub/internal/modules/ledger/service"
	"anoa.com/memberclub/internal/testutil"
	"anoa.com/memberclub/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresConcurrentGrants(t *testing.T) {
	db := testutil.NewPostgresDB(t)
	repo := ledgerRepo.NewLedgerRepository(db)
	iss := NewIssuer(repo, ledgerService.DefaultRankTable(), config.DefaultRewards(), nil, logger.Discard())
	member := testutil.CreateMember(t, db)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	const attempts = 25
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		errs  []error
		start = make(chan struct{})
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ctx := context.Background()
			_, err := iss.GrantWelcomeBonus(ctx, member.ID)
			if err == nil {
				_, err = iss.GrantDailyLoginBonus(ctx, member.ID, now)
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, errs)
	assert.EqualValues(t, 1, countEntries(t, db, member.ID, entity.KindWelcomeBonus))
	assert.EqualValues(t, 1, countEntries(t, db, member.ID, entity.KindLoginBonus))

	total, err := repo.SumPoints(context.Background(), member.ID)
	require.NoError(t, err)
	assert.Equal(t, 110, total)
}
