package service

import (
	"context"
	"testing"
	"time"

	inviteDto "anoa.com/memberclub/internal/modules/invite/dto"
	inviteRepo "anoa.com/memberclub/internal/modules/invite/repository"
	"anoa.com/memberclub/internal/testutil"
	"anoa.com/memberclub/pkg/logger"
	"anoa.com/memberclub/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedeemThrottleResetsAfterSuccess(t *testing.T) {
	rdb := testutil.NewRedisClient(t)
	db := testutil.NewDB(t)
	svc := NewInviteService(inviteRepo.NewInviteRepository(db), dbMembers{db: db}, rdb,
		Options{FailureLimit: 3, FailureWindow: time.Minute}, logger.Discard())
	admin := newAdmin(t, db)
	ctx := context.Background()
	redeemer := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := svc.Redeem(ctx, "WRONG23456", redeemer)
		require.ErrorIs(t, err, ErrInvalidCode)
	}
	failures, err := ratelimit.FailureCount(ctx, rdb, redeemer, actionRedeem)
	require.NoError(t, err)
	assert.EqualValues(t, 2, failures)

	first, err := svc.Issue(ctx, admin.ID, inviteDto.IssueInviteRequest{})
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, first.Code, redeemer)
	require.NoError(t, err)

	failures, err = ratelimit.FailureCount(ctx, rdb, redeemer, actionRedeem)
	require.NoError(t, err)
	assert.Zero(t, failures)

	for i := 0; i < 3; i++ {
		_, err := svc.Redeem(ctx, "WRONG23456", redeemer)
		require.ErrorIs(t, err, ErrInvalidCode)
	}

	second, err := svc.Issue(ctx, admin.ID, inviteDto.IssueInviteRequest{})
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, second.Code, redeemer)
	require.ErrorIs(t, err, ErrTooManyAttempts)

	validation, err := svc.Validate(ctx, second.Code)
	require.NoError(t, err)
	assert.True(t, validation.Valid)
}
