package service

import (
	"context"
	"testing"
	"time"

	"anoa.com/memberclub/internal/entity"
	inviteDto "anoa.com/memberclub/internal/modules/invite/dto"
	inviteRepo "anoa.com/memberclub/internal/modules/invite/repository"
	"anoa.com/memberclub/internal/testutil"
	"anoa.com/memberclub/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresConcurrentRedemption(t *testing.T) {
	db := testutil.NewPostgresDB(t)
	svc := NewInviteService(inviteRepo.NewInviteRepository(db), dbMembers{db: db}, nil,
		Options{FailureLimit: 100, FailureWindow: time.Minute}, logger.Discard())
	admin := newAdmin(t, db)
	ctx := context.Background()

	single, err := svc.Issue(ctx, admin.ID, inviteDto.IssueInviteRequest{})
	require.NoError(t, err)

	successes, errs := redeemConcurrently(svc, single.Code, newRedeemers(8))
	assert.Equal(t, 1, successes)
	require.Len(t, errs, 7)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrAlreadyConsumed)
	}

	reusable, err := svc.Issue(ctx, admin.ID, inviteDto.IssueInviteRequest{Mode: entity.InviteModeReusable, Cap: 5})
	require.NoError(t, err)

	successes, errs = redeemConcurrently(svc, reusable.Code, newRedeemers(12))
	assert.Equal(t, 5, successes)
	require.Len(t, errs, 7)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrExhausted)
	}

	var stored entity.Invite
	require.NoError(t, db.First(&stored, "id = ?", reusable.ID).Error)
	assert.Equal(t, 5, stored.UseCount)
}
