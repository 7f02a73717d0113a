package service

import (
	"context"
	"testing"

	"anoa.com/memberclub/internal/config"
	"anoa.com/memberclub/internal/entity"
	ledgerRepo "anoa.com/memberclub/internal/modules/ledger/repository"
	ledgerService "anoa.com/memberclub/internal/modules/ledger/service"
	notifRepo "anoa.com/memberclub/internal/modules/notification/repository"
	rewardService "anoa.com/memberclub/internal/modules/reward/service"
	"anoa.com/memberclub/internal/testutil"
	"anoa.com/memberclub/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankUpNotificationFromGrant(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	notifications := NewNotificationService(notifRepo.NewNotificationRepository(db), nil, logger.Discard())
	issuer := rewardService.NewIssuer(ledgerRepo.NewLedgerRepository(db), ledgerService.DefaultRankTable(),
		config.DefaultRewards(), notifications, logger.Discard())

	member := testutil.CreateMember(t, db)

	_, err := issuer.GrantWelcomeBonus(ctx, member.ID)
	require.NoError(t, err)

	list, err := notifications.GetNotifications(ctx, member.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entity.NotificationRankUp, list[0].Type)
	assert.Contains(t, list[0].Message, "Newcomer to Member")

	// A grant that stays inside the tier is silent.
	_, err = issuer.RecordAdminAward(ctx, member.ID, 10, "thanks")
	require.NoError(t, err)

	count, err := notifications.UnreadCount(ctx, member.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestMarkAsReadIsScopedToOwner(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	svc := NewNotificationService(notifRepo.NewNotificationRepository(db), nil, logger.Discard())

	owner := testutil.CreateMember(t, db)
	other := testutil.CreateMember(t, db)

	require.NoError(t, svc.NotifyRankUp(ctx, owner.ID, "Member", "Regular", 600))
	require.NoError(t, svc.NotifyRankUp(ctx, owner.ID, "Regular", "Contributor", 3000))

	list, err := svc.GetNotifications(ctx, owner.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.ErrorIs(t, svc.MarkAsRead(ctx, other.ID, list[0].ID), ErrNotificationNotFound)
	require.ErrorIs(t, svc.MarkAsRead(ctx, owner.ID, uuid.New()), ErrNotificationNotFound)
	require.NoError(t, svc.MarkAsRead(ctx, owner.ID, list[0].ID))

	count, err := svc.UnreadCount(ctx, owner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	require.NoError(t, svc.MarkAllAsRead(ctx, owner.ID))
	count, err = svc.UnreadCount(ctx, owner.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	empty, err := svc.GetNotifications(ctx, other.ID, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
