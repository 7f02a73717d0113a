package repository

import (
	"context"
	"errors"
	"time"

	"anoa.com/memberclub/internal/entity"
	"anoa.com/memberclub/pkg/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotConsumed means the conditional update matched no row: the single-use code
	// was taken or the reusable code hit its cap.
	ErrNotConsumed = errors.New("invite was not consumed")
	// ErrAlreadyRedeemed means this redeemer already holds a redemption of the invite.
	ErrAlreadyRedeemed = errors.New("invite already redeemed by this member")
)

type InviteFilter struct {
	IssuedBy *uuid.UUID
	Limit    int
	Offset   int
}

type InviteRepository interface {
	Create(ctx context.Context, invite *entity.Invite) error
	FindByCode(ctx context.Context, code string) (*entity.Invite, error)
	List(ctx context.Context, filter InviteFilter) ([]entity.Invite, int64, error)
	FindRedemption(ctx context.Context, inviteID, redeemerID uuid.UUID) (*entity.InviteRedemption, error)
	// Redeem consumes one use of invite for redeemer and records the redemption, both
	// in one transaction. The consumption is a single conditional UPDATE.
	Redeem(ctx context.Context, invite *entity.Invite, redeemerID uuid.UUID, now time.Time) (*entity.InviteRedemption, error)
}

type inviteRepository struct {
	db *gorm.DB
}

func NewInviteRepository(db *gorm.DB) InviteRepository {
	return &inviteRepository{db: db}
}

func (r *inviteRepository) Create(ctx context.Context, invite *entity.Invite) error {
	return r.db.WithContext(ctx).Create(invite).Error
}

func (r *inviteRepository) FindByCode(ctx context.Context, code string) (*entity.Invite, error) {
	var invite entity.Invite
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&invite).Error; err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *inviteRepository) List(ctx context.Context, filter InviteFilter) ([]entity.Invite, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Invite{})
	if filter.IssuedBy != nil {
		query = query.Where("issued_by = ?", *filter.IssuedBy)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invites []entity.Invite
	err := query.Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&invites).Error
	return invites, total, err
}

func (r *inviteRepository) FindRedemption(ctx context.Context, inviteID, redeemerID uuid.UUID) (*entity.InviteRedemption, error) {
	var redemption entity.InviteRedemption
	err := r.db.WithContext(ctx).
		Where("invite_id = ? AND redeemer_id = ?", inviteID, redeemerID).
		First(&redemption).Error
	if err != nil {
		return nil, err
	}
	return &redemption, nil
}

func (r *inviteRepository) Redeem(ctx context.Context, invite *entity.Invite, redeemerID uuid.UUID, now time.Time) (*entity.InviteRedemption, error) {
	var redemption *entity.InviteRedemption

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var result *gorm.DB
		switch invite.Mode {
		case entity.InviteModeReusable:
			result = tx.Model(&entity.Invite{}).
				Where("id = ? AND mode = ? AND use_count < use_cap", invite.ID, entity.InviteModeReusable).
				Update("use_count", gorm.Expr("use_count + 1"))
		default:
			result = tx.Model(&entity.Invite{}).
				Where("id = ? AND mode = ? AND used_by IS NULL", invite.ID, entity.InviteModeSingleUse).
				Updates(map[string]interface{}{
					"used_by": redeemerID,
					"used_at": now,
				})
		}
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotConsumed
		}

		redemption = &entity.InviteRedemption{
			InviteID:       invite.ID,
			RedeemerID:     redeemerID,
			InviterID:      invite.IssuedBy,
			MembershipTier: invite.MembershipTier,
		}
		if err := tx.Create(redemption).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return ErrAlreadyRedeemed
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return redemption, nil
}
