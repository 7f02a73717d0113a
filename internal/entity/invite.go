package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InviteMode string

const (
	InviteModeSingleUse InviteMode = "single_use"
	InviteModeReusable  InviteMode = "reusable"
)

// Invite is the persisted row. Mode-specific columns are only meaningful for their
// mode; use Variant to read them.
type Invite struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Code           string         `gorm:"size:20;uniqueIndex;not null" json:"code"`
	IssuedBy       uuid.UUID      `gorm:"type:uuid;not null;index" json:"issued_by"`
	MembershipTier MembershipTier `gorm:"size:30;not null" json:"membership_tier"`
	Mode           InviteMode     `gorm:"size:20;not null" json:"mode"`

	// single_use
	UsedBy *uuid.UUID `gorm:"type:uuid" json:"used_by,omitempty"`
	UsedAt *time.Time `json:"used_at,omitempty"`

	// reusable
	UseCount int `gorm:"not null;default:0;check:chk_invites_use_cap,use_count <= use_cap OR mode = 'single_use'" json:"use_count"`
	UseCap   int `gorm:"not null;default:0" json:"use_cap"`

	PrefillDisplayName *string `gorm:"size:100" json:"prefill_display_name,omitempty"`
	PrefillHomeCountry *string `gorm:"size:100" json:"prefill_home_country,omitempty"`
	PrefillHomeCity    *string `gorm:"size:100" json:"prefill_home_city,omitempty"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (i *Invite) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == uuid.Nil {
		i.ID, err = uuid.NewV7()
	}
	return
}

// InviteVariant is the mode-specific half of an invite.
type InviteVariant interface {
	Mode() InviteMode
	// Available reports whether one more redemption can succeed.
	Available() bool
}

type SingleUseInvite struct {
	UsedBy *uuid.UUID
	UsedAt *time.Time
}

func (SingleUseInvite) Mode() InviteMode  { return InviteModeSingleUse }
func (v SingleUseInvite) Available() bool { return v.UsedBy == nil }

type ReusableInvite struct {
	UseCount int
	UseCap   int
}

func (ReusableInvite) Mode() InviteMode  { return InviteModeReusable }
func (v ReusableInvite) Available() bool { return v.UseCount < v.UseCap }

func (v ReusableInvite) Remaining() int {
	if v.UseCount >= v.UseCap {
		return 0
	}
	return v.UseCap - v.UseCount
}

func (i *Invite) Variant() InviteVariant {
	if i.Mode == InviteModeReusable {
		return ReusableInvite{UseCount: i.UseCount, UseCap: i.UseCap}
	}
	return SingleUseInvite{UsedBy: i.UsedBy, UsedAt: i.UsedAt}
}

func (i *Invite) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

// InviteRedemption records who consumed an invite. One row per (invite, redeemer), so a
// replayed redemption can return the original outcome.
type InviteRedemption struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	InviteID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_invite_redeemer,unique,priority:1" json:"invite_id"`
	Invite         *Invite        `gorm:"foreignKey:InviteID;constraint:OnDelete:CASCADE" json:"-"`
	RedeemerID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_invite_redeemer,unique,priority:2;index" json:"redeemer_id"`
	InviterID      uuid.UUID      `gorm:"type:uuid;not null" json:"inviter_id"`
	MembershipTier MembershipTier `gorm:"size:30;not null" json:"membership_tier"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (r *InviteRedemption) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID, err = uuid.NewV7()
	}
	return
}
