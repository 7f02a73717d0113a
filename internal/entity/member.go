package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MembershipTier string

const (
	TierStandard      MembershipTier = "standard"
	TierFreeCommunity MembershipTier = "free_community"
	TierFreePartner   MembershipTier = "free_partner"
)

// IsFree reports whether members on this tier never go through checkout.
func (t MembershipTier) IsFree() bool {
	return t == TierFreeCommunity || t == TierFreePartner
}

func (t MembershipTier) Valid() bool {
	return t == TierStandard || t.IsFree()
}

type SubscriptionState string

const (
	StatePending  SubscriptionState = "pending"
	StateFreeTier SubscriptionState = "free_tier" // paid tier, checkout not confirmed yet
	StateFree     SubscriptionState = "free"
	StateActive   SubscriptionState = "active"
	StateInactive SubscriptionState = "inactive"
	StateCanceled SubscriptionState = "canceled"
)

func (s SubscriptionState) Valid() bool {
	switch s {
	case StatePending, StateFreeTier, StateFree, StateActive, StateInactive, StateCanceled:
		return true
	}
	return false
}

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Member is the profile created on the first successful identity verification.
// ID is the identity provider's subject, so it is assigned by the caller.
type Member struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Email             string            `gorm:"size:255;uniqueIndex;not null" json:"email"`
	DisplayName       string            `gorm:"size:100;not null" json:"display_name"`
	MembershipTier    MembershipTier    `gorm:"size:30;not null;default:standard" json:"membership_tier"`
	SubscriptionState SubscriptionState `gorm:"size:20;not null;default:pending;index" json:"subscription_state"`
	Role              Role              `gorm:"size:20;not null;default:member" json:"role"`
	InvitedBy         *uuid.UUID        `gorm:"type:uuid;index" json:"invited_by,omitempty"`
	MembershipSerial  string            `gorm:"size:20;uniqueIndex;not null" json:"membership_serial"`
	PaymentReference  *string           `gorm:"size:255" json:"-"`

	HomeCountry *string  `gorm:"size:100" json:"home_country,omitempty"`
	HomeCity    *string  `gorm:"size:100" json:"home_city,omitempty"`
	AvatarURL   *string  `gorm:"type:text" json:"avatar_url,omitempty"`
	MapVisible  bool     `gorm:"not null;default:false" json:"map_visible"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m *Member) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID, err = uuid.NewV7()
	}
	return
}

func (m *Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}
