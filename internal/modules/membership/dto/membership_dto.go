package dto

import (
	"time"

	"anoa.com/memberclub/internal/entity"
	inviteDto "anoa.com/memberclub/internal/modules/invite/dto"
	questDto "anoa.com/memberclub/internal/modules/quest/dto"
	rewardService "anoa.com/memberclub/internal/modules/reward/service"
	commonDto "anoa.com/memberclub/pkg/dto"
	"github.com/google/uuid"
)

const (
	RouteProceed = "proceed"
	RoutePayment = "payment"
)

type VerifyRequest struct {
	InviteCode       *string `json:"invite_code" binding:"omitempty,min=4,max=20"`
	PaymentReference *string `json:"payment_reference" binding:"omitempty,max=255"`
}

type UpdateProfileRequest struct {
	DisplayName *string  `json:"display_name" binding:"omitempty,min=2,max=100"`
	HomeCountry *string  `json:"home_country" binding:"omitempty,max=100"`
	HomeCity    *string  `json:"home_city" binding:"omitempty,max=100"`
	AvatarURL   *string  `json:"avatar_url" binding:"omitempty,url,max=2048"`
	MapVisible  *bool    `json:"map_visible"`
	Latitude    *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
}

type SetSubscriptionRequest struct {
	State entity.SubscriptionState `json:"state" binding:"required,oneof=pending free_tier free active inactive canceled"`
}

type MemberListQuery struct {
	Q     string `form:"q" binding:"omitempty,max=100"`
	State string `form:"state" binding:"omitempty,oneof=pending free_tier free active inactive canceled"`
	Page  int    `form:"page" binding:"omitempty,min=1"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

type ProfileResponse struct {
	ID                uuid.UUID                `json:"id"`
	Email             string                   `json:"email"`
	DisplayName       string                   `json:"display_name"`
	MembershipTier    entity.MembershipTier    `json:"membership_tier"`
	SubscriptionState entity.SubscriptionState `json:"subscription_state"`
	Role              entity.Role              `json:"role"`
	InvitedBy         *uuid.UUID               `json:"invited_by,omitempty"`
	MembershipSerial  string                   `json:"membership_serial"`
	HomeCountry       *string                  `json:"home_country,omitempty"`
	HomeCity          *string                  `json:"home_city,omitempty"`
	AvatarURL         *string                  `json:"avatar_url,omitempty"`
	MapVisible        bool                     `json:"map_visible"`
	Latitude          *float64                 `json:"latitude,omitempty"`
	Longitude         *float64                 `json:"longitude,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`

	GamificationStatus *commonDto.GamificationStatus `json:"gamification_status,omitempty"`
}

// ResolveRewards summarises the grants attempted while resolving a member.
type ResolveRewards struct {
	Welcome     rewardService.GrantResult   `json:"welcome"`
	Login       *rewardService.LoginResult  `json:"login"`
	InviteBonus *rewardService.GrantResult  `json:"invite_bonus,omitempty"`
	Quests      []questDto.EvaluationResult `json:"quests"`
	Referral    []questDto.EvaluationResult `json:"referral,omitempty"`
}

type VerifyResponse struct {
	Profile ProfileResponse             `json:"profile"`
	Route   string                      `json:"route"`
	Created bool                        `json:"created"`
	Invite  *inviteDto.RedemptionResult `json:"invite,omitempty"`
	Rewards ResolveRewards              `json:"rewards"`
}

type UpdateProfileResponse struct {
	Profile ProfileResponse             `json:"profile"`
	Quests  []questDto.EvaluationResult `json:"quests"`
}

type MemberListResponse struct {
	Data []ProfileResponse        `json:"data"`
	Meta commonDto.PaginationMeta `json:"meta"`
}

func ToProfileResponse(m *entity.Member) ProfileResponse {
	return ProfileResponse{
		ID:                m.ID,
		Email:             m.Email,
		DisplayName:       m.DisplayName,
		MembershipTier:    m.MembershipTier,
		SubscriptionState: m.SubscriptionState,
		Role:              m.Role,
		InvitedBy:         m.InvitedBy,
		MembershipSerial:  m.MembershipSerial,
		HomeCountry:       m.HomeCountry,
		HomeCity:          m.HomeCity,
		AvatarURL:         m.AvatarURL,
		MapVisible:        m.MapVisible,
		Latitude:          m.Latitude,
		Longitude:         m.Longitude,
		CreatedAt:         m.CreatedAt,
	}
}
