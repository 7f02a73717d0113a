package dto

import (
	"time"

	"anoa.com/memberclub/internal/entity"
	commonDto "anoa.com/memberclub/pkg/dto"
	"github.com/google/uuid"
)

type IssueInviteRequest struct {
	Mode               entity.InviteMode     `json:"mode" binding:"omitempty,oneof=single_use reusable"`
	Tier               entity.MembershipTier `json:"tier" binding:"omitempty,oneof=standard free_community free_partner"`
	Cap                int                   `json:"cap" binding:"omitempty,min=1,max=10000"`
	PrefillDisplayName *string               `json:"prefill_display_name" binding:"omitempty,max=100"`
	PrefillHomeCountry *string               `json:"prefill_home_country" binding:"omitempty,max=100"`
	PrefillHomeCity    *string               `json:"prefill_home_city" binding:"omitempty,max=100"`
	ExpiresInDays      int                   `json:"expires_in_days" binding:"omitempty,min=1,max=365"`
}

type RedeemInviteRequest struct {
	Code string `json:"code" binding:"required,min=4,max=20"`
}

type Prefill struct {
	DisplayName *string `json:"display_name,omitempty"`
	HomeCountry *string `json:"home_country,omitempty"`
	HomeCity    *string `json:"home_city,omitempty"`
}

func (p Prefill) Empty() bool {
	return p.DisplayName == nil && p.HomeCountry == nil && p.HomeCity == nil
}

type ValidationResponse struct {
	Valid     bool                  `json:"valid"`
	Tier      entity.MembershipTier `json:"tier"`
	Mode      entity.InviteMode     `json:"mode"`
	Remaining *int                  `json:"remaining,omitempty"`
	Prefill   Prefill               `json:"prefill"`
}

// RedemptionResult is what the registry hands back to its caller. Replayed is true
// when the same member had already redeemed this code.
type RedemptionResult struct {
	InviteID  uuid.UUID             `json:"invite_id"`
	Code      string                `json:"code"`
	Mode      entity.InviteMode     `json:"mode"`
	Tier      entity.MembershipTier `json:"tier"`
	InviterID uuid.UUID             `json:"inviter_id"`
	Prefill   Prefill               `json:"prefill"`
	Replayed  bool                  `json:"replayed"`
}

type InviteResponse struct {
	ID        uuid.UUID             `json:"id"`
	Code      string                `json:"code"`
	IssuedBy  uuid.UUID             `json:"issued_by"`
	Tier      entity.MembershipTier `json:"tier"`
	Mode      entity.InviteMode     `json:"mode"`
	Used      *bool                 `json:"used,omitempty"`
	UsedBy    *uuid.UUID            `json:"used_by,omitempty"`
	UsedAt    *time.Time            `json:"used_at,omitempty"`
	UseCount  *int                  `json:"use_count,omitempty"`
	UseCap    *int                  `json:"use_cap,omitempty"`
	Prefill   Prefill               `json:"prefill"`
	ExpiresAt *time.Time            `json:"expires_at,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

type InviteListResponse struct {
	Data []InviteResponse         `json:"data"`
	Meta commonDto.PaginationMeta `json:"meta"`
}

func PrefillOf(invite *entity.Invite) Prefill {
	return Prefill{
		DisplayName: invite.PrefillDisplayName,
		HomeCountry: invite.PrefillHomeCountry,
		HomeCity:    invite.PrefillHomeCity,
	}
}

func ToInviteResponse(invite *entity.Invite) InviteResponse {
	resp := InviteResponse{
		ID:        invite.ID,
		Code:      invite.Code,
		IssuedBy:  invite.IssuedBy,
		Tier:      invite.MembershipTier,
		Mode:      invite.Mode,
		Prefill:   PrefillOf(invite),
		ExpiresAt: invite.ExpiresAt,
		CreatedAt: invite.CreatedAt,
	}

	switch v := invite.Variant().(type) {
	case entity.SingleUseInvite:
		used := !v.Available()
		resp.Used = &used
		resp.UsedBy = v.UsedBy
		resp.UsedAt = v.UsedAt
	case entity.ReusableInvite:
		count, limit := v.UseCount, v.UseCap
		resp.UseCount = &count
		resp.UseCap = &limit
	}
	return resp
}
