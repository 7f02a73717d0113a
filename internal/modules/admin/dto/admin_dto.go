package dto

import (
	"anoa.com/memberclub/internal/entity"
	ledgerDto "anoa.com/memberclub/internal/modules/ledger/dto"
	membershipDto "anoa.com/memberclub/internal/modules/membership/dto"
)

type AwardPointsRequest struct {
	Points int    `json:"points" binding:"required,min=1,max=1000000"`
	Memo   string `json:"memo" binding:"required,max=500"`
}

// AdjustPointsRequest may carry a negative delta; zero is rejected by required.
type AdjustPointsRequest struct {
	Points int    `json:"points" binding:"required,min=-1000000,max=1000000"`
	Memo   string `json:"memo" binding:"required,max=500"`
}

type SetBalanceRequest struct {
	Balance *int   `json:"balance" binding:"required,min=-1000000,max=10000000"`
	Memo    string `json:"memo" binding:"omitempty,max=500"`
}

type SetRankRequest struct {
	Rank string `json:"rank" binding:"required,max=50"`
	Memo string `json:"memo" binding:"omitempty,max=500"`
}

// LedgerActionResponse pairs the appended entry with the member's refreshed standing.
type LedgerActionResponse struct {
	Entry   ledgerDto.LedgerEntryResponse  `json:"entry"`
	Profile *membershipDto.ProfileResponse `json:"profile"`
}

func ToLedgerActionResponse(entry *entity.LedgerEntry, profile *membershipDto.ProfileResponse) *LedgerActionResponse {
	return &LedgerActionResponse{
		Entry:   ledgerDto.ToLedgerEntryResponse(*entry),
		Profile: profile,
	}
}
