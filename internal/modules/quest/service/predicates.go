package service

import (
	"strings"

	"anoa.com/memberclub/internal/entity"
)

// ProfileComplete holds once display name, home country, home city and avatar are set.
func ProfileComplete(m *entity.Member) bool {
	return strings.TrimSpace(m.DisplayName) != "" &&
		present(m.HomeCountry) &&
		present(m.HomeCity) &&
		present(m.AvatarURL)
}

// MapVisible holds when the member opted into the map and has coordinates.
func MapVisible(m *entity.Member) bool {
	return m.MapVisible && m.Latitude != nil && m.Longitude != nil
}

// ReferralEligible decides whether an invitee earns their inviter the referral quest
// now. Paid-tier invitees only count once their payment is confirmed.
func ReferralEligible(invitee *entity.Member) bool {
	return invitee.MembershipTier.IsFree() || invitee.SubscriptionState == entity.StateActive
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

const approvalOnce = "once"

// approvalKeyFor is the value that makes an approved completion unique per
// (quest, member). Repeatable manual quests get none and may be approved many times.
func approvalKeyFor(quest *entity.QuestDefinition, dedupeTag *string) *string {
	if dedupeTag != nil {
		tag := *dedupeTag
		return &tag
	}
	if quest.IsAutomatic() || !quest.Repeatable {
		once := approvalOnce
		return &once
	}
	return nil
}
