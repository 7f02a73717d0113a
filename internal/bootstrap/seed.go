package bootstrap

import (
	"errors"

	"anoa.com/memberclub/internal/entity"
	"anoa.com/memberclub/pkg/codegen"
	"anoa.com/memberclub/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Order matters: tables with foreign keys come after the rows they reference.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.Member{},
		&entity.LedgerEntry{},
		&entity.MemberStats{},
		&entity.Invite{},
		&entity.InviteRedemption{},
		&entity.QuestDefinition{},
		&entity.QuestCompletion{},
		&entity.Notification{},
	)
}

// DefaultQuests are the system-evaluated quests every installation starts with.
func DefaultQuests() []entity.QuestDefinition {
	return []entity.QuestDefinition{
		{
			Slug:           "complete-your-profile",
			Title:          "Complete your profile",
			Description:    "Add your display name, home country, home city and an avatar.",
			PointsReward:   50,
			EvaluationMode: entity.QuestAutomatic,
			EvaluationKey:  stringPtr(entity.EvaluateProfileComplete),
			Active:         true,
		},
		{
			Slug:           "show-up-on-the-map",
			Title:          "Show up on the member map",
			Description:    "Turn on map visibility and set your location.",
			PointsReward:   30,
			EvaluationMode: entity.QuestAutomatic,
			EvaluationKey:  stringPtr(entity.EvaluateMapVisible),
			Active:         true,
		},
		{
			Slug:           "refer-a-member",
			Title:          "Bring a friend",
			Description:    "Someone joined with your invite code.",
			PointsReward:   100,
			EvaluationMode: entity.QuestAutomatic,
			EvaluationKey:  stringPtr(entity.EvaluateReferral),
			Repeatable:     true,
			Active:         true,
		},
	}
}

// SeedQuests inserts the default quests that are missing. Existing rows, including
// admin edits to them, are left alone.
func SeedQuests(db *gorm.DB) error {
	for _, quest := range DefaultQuests() {
		quest := quest
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoNothing: true,
		}).Create(&quest).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedAdminMember creates a development admin. Identity is external, so the printed
// id is what a locally minted token must carry as its subject.
func SeedAdminMember(db *gorm.DB, log *logger.Logger) error {
	const email = "admin@memberclub.local"

	var existing entity.Member
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		log.WithField("member_id", existing.ID.String()).Info("Admin member already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	serial, err := codegen.MembershipSerial()
	if err != nil {
		return err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	admin := entity.Member{
		ID:                id,
		Email:             email,
		DisplayName:       "Administrator",
		MembershipTier:    entity.TierStandard,
		SubscriptionState: entity.StateActive,
		Role:              entity.RoleAdmin,
		MembershipSerial:  serial,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.WithFields(map[string]interface{}{
		"member_id": admin.ID.String(),
		"email":     email,
	}).Info("✅ Admin member seeded")
	return nil
}

func stringPtr(s string) *string {
	return &s
}
