// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"anoa.com/memberclub/internal/bootstrap"
	"anoa.com/memberclub/internal/entity"
	"anoa.com/memberclub/pkg/codegen"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens a per-test in-memory SQLite database with the full schema. A single
// connection serialises concurrent tests through one writer; uniqueness constraints
// are still what decides the races.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, bootstrap.Migrate(db))
	return db
}

// CreateMember inserts a member with sensible defaults; mutate tweaks it first.
func CreateMember(t *testing.T, db *gorm.DB, mutate ...func(*entity.Member)) *entity.Member {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)
	serial, err := codegen.MembershipSerial()
	require.NoError(t, err)

	member := &entity.Member{
		ID:                id,
		Email:             id.String() + "@example.com",
		DisplayName:       "Member " + id.String()[:8],
		MembershipTier:    entity.TierStandard,
		SubscriptionState: entity.StateActive,
		Role:              entity.RoleMember,
		MembershipSerial:  serial,
	}
	for _, fn := range mutate {
		fn(member)
	}

	require.NoError(t, db.Create(member).Error)
	return member
}

// SeedQuests installs the default quests and returns them by evaluation key.
func SeedQuests(t *testing.T, db *gorm.DB) map[string]entity.QuestDefinition {
	t.Helper()
	require.NoError(t, bootstrap.SeedQuests(db))

	var quests []entity.QuestDefinition
	require.NoError(t, db.Find(&quests).Error)

	byKey := make(map[string]entity.QuestDefinition, len(quests))
	for _, q := range quests {
		if q.EvaluationKey != nil {
			byKey[*q.EvaluationKey] = q
		}
	}
	return byKey
}

func Ptr[T any](v T) *T {
	return &v
}
