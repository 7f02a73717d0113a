package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LedgerKind string

const (
	KindWelcomeBonus     LedgerKind = "welcome_bonus"
	KindLoginBonus       LedgerKind = "login_bonus"
	KindLoginStreakBonus LedgerKind = "login_streak_bonus"
	KindInviteBonus      LedgerKind = "invite_bonus"
	KindQuestReward      LedgerKind = "quest_reward"
	KindAdminAward       LedgerKind = "admin_award"
	KindAdminAdjustment  LedgerKind = "admin_adjustment"
	KindRankAdjustment   LedgerKind = "rank_adjustment"
)

// LedgerEntry is one immutable signed point transaction. Rows are only ever inserted.
// idx_ledger_idempotency makes (user, kind, key) unique; NULL keys never collide,
// which is what admin entries rely on.
type LedgerEntry struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index:idx_ledger_idempotency,unique,priority:1;index:idx_ledger_user_created,priority:1" json:"user_id"`
	Member         *Member    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Kind           LedgerKind `gorm:"size:30;not null;index:idx_ledger_idempotency,unique,priority:2" json:"kind"`
	Points         int        `gorm:"not null" json:"points"`
	IdempotencyKey *string    `gorm:"size:100;index:idx_ledger_idempotency,unique,priority:3" json:"idempotency_key,omitempty"`
	Memo           string     `gorm:"type:text" json:"memo"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index:idx_ledger_user_created,priority:2;index:idx_ledger_created" json:"created_at"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID, err = uuid.NewV7()
	}
	return
}

// MemberStats is the leaderboard cache. It is always rebuilt from the ledger and is
// never read for balance display.
type MemberStats struct {
	UserID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Member        Member    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"member"`
	TotalPoints   int       `gorm:"not null;default:0;index" json:"total_points"`
	LastUpdatedAt time.Time `gorm:"autoUpdateTime" json:"last_updated_at"`
}
