package repository

import (
	"context"
	"strings"

	"anoa.com/memberclub/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MemberFilter struct {
	Query  string
	State  *entity.SubscriptionState
	Limit  int
	Offset int
}

type MemberRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Member, error)
	FindByEmail(ctx context.Context, email string) (*entity.Member, error)
	Create(ctx context.Context, member *entity.Member) error
	Update(ctx context.Context, member *entity.Member) error
	SetSubscriptionState(ctx context.Context, id uuid.UUID, state entity.SubscriptionState) error
	List(ctx context.Context, filter MemberFilter) ([]entity.Member, int64, error)
}

type memberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Member, error) {
	var member entity.Member
	if err := r.db.WithContext(ctx).First(&member, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepository) FindByEmail(ctx context.Context, email string) (*entity.Member, error) {
	var member entity.Member
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepository) Create(ctx context.Context, member *entity.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *memberRepository) Update(ctx context.Context, member *entity.Member) error {
	return r.db.WithContext(ctx).Save(member).Error
}

func (r *memberRepository) SetSubscriptionState(ctx context.Context, id uuid.UUID, state entity.SubscriptionState) error {
	result := r.db.WithContext(ctx).Model(&entity.Member{}).
		Where("id = ?", id).
		Update("subscription_state", state)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *memberRepository) List(ctx context.Context, filter MemberFilter) ([]entity.Member, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Member{})
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(display_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(membership_serial) LIKE ?", like, like, like)
	}
	if filter.State != nil {
		query = query.Where("subscription_state = ?", *filter.State)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var members []entity.Member
	err := query.Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&members).Error
	return members, total, err
}
