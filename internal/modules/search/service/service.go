package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"anoa.com/memberclub/internal/entity"
	"anoa.com/memberclub/pkg/logger"
	"anoa.com/memberclub/pkg/sanitize"
	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
)

const membersIndex = "members"

// MemberDocument is what the member directory stores and returns. Only members who
// opted into the map are indexed.
type MemberDocument struct {
	ID               string   `json:"id"`
	DisplayName      string   `json:"display_name"`
	MembershipSerial string   `json:"membership_serial"`
	HomeCountry      string   `json:"home_country"`
	HomeCity         string   `json:"home_city"`
	AvatarURL        string   `json:"avatar_url"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
}

type MemberIndex interface {
	// IndexMember adds a map-visible member and removes everyone else.
	IndexMember(ctx context.Context, member *entity.Member) error
	RemoveMember(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string, limit int) ([]MemberDocument, error)
}

type meiliMemberIndex struct {
	client meilisearch.ServiceManager
	log    *logger.Logger
}

func NewMemberIndex(client meilisearch.ServiceManager, log *logger.Logger) MemberIndex {
	s := &meiliMemberIndex{
		client: client,
		log:    log,
	}
	s.initIndex()
	return s
}

func (s *meiliMemberIndex) initIndex() {
	filterable := []any{"home_country", "home_city"}
	if _, err := s.client.Index(membersIndex).UpdateFilterableAttributes(&filterable); err != nil {
		s.log.WithError(err).Warn("Failed to update members filterable attributes")
	}

	searchable := []string{"display_name", "home_city", "home_country", "membership_serial"}
	if _, err := s.client.Index(membersIndex).UpdateSearchableAttributes(&searchable); err != nil {
		s.log.WithError(err).Warn("Failed to update members searchable attributes")
	}

	s.log.Info("Meilisearch members index initialized")
}

func ToDocument(member *entity.Member) MemberDocument {
	return MemberDocument{
		ID:               member.ID.String(),
		DisplayName:      sanitize.Text(member.DisplayName),
		MembershipSerial: member.MembershipSerial,
		HomeCountry:      stringOrEmpty(member.HomeCountry),
		HomeCity:         stringOrEmpty(member.HomeCity),
		AvatarURL:        stringOrEmpty(member.AvatarURL),
		Latitude:         member.Latitude,
		Longitude:        member.Longitude,
	}
}

// Indexable mirrors the map-visible quest predicate: opted in and located.
func Indexable(member *entity.Member) bool {
	return member.MapVisible && member.Latitude != nil && member.Longitude != nil
}

func (s *meiliMemberIndex) IndexMember(ctx context.Context, member *entity.Member) error {
	if !Indexable(member) {
		return s.RemoveMember(ctx, member.ID)
	}

	primaryKey := "id"
	task, err := s.client.Index(membersIndex).AddDocuments([]MemberDocument{ToDocument(member)}, &primaryKey)
	if err != nil {
		return fmt.Errorf("index member: %w", err)
	}
	s.log.WithUserID(member.ID).WithField("task_uid", task.TaskUID).Debug("member indexed")
	return nil
}

func (s *meiliMemberIndex) RemoveMember(ctx context.Context, id uuid.UUID) error {
	if _, err := s.client.Index(membersIndex).DeleteDocument(id.String()); err != nil {
		return fmt.Errorf("remove member from index: %w", err)
	}
	return nil
}

type searchPayload struct {
	Hits []MemberDocument `json:"hits"`
}

func (s *meiliMemberIndex) Search(ctx context.Context, query string, limit int) ([]MemberDocument, error) {
	raw, err := s.client.Index(membersIndex).SearchRaw(strings.TrimSpace(query), &meilisearch.SearchRequest{
		Limit: int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("search members: %w", err)
	}

	var payload searchPayload
	if raw != nil {
		if err := json.Unmarshal(*raw, &payload); err != nil {
			return nil, fmt.Errorf("decode member search: %w", err)
		}
	}
	if payload.Hits == nil {
		payload.Hits = []MemberDocument{}
	}
	return payload.Hits, nil
}

// Disabled is used when MEILISEARCH_HOST is not configured. Indexing is a no-op and
// searches come back empty.
type Disabled struct{}

func (Disabled) IndexMember(ctx context.Context, member *entity.Member) error { return nil }
func (Disabled) RemoveMember(ctx context.Context, id uuid.UUID) error         { return nil }
func (Disabled) Search(ctx context.Context, query string, limit int) ([]MemberDocument, error) {
	return []MemberDocument{}, nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
