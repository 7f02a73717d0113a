package service

import (
	"context"
	"testing"

	"anoa.com/memberclub/internal/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDocument(t *testing.T) {
	lat, lng := -6.2, 106.8
	city := "Jakarta"
	member := &entity.Member{
		ID:               uuid.New(),
		DisplayName:      "<b>Budi</b>",
		MembershipSerial: "MC-ABCDEFGH",
		HomeCity:         &city,
		MapVisible:       true,
		Latitude:         &lat,
		Longitude:        &lng,
	}

	doc := ToDocument(member)
	assert.Equal(t, member.ID.String(), doc.ID)
	assert.Equal(t, "Budi", doc.DisplayName)
	assert.Equal(t, "Jakarta", doc.HomeCity)
	assert.Empty(t, doc.HomeCountry)
	assert.Equal(t, &lat, doc.Latitude)
	assert.True(t, Indexable(member))

	member.Longitude = nil
	assert.False(t, Indexable(member))
}

func TestDisabledIndex(t *testing.T) {
	var index MemberIndex = Disabled{}
	ctx := context.Background()

	require.NoError(t, index.IndexMember(ctx, &entity.Member{ID: uuid.New(), MapVisible: true}))
	require.NoError(t, index.RemoveMember(ctx, uuid.New()))

	hits, err := index.Search(ctx, "anyone", 10)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}
