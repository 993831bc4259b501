package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chirper/internal/domain"
)

func TestConversationRepoCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepo(db)
	ctx := context.Background()

	conv := &domain.Conversation{
		ConversationKey:    "1-2",
		Type:               domain.ConversationOneOnOne,
		Members:            []int64{1, 2},
		AcceptedInvitation: []int64{1},
	}
	require.NoError(t, repo.Create(ctx, conv))
	require.NotZero(t, conv.ID)

	got, err := repo.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1-2", got.ConversationKey)
	assert.Equal(t, domain.ConversationOneOnOne, got.Type)
	assert.Equal(t, []int64{1, 2}, got.Members)
	assert.Equal(t, []int64{1}, got.AcceptedInvitation)
	assert.Len(t, got.Participants, 2)
	assert.Nil(t, got.MostRecentEntryID)
	assert.Nil(t, got.OldestEntryID)

	byKey, err := repo.GetByKey(ctx, "1-2")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, conv.ID, byKey.ID)

	missing, err := repo.GetByKey(ctx, "8-9")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestConversationRepoListForUser(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepo(db)
	ctx := context.Background()

	for _, c := range []*domain.Conversation{
		{ConversationKey: "1-2", Type: domain.ConversationOneOnOne, Members: []int64{1, 2}},
		{ConversationKey: "grp", Type: domain.ConversationGroupDM, Members: []int64{1, 3, 4}},
		{ConversationKey: "3-4", Type: domain.ConversationOneOnOne, Members: []int64{3, 4}},
	} {
		require.NoError(t, repo.Create(ctx, c))
	}

	convs, err := repo.ListForUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, convs, 2)

	convs, err = repo.ListForUser(ctx, 4)
	require.NoError(t, err)
	assert.Len(t, convs, 2)

	convs, err = repo.ListForUser(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestConversationRepoFindByExactMembers(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepo(db)
	ctx := context.Background()

	conv := &domain.Conversation{
		ConversationKey: "grp",
		Type:            domain.ConversationGroupDM,
		Members:         []int64{1, 2, 3},
	}
	require.NoError(t, repo.Create(ctx, conv))

	got, err := repo.FindByExactMembers(ctx, []int64{3, 1, 2})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, conv.ID, got.ID)

	// A subset is not an exact match.
	got, err = repo.FindByExactMembers(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Nil(t, got)

	// Neither is a superset.
	got, err = repo.FindByExactMembers(ctx, []int64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestConversationRepoAddMembers(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepo(db)
	ctx := context.Background()

	conv := &domain.Conversation{
		ConversationKey: "1-2",
		Type:            domain.ConversationOneOnOne,
		Members:         []int64{1, 2},
	}
	require.NoError(t, repo.Create(ctx, conv))

	require.NoError(t, repo.AddMembers(ctx, conv.ID, []int64{3, 4}))

	got, err := repo.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, got.Members)

	// Re-adding an existing member is a no-op.
	require.NoError(t, repo.AddMembers(ctx, conv.ID, []int64{2}))
	got, err = repo.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, 4)
}

func TestConversationRepoAppendAccepted(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepo(db)
	ctx := context.Background()

	conv := &domain.Conversation{
		ConversationKey:    "1-2",
		Type:               domain.ConversationOneOnOne,
		Members:            []int64{1, 2},
		AcceptedInvitation: []int64{1},
	}
	require.NoError(t, repo.Create(ctx, conv))

	require.NoError(t, repo.AppendAccepted(ctx, conv.ID, 2))
	got, err := repo.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, got.AcceptedInvitation)

	// Accepting for a non-member hits no row.
	err = repo.AppendAccepted(ctx, conv.ID, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
