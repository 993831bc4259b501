package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chirper/internal/domain"
	"chirper/internal/service"
)

// Mock repositories for the inbox failure paths.
type MockConversationRepo struct {
	mock.Mock
}

func (m *MockConversationRepo) Create(ctx context.Context, c *domain.Conversation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepo) GetByKey(ctx context.Context, key string) (*domain.Conversation, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepo) FindByExactMembers(ctx context.Context, memberIDs []int64) (*domain.Conversation, error) {
	return nil, nil // Not used in inbox tests
}

func (m *MockConversationRepo) AddMembers(ctx context.Context, conversationID int64, memberIDs []int64) error {
	return nil
}

func (m *MockConversationRepo) AppendAccepted(ctx context.Context, conversationID, userID int64) error {
	return nil
}

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	return nil // Not used in inbox tests
}

func (m *MockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return nil, nil
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return nil, nil
}

func (m *MockUserRepo) ListByIDs(ctx context.Context, ids []int64) ([]*domain.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepo) List(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	return nil, nil
}

func TestUserInbox(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	direct, err := env.convSvc.CreateOneOnOne(ctx, env.alice.ID, env.bob.ID)
	require.NoError(t, err)
	group, err := env.convSvc.CreateGroup(ctx, env.alice.ID, []int64{env.bob.ID, env.carol.ID})
	require.NoError(t, err)

	msg, err := env.msgSvc.Append(ctx, direct.ID, env.alice.ID, "hi")
	require.NoError(t, err)

	entries, err := env.inboxSvc.UserInbox(ctx, env.bob.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byID := map[int64]*domain.InboxEntry{}
	for _, e := range entries {
		byID[e.Conversation.ID] = e
	}

	directEntry := byID[direct.ID]
	require.NotNil(t, directEntry)
	assert.True(t, directEntry.Unread, "unread activity must be flagged")
	assert.Nil(t, directEntry.LastReadMessageID)
	assert.Len(t, directEntry.Members, 2)

	groupEntry := byID[group.ID]
	require.NotNil(t, groupEntry)
	assert.False(t, groupEntry.Unread, "a conversation with no messages has nothing unread")
	assert.Len(t, groupEntry.Members, 3)

	// Reading up to the latest message clears the flag.
	_, err = env.readSvc.ReadConversation(ctx, direct.ID, env.bob.ID, msg.ID)
	require.NoError(t, err)

	entries, err = env.inboxSvc.UserInbox(ctx, env.bob.ID)
	require.NoError(t, err)
	for _, e := range entries {
		if e.Conversation.ID == direct.ID {
			assert.False(t, e.Unread)
			require.NotNil(t, e.LastReadMessageID)
			assert.Equal(t, msg.ID, *e.LastReadMessageID)
		}
	}

	// carol sees only the group.
	entries, err = env.inboxSvc.UserInbox(ctx, env.carol.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, group.ID, entries[0].Conversation.ID)
}

// A conversation whose members fail to resolve is skipped, not fatal.
func TestUserInboxSkipsFailingConversations(t *testing.T) {
	convRepo := new(MockConversationRepo)
	userRepo := new(MockUserRepo)
	svc := service.NewInboxService(convRepo, userRepo, nil)

	good := &domain.Conversation{
		ID:              1,
		ConversationKey: "1-2",
		Type:            domain.ConversationOneOnOne,
		Members:         []int64{1, 2},
	}
	bad := &domain.Conversation{
		ID:              2,
		ConversationKey: "1-3",
		Type:            domain.ConversationOneOnOne,
		Members:         []int64{1, 3},
	}

	convRepo.On("ListForUser", mock.Anything, int64(1)).
		Return([]*domain.Conversation{good, bad}, nil)
	userRepo.On("ListByIDs", mock.Anything, []int64{1, 2}).
		Return([]*domain.User{{ID: 1}, {ID: 2}}, nil)
	userRepo.On("ListByIDs", mock.Anything, []int64{1, 3}).
		Return(nil, errors.New("store unavailable"))

	entries, err := svc.UserInbox(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, good.ID, entries[0].Conversation.ID)
}

func TestUserInboxListFailure(t *testing.T) {
	convRepo := new(MockConversationRepo)
	userRepo := new(MockUserRepo)
	svc := service.NewInboxService(convRepo, userRepo, nil)

	convRepo.On("ListForUser", mock.Anything, int64(1)).
		Return(nil, errors.New("store unavailable"))

	_, err := svc.UserInbox(context.Background(), 1)
	assert.Error(t, err)
}
