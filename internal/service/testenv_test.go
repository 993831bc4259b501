package service_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"chirper/internal/domain"
	"chirper/internal/pubsub"
	"chirper/internal/service"
	"chirper/internal/store/sqlite"
)

// testEnv wires the services against a throwaway SQLite database, the same
// composition the router performs.
type testEnv struct {
	db  *sql.DB
	hub *pubsub.Hub

	convSvc  *service.ConversationService
	msgSvc   *service.MessageService
	readSvc  *service.ReadStateService
	inboxSvc *service.InboxService

	alice, bob, carol *domain.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))

	hub := pubsub.NewHub(0, nil)
	t.Cleanup(hub.Close)

	userRepo := sqlite.NewUserRepo(db)
	convRepo := sqlite.NewConversationRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)
	readRepo := sqlite.NewReadStateRepo(db)

	env := &testEnv{
		db:       db,
		hub:      hub,
		convSvc:  service.NewConversationService(convRepo, userRepo),
		msgSvc:   service.NewMessageService(convRepo, msgRepo, readRepo, hub, 20, 100),
		readSvc:  service.NewReadStateService(convRepo, msgRepo, readRepo),
		inboxSvc: service.NewInboxService(convRepo, userRepo, nil),
	}

	ctx := context.Background()
	for _, u := range []**domain.User{&env.alice, &env.bob, &env.carol} {
		*u = &domain.User{HashedPassword: "x"}
	}
	env.alice.Username = "alice"
	env.bob.Username = "bob"
	env.carol.Username = "carol"
	for _, u := range []*domain.User{env.alice, env.bob, env.carol} {
		require.NoError(t, userRepo.Create(ctx, u))
	}

	return env
}

func testPageInput(conversationID int64) service.QueryPageInput {
	return service.QueryPageInput{ConversationID: conversationID, Limit: 10}
}
