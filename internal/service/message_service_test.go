package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chirper/internal/domain"
	"chirper/internal/service"
)

func TestAppendValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.convSvc.CreateOneOnOne(ctx, env.alice.ID, env.bob.ID)
	require.NoError(t, err)

	t.Run("EmptyText", func(t *testing.T) {
		_, err := env.msgSvc.Append(ctx, conv.ID, env.alice.ID, "   ")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("OversizedText", func(t *testing.T) {
		_, err := env.msgSvc.Append(ctx, conv.ID, env.alice.ID, strings.Repeat("a", 5001))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("UnknownConversation", func(t *testing.T) {
		_, err := env.msgSvc.Append(ctx, 99999, env.alice.ID, "hi")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("NonMemberSender", func(t *testing.T) {
		_, err := env.msgSvc.Append(ctx, conv.ID, env.carol.ID, "hi")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

// The concrete send scenario: a fresh message gets a new id, the
// conversation's recency pointer moves to it, and a live subscriber sees it
// without polling the store.
func TestAppendPublishesAndAdvancesPointers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.convSvc.CreateOneOnOne(ctx, env.alice.ID, env.bob.ID)
	require.NoError(t, err)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, _ := env.hub.Subscribe(subCtx, conv.ID)

	msg, err := env.msgSvc.Append(ctx, conv.ID, env.alice.ID, "hi")
	require.NoError(t, err)
	require.NotZero(t, msg.ID)
	assert.Equal(t, env.alice.ID, msg.Data.SenderID)
	require.NotNil(t, msg.Data.ReceiverID)
	assert.Equal(t, env.bob.ID, *msg.Data.ReceiverID)

	select {
	case got := <-ch:
		assert.Equal(t, msg.ID, got.ID)
		assert.Equal(t, "hi", got.Data.Text)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the published message")
	}

	after, err := env.convSvc.GetForUser(ctx, conv.ID, env.alice.ID)
	require.NoError(t, err)
	require.NotNil(t, after.MostRecentEntryID)
	assert.Equal(t, msg.ID, *after.MostRecentEntryID)
	require.NotNil(t, after.OldestEntryID)
	assert.Equal(t, msg.ID, *after.OldestEntryID)
}

// Concurrent senders on one conversation: every append lands, and the
// recency pointer ends at the highest id.
func TestAppendSerializesConcurrentSenders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.convSvc.CreateOneOnOne(ctx, env.alice.ID, env.bob.ID)
	require.NoError(t, err)

	const senders = 16
	ids := make(chan int64, senders)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, err := env.msgSvc.Append(ctx, conv.ID, env.alice.ID, "hi")
			if assert.NoError(t, err) {
				ids <- msg.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var max int64
	count := 0
	for id := range ids {
		count++
		if id > max {
			max = id
		}
	}
	require.Equal(t, senders, count)

	after, err := env.convSvc.GetForUser(ctx, conv.ID, env.alice.ID)
	require.NoError(t, err)
	require.NotNil(t, after.MostRecentEntryID)
	assert.Equal(t, max, *after.MostRecentEntryID)

	page, err := env.msgSvc.QueryPage(ctx, env.alice.ID, service.QueryPageInput{
		ConversationID: conv.ID,
		Limit:          senders,
	})
	require.NoError(t, err)
	assert.Len(t, page.Messages, senders)
}

func TestFailedAppendDoesNotPublish(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.convSvc.CreateOneOnOne(ctx, env.alice.ID, env.bob.ID)
	require.NoError(t, err)

	ch, _ := env.hub.Subscribe(ctx, conv.ID)

	_, err = env.msgSvc.Append(ctx, conv.ID, env.carol.ID, "hi")
	require.Error(t, err)

	select {
	case msg := <-ch:
		t.Fatalf("unexpected publish of message %d after failed append", msg.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

// Appending N messages and paging with size L yields ceil(N/L) pages covering
// every message exactly once, in creation order, with the last page reporting
// no next page.
func TestQueryPageCoversLogExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.convSvc.CreateOneOnOne(ctx, env.alice.ID, env.bob.ID)
	require.NoError(t, err)

	const n, l = 7, 3
	var appended []int64
	for i := 0; i < n; i++ {
		msg, err := env.msgSvc.Append(ctx, conv.ID, env.alice.ID, "msg")
		require.NoError(t, err)
		appended = append(appended, msg.ID)
	}

	var seen []int64
	var cursor *int64
	pages := 0
	for {
		page, err := env.msgSvc.QueryPage(ctx, env.alice.ID, service.QueryPageInput{
			ConversationID: conv.ID,
			CursorID:       cursor,
			Limit:          l,
		})
		require.NoError(t, err)
		pages++
		for _, m := range page.Messages {
			seen = append(seen, m.ID)
		}
		if !page.HasNextPage {
			break
		}
		last := page.Messages[len(page.Messages)-1].ID
		cursor = &last
	}

	assert.Equal(t, (n+l-1)/l, pages)
	assert.Equal(t, appended, seen)
}

func TestQueryPageLeftWatermark(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.convSvc.CreateOneOnOne(ctx, env.alice.ID, env.bob.ID)
	require.NoError(t, err)

	var ids []int64
	for i := 0; i < 4; i++ {
		msg, err := env.msgSvc.Append(ctx, conv.ID, env.alice.ID, "msg")
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	t.Run("ExplicitWatermark", func(t *testing.T) {
		page, err := env.msgSvc.QueryPage(ctx, env.bob.ID, service.QueryPageInput{
			ConversationID:  conv.ID,
			LeftAtMessageID: &ids[1],
			Limit:           10,
		})
		require.NoError(t, err)
		require.Len(t, page.Messages, 2)
		assert.Equal(t, ids[2], page.Messages[0].ID)
		assert.Equal(t, ids[3], page.Messages[1].ID)
	})

	t.Run("WatermarkTrumpsEarlierCursor", func(t *testing.T) {
		page, err := env.msgSvc.QueryPage(ctx, env.bob.ID, service.QueryPageInput{
			ConversationID:  conv.ID,
			CursorID:        &ids[0],
			LeftAtMessageID: &ids[2],
			Limit:           10,
		})
		require.NoError(t, err)
		require.Len(t, page.Messages, 1)
		assert.Equal(t, ids[3], page.Messages[0].ID)
	})

	t.Run("StoredWatermarkApplied", func(t *testing.T) {
		// bob leaves: everything up to the latest message is excluded even
		// when the request carries no watermark.
		_, err := env.readSvc.LeaveConversation(ctx, conv.ID, env.bob.ID)
		require.NoError(t, err)

		page, err := env.msgSvc.QueryPage(ctx, env.bob.ID, service.QueryPageInput{
			ConversationID: conv.ID,
			Limit:          10,
		})
		require.NoError(t, err)
		assert.Empty(t, page.Messages)
		assert.False(t, page.HasNextPage)

		// New activity after the exit is visible again.
		msg, err := env.msgSvc.Append(ctx, conv.ID, env.alice.ID, "after leave")
		require.NoError(t, err)
		page, err = env.msgSvc.QueryPage(ctx, env.bob.ID, service.QueryPageInput{
			ConversationID: conv.ID,
			Limit:          10,
		})
		require.NoError(t, err)
		require.Len(t, page.Messages, 1)
		assert.Equal(t, msg.ID, page.Messages[0].ID)
	})
}

func TestQueryPageAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.convSvc.CreateOneOnOne(ctx, env.alice.ID, env.bob.ID)
	require.NoError(t, err)

	_, err = env.msgSvc.QueryPage(ctx, env.carol.ID, service.QueryPageInput{ConversationID: conv.ID})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = env.msgSvc.QueryPage(ctx, env.alice.ID, service.QueryPageInput{ConversationID: 99999})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
