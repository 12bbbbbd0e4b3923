package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqe-platform/aqe-gateway/internal/models"
)

func TestConsentUpsertKeepsOneRowPerIdentity(t *testing.T) {
	store := NewMemoryStore()

	rec := &models.ConsentRecord{Phone: "+15551234567", Channel: models.ChannelSMS, OptedIn: true}
	require.NoError(t, store.SaveConsent(rec))
	firstID := rec.ID

	update := &models.ConsentRecord{Phone: "+15551234567", Channel: models.ChannelSMS, OptedIn: false}
	require.NoError(t, store.SaveConsent(update))
	assert.Equal(t, firstID, update.ID)

	got, err := store.GetConsent("+15551234567", models.ChannelSMS)
	require.NoError(t, err)
	assert.False(t, got.OptedIn)
}

func TestGetActiveRulesOrdering(t *testing.T) {
	store := NewMemoryStore()

	for _, rule := range []*models.RoutingRule{
		{Channel: models.ChannelSMS, MatchType: models.MatchKeyword, MatchValue: "B", TargetFlow: "b", Priority: 20, Active: true},
		{Channel: models.ChannelSMS, MatchType: models.MatchKeyword, MatchValue: "A", TargetFlow: "a", Priority: 10, Active: true},
		{Channel: models.ChannelSMS, MatchType: models.MatchKeyword, MatchValue: "C", TargetFlow: "c", Priority: 10, Active: true},
		{Channel: models.ChannelSMS, MatchType: models.MatchKeyword, MatchValue: "D", TargetFlow: "d", Priority: 5, Active: false},
		{Channel: models.ChannelUSSD, MatchType: models.MatchKeyword, MatchValue: "E", TargetFlow: "e", Priority: 1, Active: true},
	} {
		_, err := store.CreateRoutingRule(rule)
		require.NoError(t, err)
	}

	rules, err := store.GetActiveRules(models.ChannelSMS)
	require.NoError(t, err)
	require.Len(t, rules, 3)

	// ascending priority; equal priorities keep insertion order
	assert.Equal(t, "a", rules[0].TargetFlow)
	assert.Equal(t, "c", rules[1].TargetFlow)
	assert.Equal(t, "b", rules[2].TargetFlow)
}

func TestSessionExpiryIsLazy(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	session := &models.Session{
		ID:        "s-1",
		Phone:     "+15551234567",
		Channel:   models.ChannelSMS,
		State:     map[string]string{},
		ExpiresAt: now.Add(time.Minute),
	}
	require.NoError(t, store.CreateSession(session))

	got, err := store.GetLiveSession("+15551234567", models.ChannelSMS, now)
	require.NoError(t, err)
	assert.Equal(t, "s-1", got.ID)

	// after expiry the row still exists but is never returned
	_, err = store.GetLiveSession("+15551234567", models.ChannelSMS, now.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err := store.DeleteExpiredSessions(now.Add(2 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestGetLiveSessionReturnsNewestRow(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	stale := &models.Session{ID: "s-old", Phone: "+15551234567", Channel: models.ChannelSMS,
		State: map[string]string{}, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.CreateSession(stale))
	time.Sleep(2 * time.Millisecond)
	fresh := &models.Session{ID: "s-new", Phone: "+15551234567", Channel: models.ChannelSMS,
		State: map[string]string{}, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.CreateSession(fresh))

	got, err := store.GetLiveSession("+15551234567", models.ChannelSMS, now)
	require.NoError(t, err)
	assert.Equal(t, "s-new", got.ID)
}

func TestSessionStateIsCopiedOnRead(t *testing.T) {
	store := NewMemoryStore()

	session := &models.Session{
		ID:        "s-1",
		Phone:     "+15551234567",
		Channel:   models.ChannelSMS,
		State:     map[string]string{"grade": "3-4"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.CreateSession(session))

	got, err := store.GetLiveSession("+15551234567", models.ChannelSMS, time.Now())
	require.NoError(t, err)
	got.State["grade"] = "mutated"

	again, err := store.GetLiveSession("+15551234567", models.ChannelSMS, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "3-4", again.State["grade"])
}

func TestMessageIDsAreMonotonic(t *testing.T) {
	store := NewMemoryStore()

	var lastID uint
	for i := 0; i < 5; i++ {
		msg, err := store.CreateMessage(&models.Message{
			Direction: models.DirectionIn,
			Channel:   models.ChannelSMS,
			Phone:     "+15551234567",
			Body:      "hello",
			Status:    models.StatusReceived,
		})
		require.NoError(t, err)
		assert.Greater(t, msg.ID, lastID)
		lastID = msg.ID
	}
}

func TestMessageStatusUpdate(t *testing.T) {
	store := NewMemoryStore()

	msg, err := store.CreateMessage(&models.Message{
		Direction: models.DirectionOut,
		Channel:   models.ChannelSMS,
		Phone:     "+15551234567",
		Body:      "hi",
		Status:    models.StatusQueued,
	})
	require.NoError(t, err)

	now := time.Now()
	msg.Status = models.StatusSent
	msg.SentAt = &now
	require.NoError(t, store.UpdateMessage(msg))

	sent, err := store.GetMessagesByStatus(models.StatusSent)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, msg.ID, sent[0].ID)

	queued, err := store.GetMessagesByStatus(models.StatusQueued)
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestFindContentTargetPrefersLowerPriority(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.CreateContentTarget(&models.ContentTarget{
		Subject: "MATH", Grade: "3-4", ContentRef: "lessons/math/backup", Priority: 200, Active: true,
	})
	require.NoError(t, err)
	_, err = store.CreateContentTarget(&models.ContentTarget{
		Subject: "MATH", Grade: "3-4", ContentRef: "lessons/math/primary", Priority: 100, Active: true,
	})
	require.NoError(t, err)
	_, err = store.CreateContentTarget(&models.ContentTarget{
		Subject: "MATH", Grade: "3-4", ContentRef: "lessons/math/inactive", Priority: 1, Active: false,
	})
	require.NoError(t, err)

	target, err := store.FindContentTarget("MATH", "3-4")
	require.NoError(t, err)
	assert.Equal(t, "lessons/math/primary", target.ContentRef)

	_, err = store.FindContentTarget("HISTORY", "3-4")
	assert.ErrorIs(t, err, ErrNotFound)
}
