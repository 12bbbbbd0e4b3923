package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqe-platform/aqe-gateway/internal/models"
	"github.com/aqe-platform/aqe-gateway/internal/storage"
)

func seedContent(t *testing.T, store storage.Store) {
	t.Helper()
	for _, subject := range []string{"MATH", "READING", "SCIENCE"} {
		for _, grade := range []string{"K-2", "3-4", "5-6", "7-8"} {
			_, err := store.CreateContentTarget(&models.ContentTarget{
				Subject:    subject,
				Grade:      grade,
				Language:   "en",
				ContentRef: "lessons/" + subject + "/" + grade,
				Priority:   100,
				Active:     true,
			})
			require.NoError(t, err)
		}
	}
}

func newSMSSession() *models.Session {
	return &models.Session{
		ID:        "test-session",
		Phone:     "+15551234567",
		Channel:   models.ChannelSMS,
		State:     make(map[string]string),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestSMSFlowFillsGradeThenSubject(t *testing.T) {
	store := storage.NewMemoryStore()
	seedContent(t, store)
	engine := NewSMSFlowEngine(store)
	session := newSMSSession()

	reply := engine.Next(session, "3-4")
	assert.Contains(t, reply, "grade 3-4")
	assert.Equal(t, "3-4", session.State["grade"])
	assert.Equal(t, models.NodeAwaitingSubject, session.CurrentNode)

	reply = engine.Next(session, "math")
	assert.Contains(t, reply, "MATH")
	assert.Equal(t, "MATH", session.State["subject"])
	assert.Equal(t, "lessons/MATH/3-4", session.State["content_ref"])
	assert.Equal(t, models.NodeDelivering, session.CurrentNode)
}

func TestSMSFlowSlotFillingAdvancesEveryTurn(t *testing.T) {
	store := storage.NewMemoryStore()
	seedContent(t, store)
	engine := NewSMSFlowEngine(store)
	session := newSMSSession()

	// the first send fills the grade slot exactly once
	engine.Next(session, "3-4")
	assert.Equal(t, "3-4", session.State["grade"])
	assert.Equal(t, models.NodeAwaitingSubject, session.CurrentNode)

	// the duplicate is interpreted as the subject, not detected as a repeat
	reply := engine.Next(session, "3-4")
	assert.Contains(t, reply, "Sorry")
	assert.Equal(t, "3-4", session.State["grade"])
	assert.Empty(t, session.State["subject"])
}

func TestSMSFlowContentMissLeavesSlotOpen(t *testing.T) {
	store := storage.NewMemoryStore()
	seedContent(t, store)
	engine := NewSMSFlowEngine(store)
	session := newSMSSession()

	engine.Next(session, "3-4")
	reply := engine.Next(session, "history")
	assert.Contains(t, reply, "Sorry")
	assert.Empty(t, session.State["subject"])
	assert.Equal(t, models.NodeAwaitingSubject, session.CurrentNode)

	// the subscriber retries the missing slot and succeeds
	reply = engine.Next(session, "science")
	assert.Contains(t, reply, "SCIENCE")
	assert.Equal(t, "SCIENCE", session.State["subject"])
}

func TestSMSFlowTerminalTurn(t *testing.T) {
	store := storage.NewMemoryStore()
	seedContent(t, store)
	engine := NewSMSFlowEngine(store)
	session := newSMSSession()

	engine.Next(session, "5-6")
	engine.Next(session, "reading")
	reply := engine.Next(session, "anything")
	assert.Contains(t, reply, "all set")
	assert.Equal(t, "READING", session.State["subject"])
}

func TestSMSFlowEntryPrompt(t *testing.T) {
	engine := NewSMSFlowEngine(storage.NewMemoryStore())
	session := newSMSSession()

	reply := engine.EntryPrompt(session)
	assert.Contains(t, reply, "grade")
	assert.Equal(t, models.NodeAwaitingGrade, session.CurrentNode)
	assert.Empty(t, session.State)
}
