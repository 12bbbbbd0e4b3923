package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqe-platform/aqe-gateway/internal/models"
	"github.com/aqe-platform/aqe-gateway/internal/storage"
)

func TestMatchConsentKeyword(t *testing.T) {
	tests := []struct {
		text string
		want ConsentAction
	}{
		{"STOP", ConsentOptOut},
		{"stop", ConsentOptOut},
		{"  Stop  ", ConsentOptOut},
		{"UNSUBSCRIBE", ConsentOptOut},
		{"START", ConsentOptIn},
		{"start", ConsentOptIn},
		{"UNSTOP", ConsentOptIn},
		{"subscribe", ConsentOptIn},
		{"LEARN", ConsentNone},
		{"STOP IT", ConsentNone},
		{"", ConsentNone},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchConsentKeyword(tt.text), "text=%q", tt.text)
	}
}

func TestConsentOptInOptOut(t *testing.T) {
	store := storage.NewMemoryStore()
	consent := NewConsentService(store)

	phone := "+15551234567"

	// missing record counts as not opted in
	assert.False(t, consent.IsOptedIn(phone, models.ChannelSMS))

	require.NoError(t, consent.RecordOptIn(phone, models.ChannelSMS, models.ConsentSourceKeyword))
	assert.True(t, consent.IsOptedIn(phone, models.ChannelSMS))

	rec, err := store.GetConsent(phone, models.ChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentSourceKeyword, rec.Source)
	require.NotNil(t, rec.ConsentedAt)

	// opt-out flips the flag but keeps the row
	require.NoError(t, consent.RecordOptOut(phone, models.ChannelSMS))
	assert.False(t, consent.IsOptedIn(phone, models.ChannelSMS))

	rec, err = store.GetConsent(phone, models.ChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentSourceKeyword, rec.Source)
	assert.NotNil(t, rec.ConsentedAt)
}

func TestConsentOptInAfterOptOutOverwritesSource(t *testing.T) {
	store := storage.NewMemoryStore()
	consent := NewConsentService(store)

	phone := "+15551234567"

	require.NoError(t, consent.RecordOptIn(phone, models.ChannelSMS, models.ConsentSourceWebForm))
	first, err := store.GetConsent(phone, models.ChannelSMS)
	require.NoError(t, err)

	require.NoError(t, consent.RecordOptOut(phone, models.ChannelSMS))
	require.NoError(t, consent.RecordOptIn(phone, models.ChannelSMS, models.ConsentSourceKeyword))

	second, err := store.GetConsent(phone, models.ChannelSMS)
	require.NoError(t, err)

	// same row, new source and timestamp
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.OptedIn)
	assert.Equal(t, models.ConsentSourceKeyword, second.Source)
}

func TestConsentIsPerChannel(t *testing.T) {
	store := storage.NewMemoryStore()
	consent := NewConsentService(store)

	phone := "+15551234567"

	require.NoError(t, consent.RecordOptIn(phone, models.ChannelSMS, models.ConsentSourceKeyword))
	assert.True(t, consent.IsOptedIn(phone, models.ChannelSMS))
	assert.False(t, consent.IsOptedIn(phone, models.ChannelUSSD))
}

func TestEnsureRecordDoesNotOverwrite(t *testing.T) {
	store := storage.NewMemoryStore()
	consent := NewConsentService(store)

	phone := "+15551234567"

	require.NoError(t, consent.EnsureRecord(phone, models.ChannelSMS))
	rec, err := store.GetConsent(phone, models.ChannelSMS)
	require.NoError(t, err)
	assert.False(t, rec.OptedIn)

	require.NoError(t, consent.RecordOptIn(phone, models.ChannelSMS, models.ConsentSourceKeyword))
	require.NoError(t, consent.EnsureRecord(phone, models.ChannelSMS))
	assert.True(t, consent.IsOptedIn(phone, models.ChannelSMS))
}
