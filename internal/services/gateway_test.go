package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqe-platform/aqe-gateway/internal/models"
	"github.com/aqe-platform/aqe-gateway/internal/storage"
)

func newTestGateway(t *testing.T) (*GatewayService, *storage.MemoryStore, *MockProvider) {
	t.Helper()
	store := storage.NewMemoryStore()
	seedContent(t, store)
	addRule(t, store, models.ChannelSMS, models.MatchKeyword, "LEARN", models.FlowSMSLearning, 10)

	provider := NewMockProvider()
	gateway := NewGatewayService(store, provider)
	return gateway, store, provider
}

func optIn(t *testing.T, gateway *GatewayService, phone string) {
	t.Helper()
	_, err := gateway.HandleInboundSMS(phone, "+15550000000", "START")
	require.NoError(t, err)
}

func lastSent(t *testing.T, provider *MockProvider) MockSentMessage {
	t.Helper()
	require.NotEmpty(t, provider.Sent)
	return provider.Sent[len(provider.Sent)-1]
}

func TestFirstContactGetsConsentPrompt(t *testing.T) {
	gateway, store, provider := newTestGateway(t)
	phone := "+15551234567"

	result, err := gateway.HandleInboundSMS(phone, "+15550000000", "anything at all")
	require.NoError(t, err)
	assert.Equal(t, "consent prompt sent", result.Message)
	assert.Empty(t, result.SessionID)

	assert.Equal(t, msgConsentPrompt, lastSent(t, provider).Body)

	rec, err := store.GetConsent(phone, models.ChannelSMS)
	require.NoError(t, err)
	assert.False(t, rec.OptedIn)

	// no flow engine ran, so no session exists
	sessions, err := store.GetLiveSessions(time.Now())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestStopAlwaysOptsOut(t *testing.T) {
	gateway, store, provider := newTestGateway(t)
	phone := "+15551234567"

	// STOP from a never-seen phone still records the opt-out
	_, err := gateway.HandleInboundSMS(phone, "+15550000000", "stop")
	require.NoError(t, err)
	rec, err := store.GetConsent(phone, models.ChannelSMS)
	require.NoError(t, err)
	assert.False(t, rec.OptedIn)
	assert.Equal(t, msgOptOutConfirm, lastSent(t, provider).Body)

	// STOP after opt-in flips it back off
	optIn(t, gateway, phone)
	_, err = gateway.HandleInboundSMS(phone, "+15550000000", "STOP")
	require.NoError(t, err)
	rec, err = store.GetConsent(phone, models.ChannelSMS)
	require.NoError(t, err)
	assert.False(t, rec.OptedIn)
}

func TestStartAfterStopRestoresOptIn(t *testing.T) {
	gateway, store, _ := newTestGateway(t)
	phone := "+15551234567"

	optIn(t, gateway, phone)
	_, err := gateway.HandleInboundSMS(phone, "+15550000000", "STOP")
	require.NoError(t, err)
	_, err = gateway.HandleInboundSMS(phone, "+15550000000", "start")
	require.NoError(t, err)

	rec, err := store.GetConsent(phone, models.ChannelSMS)
	require.NoError(t, err)
	assert.True(t, rec.OptedIn)
	assert.Equal(t, models.ConsentSourceKeyword, rec.Source)
}

func TestRoutingMissSendsHelpWithoutSession(t *testing.T) {
	gateway, store, provider := newTestGateway(t)
	phone := "+15551234567"
	optIn(t, gateway, phone)

	result, err := gateway.HandleInboundSMS(phone, "+15550000000", "what is this")
	require.NoError(t, err)
	assert.Equal(t, "help sent", result.Message)
	assert.Equal(t, msgHelp, lastSent(t, provider).Body)

	sessions, err := store.GetLiveSessions(time.Now())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestSMSSlotFillingReusesSession(t *testing.T) {
	gateway, store, provider := newTestGateway(t)
	phone := "+15551234567"
	optIn(t, gateway, phone)

	// routed trigger creates the session and prompts for the grade
	result, err := gateway.HandleInboundSMS(phone, "+15550000000", "LEARN")
	require.NoError(t, err)
	require.NotEmpty(t, result.SessionID)
	assert.Contains(t, lastSent(t, provider).Body, "grade")

	// grade turn
	result2, err := gateway.HandleInboundSMS(phone, "+15550000000", "LEARN")
	require.NoError(t, err)
	assert.Equal(t, result.SessionID, result2.SessionID)

	session, err := store.GetLiveSession(phone, models.ChannelSMS, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "LEARN", session.State["grade"])

	// no content exists for grade "LEARN", so the subject slot stays open
	_, err = gateway.HandleInboundSMS(phone, "+15550000000", "math")
	require.NoError(t, err)

	session, err = store.GetLiveSession(phone, models.ChannelSMS, time.Now())
	require.NoError(t, err)
	assert.Empty(t, session.State["subject"])
	assert.Contains(t, lastSent(t, provider).Body, "Sorry")
}

func TestLiveSessionConsumesUnroutedInput(t *testing.T) {
	gateway, store, provider := newTestGateway(t)
	phone := "+15551234567"
	optIn(t, gateway, phone)

	_, err := gateway.HandleInboundSMS(phone, "+15550000000", "LEARN")
	require.NoError(t, err)

	// "3-4" matches no routing rule, but a session is live, so the flow
	// consumes it as the grade instead of falling back to help
	result, err := gateway.HandleInboundSMS(phone, "+15550000000", "3-4")
	require.NoError(t, err)
	assert.Equal(t, "processed", result.Message)
	assert.NotEqual(t, msgHelp, lastSent(t, provider).Body)
	assert.Contains(t, lastSent(t, provider).Body, "Got it, grade 3-4")

	session, err := store.GetLiveSession(phone, models.ChannelSMS, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "3-4", session.State["grade"])
}

func TestSMSConversationHappyPath(t *testing.T) {
	gateway, store, provider := newTestGateway(t)
	phone := "+15551234567"
	optIn(t, gateway, phone)

	_, err := gateway.HandleInboundSMS(phone, "+15550000000", "LEARN")
	require.NoError(t, err)
	_, err = gateway.HandleInboundSMS(phone, "+15550000000", "3-4")
	require.NoError(t, err)
	_, err = gateway.HandleInboundSMS(phone, "+15550000000", "math")
	require.NoError(t, err)

	session, err := store.GetLiveSession(phone, models.ChannelSMS, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "3-4", session.State["grade"])
	assert.Equal(t, "MATH", session.State["subject"])
	assert.Equal(t, "lessons/MATH/3-4", session.State["content_ref"])
	assert.Contains(t, lastSent(t, provider).Body, "Starting MATH lessons")
}

func TestAuditLogRecordsEveryLeg(t *testing.T) {
	gateway, store, _ := newTestGateway(t)
	phone := "+15551234567"

	_, err := gateway.HandleInboundSMS(phone, "+15550000000", "hello")
	require.NoError(t, err)

	msgs, err := store.GetMessagesByPhone(phone)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.DirectionIn, msgs[0].Direction)
	assert.Equal(t, models.StatusReceived, msgs[0].Status)
	assert.Equal(t, models.DirectionOut, msgs[1].Direction)
	assert.Equal(t, models.StatusSent, msgs[1].Status)
	assert.NotNil(t, msgs[1].SentAt)
}

// failingProvider simulates a carrier outage on every send.
type failingProvider struct{}

func (failingProvider) SendSms(to, body string) SendResult {
	return SendResult{Success: false, Status: models.StatusFailed.String(), Error: "carrier unreachable"}
}

func (failingProvider) ReplyUssd(sessionID, body string, endSession bool) UssdReplyResult {
	return UssdReplyResult{Success: false, SessionID: sessionID, Error: "carrier unreachable"}
}

func (failingProvider) VerifyNumber(phone string) bool { return true }
func (failingProvider) Name() string                   { return "failing" }

func TestDeliveryFailureIsLoggedNotReturned(t *testing.T) {
	store := storage.NewMemoryStore()
	gateway := NewGatewayService(store, failingProvider{})
	phone := "+15551234567"

	// the webhook still acknowledges: the failure is on the outbound leg
	result, err := gateway.HandleInboundSMS(phone, "+15550000000", "hello")
	require.NoError(t, err)
	assert.Equal(t, "consent prompt sent", result.Message)

	failed, err := store.GetMessagesByStatus(models.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.NotNil(t, failed[0].Error)
	assert.Equal(t, "carrier unreachable", *failed[0].Error)
	assert.Nil(t, failed[0].SentAt)
}

func TestInvalidDestinationNumberFailsWithoutSend(t *testing.T) {
	gateway, store, provider := newTestGateway(t)

	_, err := gateway.HandleInboundSMS("12345", "+15550000000", "hello")
	require.NoError(t, err)

	// nothing reached the carrier
	assert.Empty(t, provider.Sent)

	failed, err := store.GetMessagesByStatus(models.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.NotNil(t, failed[0].Error)
	assert.Contains(t, *failed[0].Error, "invalid destination number")
}

func TestUSSDWireContract(t *testing.T) {
	gateway, _, _ := newTestGateway(t)
	phone := "+254700000001"

	resp := gateway.HandleInboundUSSD(phone, "at-session-1", "*384#", "")
	assert.Equal(t, "CON Welcome to AQE\n1. Math\n2. Reading\n3. Science\n0. Exit", resp.Response)
	assert.False(t, resp.SessionEnd)

	resp = gateway.HandleInboundUSSD(phone, "at-session-1", "*384#", "1")
	assert.Equal(t, "CON Choose grade:\n1. K-2\n2. 3-4\n3. 5-6\n4. 7-8\n0. Back", resp.Response)
	assert.False(t, resp.SessionEnd)

	resp = gateway.HandleInboundUSSD(phone, "at-session-1", "*384#", "2")
	assert.Equal(t, "END Perfect! We'll send MATH lessons for grade 3-4 to this number via SMS. Text START to begin!", resp.Response)
	assert.True(t, resp.SessionEnd)
}

func TestUSSDExitAndSessionExpiry(t *testing.T) {
	gateway, store, _ := newTestGateway(t)
	phone := "+254700000001"

	resp := gateway.HandleInboundUSSD(phone, "at-session-1", "*384#", "")
	require.False(t, resp.SessionEnd)

	resp = gateway.HandleInboundUSSD(phone, "at-session-1", "*384#", "0")
	assert.Equal(t, "END Thank you for using AQE!", resp.Response)
	assert.True(t, resp.SessionEnd)

	// the terminal turn force-expired the session
	_, err := store.GetLiveSession(phone, models.ChannelUSSD, time.Now())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// the next dial starts a fresh session at the root
	resp = gateway.HandleInboundUSSD(phone, "at-session-2", "*384#", "")
	assert.Equal(t, "CON Welcome to AQE\n1. Math\n2. Reading\n3. Science\n0. Exit", resp.Response)
}

func TestUSSDBackNavigation(t *testing.T) {
	gateway, _, _ := newTestGateway(t)
	phone := "+254700000001"

	gateway.HandleInboundUSSD(phone, "at-session-1", "*384#", "")
	gateway.HandleInboundUSSD(phone, "at-session-1", "*384#", "2")

	resp := gateway.HandleInboundUSSD(phone, "at-session-1", "*384#", "0")
	assert.Equal(t, "CON Welcome to AQE\n1. Math\n2. Reading\n3. Science\n0. Exit", resp.Response)
	assert.False(t, resp.SessionEnd)
}

func TestUSSDCreatesDefaultFlow(t *testing.T) {
	gateway, store, _ := newTestGateway(t)

	_, err := store.GetActiveFlowByName(models.FlowUSSDMenu, models.ChannelUSSD)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	gateway.HandleInboundUSSD("+254700000001", "at-session-1", "*384#", "")

	flow, err := store.GetActiveFlowByName(models.FlowUSSDMenu, models.ChannelUSSD)
	require.NoError(t, err)
	assert.True(t, flow.Active)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+15551234567", NormalizePhone("whatsapp:+15551234567"))
	assert.Equal(t, "+15551234567", NormalizePhone("tel:+15551234567"))
	assert.Equal(t, "+15551234567", NormalizePhone("  +15551234567 "))
}
