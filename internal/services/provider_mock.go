package services

import (
	"fmt"
	"log"
	"sync"

	"github.com/aqe-platform/aqe-gateway/internal/models"
)

// MockProvider is a deterministic carrier backend for demos and tests.
// Every send succeeds and message IDs are sequential.
type MockProvider struct {
	mu      sync.Mutex
	counter int

	// Sent and Replies record every call for test assertions
	Sent    []MockSentMessage
	Replies []MockUssdReply
}

type MockSentMessage struct {
	To   string
	Body string
}

type MockUssdReply struct {
	SessionID string
	Body      string
	Ended     bool
}

// NewMockProvider creates a new mock provider
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) SendSms(to, body string) SendResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counter++
	p.Sent = append(p.Sent, MockSentMessage{To: to, Body: body})
	log.Printf("📤 [mock] SMS to %s: %s", to, body)

	return SendResult{
		Success:   true,
		MessageID: fmt.Sprintf("MOCK%05d", p.counter),
		Status:    models.StatusSent.String(),
	}
}

func (p *MockProvider) ReplyUssd(sessionID, body string, endSession bool) UssdReplyResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Replies = append(p.Replies, MockUssdReply{SessionID: sessionID, Body: body, Ended: endSession})
	log.Printf("📤 [mock] USSD reply for %s (end=%v): %s", sessionID, endSession, body)

	return UssdReplyResult{
		Success:   true,
		SessionID: sessionID,
		Ended:     endSession,
	}
}

func (p *MockProvider) VerifyNumber(phone string) bool {
	return ValidE164(phone)
}

func (p *MockProvider) Name() string {
	return "mock"
}
