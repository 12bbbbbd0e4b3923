package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aqe-platform/aqe-gateway/internal/models"
	"github.com/aqe-platform/aqe-gateway/internal/storage"
)

// Fixed gateway copy. Only the consent prompt and the opt-in/opt-out
// confirmations may reach a subscriber who is not opted in.
const (
	msgConsentPrompt = "Welcome to AQE! Reply START to receive free lessons by SMS. Msg&data rates may apply. Reply STOP to cancel."
	msgOptInConfirm  = "You're subscribed to AQE lessons! Text LEARN to get started, or STOP to unsubscribe at any time."
	msgOptOutConfirm = "You have been unsubscribed from AQE and will receive no more lessons. Reply START to resubscribe."
	msgHelp          = "AQE commands: text LEARN to start lessons, START to subscribe, STOP to unsubscribe."
	msgUSSDError     = "END Error processing request"
)

// GatewayService sequences an inbound message through the pipeline:
// log → consent → route → session → engine → reply → log.
type GatewayService struct {
	store    storage.Store
	consent  *ConsentService
	router   *RouterService
	sessions *SessionManager
	smsFlow  *SMSFlowEngine
	ussd     *USSDEngine
	provider Provider

	smsTTL  time.Duration
	ussdTTL time.Duration
}

// NewGatewayService wires the gateway. The provider is chosen once at
// process start and injected; there is no runtime switching.
func NewGatewayService(store storage.Store, provider Provider) *GatewayService {
	return &GatewayService{
		store:    store,
		consent:  NewConsentService(store),
		router:   NewRouterService(store),
		sessions: NewSessionManager(store),
		smsFlow:  NewSMSFlowEngine(store),
		ussd:     NewUSSDEngine(),
		provider: provider,
		smsTTL:   DefaultSMSSessionTTL,
		ussdTTL:  DefaultUSSDSessionTTL,
	}
}

// SetSessionTTLs overrides the default session lifetimes (from config).
func (g *GatewayService) SetSessionTTLs(smsTTL, ussdTTL time.Duration) {
	if smsTTL > 0 {
		g.smsTTL = smsTTL
	}
	if ussdTTL > 0 {
		g.ussdTTL = ussdTTL
	}
}

// Sessions exposes the session manager for monitoring endpoints and the
// reaper lifecycle.
func (g *GatewayService) Sessions() *SessionManager {
	return g.sessions
}

// NormalizePhone strips carrier prefixes and whitespace from a webhook
// sender address.
func NormalizePhone(from string) string {
	phone := strings.TrimSpace(from)
	phone = strings.TrimPrefix(phone, "whatsapp:")
	phone = strings.TrimPrefix(phone, "tel:")
	return phone
}

// InboundSMSResult is the webhook acknowledgement for a processed SMS.
type InboundSMSResult struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// HandleInboundSMS processes one inbound SMS end to end. Delivery failures
// on the outbound leg are logged, not returned: the inbound message was
// still processed.
func (g *GatewayService) HandleInboundSMS(from, to, text string) (*InboundSMSResult, error) {
	phone := NormalizePhone(from)

	inbound := g.logInbound(models.ChannelSMS, phone, text)

	// compliance keywords short-circuit everything, including routing
	switch MatchConsentKeyword(text) {
	case ConsentOptOut:
		if err := g.consent.RecordOptOut(phone, models.ChannelSMS); err != nil {
			return nil, err
		}
		g.sendAndLog(phone, models.ChannelSMS, msgOptOutConfirm, nil, nil)
		return &InboundSMSResult{Message: "opt-out recorded"}, nil

	case ConsentOptIn:
		if err := g.consent.RecordOptIn(phone, models.ChannelSMS, models.ConsentSourceKeyword); err != nil {
			return nil, err
		}
		g.sendAndLog(phone, models.ChannelSMS, msgOptInConfirm, nil, nil)
		return &InboundSMSResult{Message: "opt-in recorded"}, nil
	}

	// no flow engine runs until consent is confirmed
	if !g.consent.IsOptedIn(phone, models.ChannelSMS) {
		if err := g.consent.EnsureRecord(phone, models.ChannelSMS); err != nil {
			log.Printf("⚠️  Failed to record first contact for %s: %v", phone, err)
		}
		g.sendAndLog(phone, models.ChannelSMS, msgConsentPrompt, nil, nil)
		return &InboundSMSResult{Message: "consent prompt sent"}, nil
	}

	// the whole turn - session read, engine, write - runs under the
	// identity lock so concurrent turns from one subscriber serialize
	var result *InboundSMSResult
	err := g.sessions.WithLock(phone, models.ChannelSMS, func() error {
		session, err := g.sessions.live(phone, models.ChannelSMS)
		if err != nil {
			return err
		}

		// a live conversation consumes the input directly; routing
		// only applies when no session is in flight
		if session != nil {
			reply := g.smsFlow.Next(session, text)
			if err := g.sessions.extend(session, g.smsTTL); err != nil {
				return err
			}
			g.sendAndLog(phone, models.ChannelSMS, reply, &session.FlowID, &session.ID)
			g.linkInbound(inbound, session.FlowID, session.ID)
			result = &InboundSMSResult{Message: "processed", SessionID: session.ID}
			return nil
		}

		rule, err := g.router.Resolve(models.ChannelSMS, text)
		if err != nil {
			return err
		}
		if rule == nil {
			// routing miss: recover locally, never mutate a session
			g.sendAndLog(phone, models.ChannelSMS, msgHelp, nil, nil)
			result = &InboundSMSResult{Message: "help sent"}
			return nil
		}

		flow, err := g.resolveFlow(rule.TargetFlow, models.ChannelSMS)
		if err != nil {
			return err
		}

		session, err = g.sessions.create(phone, models.ChannelSMS, flow.ID, flow.Locale, g.smsTTL)
		if err != nil {
			return err
		}

		// the routed trigger starts the flow; slot-filling begins next turn
		reply := g.smsFlow.EntryPrompt(session)
		if err := g.sessions.save(session); err != nil {
			return err
		}

		g.sendAndLog(phone, models.ChannelSMS, reply, &flow.ID, &session.ID)
		g.linkInbound(inbound, flow.ID, session.ID)
		result = &InboundSMSResult{Message: "processed", SessionID: session.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// linkInbound attaches the flow and session to an already-logged inbound
// message row.
func (g *GatewayService) linkInbound(inbound *models.Message, flowID uint, sessionID string) {
	if inbound == nil {
		return
	}
	inbound.FlowID = &flowID
	inbound.SessionID = &sessionID
	if err := g.store.UpdateMessage(inbound); err != nil {
		log.Printf("⚠️  Failed to link inbound message %d: %v", inbound.ID, err)
	}
}

// USSDResponse is the synchronous webhook reply. The "CON "/"END " prefix
// is part of the carrier wire contract.
type USSDResponse struct {
	Response   string `json:"response"`
	SessionEnd bool   `json:"sessionEnd"`
}

// HandleInboundUSSD processes one USSD request. It never returns an error:
// internal failures collapse to the fixed END error response so a raw
// failure never reaches the carrier.
func (g *GatewayService) HandleInboundUSSD(from, carrierSessionID, ussdCode, input string) *USSDResponse {
	phone := NormalizePhone(from)

	g.logInbound(models.ChannelUSSD, phone, input)

	flow, err := g.resolveFlow(models.FlowUSSDMenu, models.ChannelUSSD)
	if err != nil {
		log.Printf("❌ USSD flow resolution failed: %v", err)
		return &USSDResponse{Response: msgUSSDError, SessionEnd: true}
	}

	var (
		sessionID string
		reply     string
		end       bool
	)
	err = g.sessions.WithLock(phone, models.ChannelUSSD, func() error {
		session, err := g.sessions.live(phone, models.ChannelUSSD)
		if err != nil {
			return err
		}
		if session == nil {
			session, err = g.sessions.create(phone, models.ChannelUSSD, flow.ID, flow.Locale, g.ussdTTL)
			if err != nil {
				return err
			}
		}
		sessionID = session.ID

		reply, end = g.ussd.Next(session, input)

		// USSD never extends: a stalled session dies at its original expiry
		if err := g.sessions.save(session); err != nil {
			return err
		}

		if end {
			if err := g.sessions.expire(session); err != nil {
				log.Printf("⚠️  Failed to expire USSD session %s: %v", session.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("❌ USSD turn failed for %s: %v", phone, err)
		return &USSDResponse{Response: msgUSSDError, SessionEnd: true}
	}

	// the reply rides the synchronous response; the provider call only
	// produces the audit record
	result := g.provider.ReplyUssd(carrierSessionID, reply, end)
	g.logUssdReply(phone, reply, flow.ID, sessionID, result)

	prefix := "CON "
	if end {
		prefix = "END "
	}
	return &USSDResponse{Response: prefix + reply, SessionEnd: end}
}

func (g *GatewayService) resolveFlow(name, channel string) (*models.FlowDefinition, error) {
	flow, err := g.store.GetActiveFlowByName(name, channel)
	if err == nil {
		return flow, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	// first contact on a fresh deployment: create the default flow
	flow = &models.FlowDefinition{
		Name:      name,
		Channel:   channel,
		Locale:    "en",
		Version:   1,
		EntryNode: models.NodeRoot,
		Active:    true,
	}
	if _, err := g.store.CreateFlow(flow); err != nil {
		return nil, fmt.Errorf("failed to create default %s flow: %w", channel, err)
	}
	log.Printf("Created default %s flow %q", channel, name)
	return flow, nil
}

func (g *GatewayService) logInbound(channel, phone, body string) *models.Message {
	msg := &models.Message{
		Direction: models.DirectionIn,
		Channel:   channel,
		Phone:     phone,
		Body:      body,
		Status:    models.StatusReceived,
	}
	if _, err := g.store.CreateMessage(msg); err != nil {
		log.Printf("⚠️  Failed to log inbound message from %s: %v", phone, err)
		return nil
	}
	return msg
}

// sendAndLog performs the outbound send and records the result in the
// audit log. There is no automatic retry: failed rows stay queryable for
// an external sweeper.
func (g *GatewayService) sendAndLog(phone, channel, body string, flowID *uint, sessionID *string) {
	msg := &models.Message{
		Direction: models.DirectionOut,
		Channel:   channel,
		Phone:     phone,
		Body:      body,
		Status:    models.StatusQueued,
		FlowID:    flowID,
		SessionID: sessionID,
	}
	if _, err := g.store.CreateMessage(msg); err != nil {
		log.Printf("⚠️  Failed to log outbound message to %s: %v", phone, err)
		msg = nil
	}

	var result SendResult
	if g.provider.VerifyNumber(phone) {
		result = g.provider.SendSms(phone, body)
	} else {
		result = SendResult{
			Success: false,
			Status:  models.StatusFailed.String(),
			Error:   "invalid destination number: " + phone,
		}
	}

	if msg == nil {
		return
	}
	now := time.Now()
	if result.Success {
		msg.Status = models.StatusSent
		msg.SentAt = &now
	} else {
		msg.Status = models.StatusFailed
		errText := result.Error
		msg.Error = &errText
		log.Printf("❌ Delivery failed to %s via %s: %s", phone, g.provider.Name(), result.Error)
	}
	if err := g.store.UpdateMessage(msg); err != nil {
		log.Printf("⚠️  Failed to update outbound message %d: %v", msg.ID, err)
	}
}

func (g *GatewayService) logUssdReply(phone, body string, flowID uint, sessionID string, result UssdReplyResult) {
	now := time.Now()
	msg := &models.Message{
		Direction: models.DirectionOut,
		Channel:   models.ChannelUSSD,
		Phone:     phone,
		Body:      body,
		Status:    models.StatusSent,
		FlowID:    &flowID,
		SessionID: &sessionID,
		SentAt:    &now,
	}
	if !result.Success {
		msg.Status = models.StatusFailed
		errText := result.Error
		msg.Error = &errText
		msg.SentAt = nil
	}
	if _, err := g.store.CreateMessage(msg); err != nil {
		log.Printf("⚠️  Failed to log USSD reply to %s: %v", phone, err)
	}
}
