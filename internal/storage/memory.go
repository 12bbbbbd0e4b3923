package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aqe-platform/aqe-gateway/internal/models"
)

// MemoryStore holds all data in memory for demos and tests
type MemoryStore struct {
	consents map[string]*models.ConsentRecord // keyed by phone|channel
	rules    []*models.RoutingRule
	flows    map[uint]*models.FlowDefinition
	sessions map[string]*models.Session // keyed by session ID
	messages []*models.Message
	content  []*models.ContentTarget

	// Mutexes for thread safety
	consentMu sync.RWMutex
	ruleMu    sync.RWMutex
	flowMu    sync.RWMutex
	sessionMu sync.RWMutex
	messageMu sync.RWMutex
	contentMu sync.RWMutex

	// Counters for ID generation
	consentCounter uint
	ruleCounter    uint
	flowCounter    uint
	messageCounter uint
	contentCounter uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		consents: make(map[string]*models.ConsentRecord),
		flows:    make(map[uint]*models.FlowDefinition),
		sessions: make(map[string]*models.Session),
	}
}

func consentKey(phone, channel string) string {
	return fmt.Sprintf("%s|%s", phone, channel)
}

// Consent operations

func (m *MemoryStore) GetConsent(phone, channel string) (*models.ConsentRecord, error) {
	m.consentMu.RLock()
	defer m.consentMu.RUnlock()

	rec, exists := m.consents[consentKey(phone, channel)]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (m *MemoryStore) SaveConsent(rec *models.ConsentRecord) error {
	m.consentMu.Lock()
	defer m.consentMu.Unlock()

	key := consentKey(rec.Phone, rec.Channel)
	if existing, exists := m.consents[key]; exists {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else {
		m.consentCounter++
		rec.ID = m.consentCounter
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = time.Now()

	copied := *rec
	m.consents[key] = &copied
	return nil
}

// Routing rule operations

func (m *MemoryStore) CreateRoutingRule(rule *models.RoutingRule) (*models.RoutingRule, error) {
	m.ruleMu.Lock()
	defer m.ruleMu.Unlock()

	m.ruleCounter++
	rule.ID = m.ruleCounter
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()

	m.rules = append(m.rules, rule)
	return rule, nil
}

// GetActiveRules returns active rules for a channel ordered by ascending
// priority. Equal priorities keep insertion order so resolution stays
// deterministic.
func (m *MemoryStore) GetActiveRules(channel string) ([]*models.RoutingRule, error) {
	m.ruleMu.RLock()
	defer m.ruleMu.RUnlock()

	rules := []*models.RoutingRule{}
	for _, rule := range m.rules {
		if rule.Active && rule.Channel == channel {
			rules = append(rules, rule)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})
	return rules, nil
}

func (m *MemoryStore) GetAllRules() ([]*models.RoutingRule, error) {
	m.ruleMu.RLock()
	defer m.ruleMu.RUnlock()

	rules := make([]*models.RoutingRule, len(m.rules))
	copy(rules, m.rules)
	return rules, nil
}

func (m *MemoryStore) CountRoutingRules() (int64, error) {
	m.ruleMu.RLock()
	defer m.ruleMu.RUnlock()
	return int64(len(m.rules)), nil
}

// Flow operations

func (m *MemoryStore) CreateFlow(flow *models.FlowDefinition) (*models.FlowDefinition, error) {
	m.flowMu.Lock()
	defer m.flowMu.Unlock()

	m.flowCounter++
	flow.ID = m.flowCounter
	flow.CreatedAt = time.Now()
	flow.UpdatedAt = time.Now()

	m.flows[flow.ID] = flow
	return flow, nil
}

func (m *MemoryStore) GetFlow(id uint) (*models.FlowDefinition, error) {
	m.flowMu.RLock()
	defer m.flowMu.RUnlock()

	flow, exists := m.flows[id]
	if !exists {
		return nil, ErrNotFound
	}
	return flow, nil
}

func (m *MemoryStore) GetActiveFlowByName(name, channel string) (*models.FlowDefinition, error) {
	m.flowMu.RLock()
	defer m.flowMu.RUnlock()

	var match *models.FlowDefinition
	for _, flow := range m.flows {
		if flow.Active && flow.Name == name && flow.Channel == channel {
			if match == nil || flow.ID < match.ID {
				match = flow
			}
		}
	}
	if match == nil {
		return nil, ErrNotFound
	}
	return match, nil
}

// Session operations

func (m *MemoryStore) CreateSession(session *models.Session) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	session.CreatedAt = time.Now()
	session.UpdatedAt = time.Now()

	copied := copySession(session)
	m.sessions[session.ID] = copied
	return nil
}

// GetLiveSession returns the session for (phone, channel) whose expiry is
// still in the future. Expired rows stay in the map but are never returned.
func (m *MemoryStore) GetLiveSession(phone, channel string, now time.Time) (*models.Session, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	var latest *models.Session
	for _, session := range m.sessions {
		if session.Phone == phone && session.Channel == channel && session.Live(now) {
			if latest == nil || session.CreatedAt.After(latest.CreatedAt) {
				latest = session
			}
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return copySession(latest), nil
}

func (m *MemoryStore) UpdateSession(session *models.Session) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if _, exists := m.sessions[session.ID]; !exists {
		return ErrNotFound
	}
	session.UpdatedAt = time.Now()
	m.sessions[session.ID] = copySession(session)
	return nil
}

func (m *MemoryStore) GetLiveSessions(now time.Time) ([]*models.Session, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	sessions := []*models.Session{}
	for _, session := range m.sessions {
		if session.Live(now) {
			sessions = append(sessions, copySession(session))
		}
	}
	return sessions, nil
}

func (m *MemoryStore) DeleteExpiredSessions(now time.Time) (int64, error) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	var removed int64
	for id, session := range m.sessions {
		if !session.Live(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func copySession(s *models.Session) *models.Session {
	copied := *s
	copied.State = make(map[string]string, len(s.State))
	for k, v := range s.State {
		copied.State[k] = v
	}
	return &copied
}

// Message audit log operations

func (m *MemoryStore) CreateMessage(msg *models.Message) (*models.Message, error) {
	m.messageMu.Lock()
	defer m.messageMu.Unlock()

	m.messageCounter++
	msg.ID = m.messageCounter
	msg.CreatedAt = time.Now()

	copied := *msg
	m.messages = append(m.messages, &copied)
	return msg, nil
}

func (m *MemoryStore) UpdateMessage(msg *models.Message) error {
	m.messageMu.Lock()
	defer m.messageMu.Unlock()

	for i, existing := range m.messages {
		if existing.ID == msg.ID {
			copied := *msg
			m.messages[i] = &copied
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) GetMessagesByStatus(status models.MessageStatus) ([]*models.Message, error) {
	m.messageMu.RLock()
	defer m.messageMu.RUnlock()

	msgs := []*models.Message{}
	for _, msg := range m.messages {
		if msg.Status == status {
			copied := *msg
			msgs = append(msgs, &copied)
		}
	}
	return msgs, nil
}

func (m *MemoryStore) GetMessagesByPhone(phone string) ([]*models.Message, error) {
	m.messageMu.RLock()
	defer m.messageMu.RUnlock()

	msgs := []*models.Message{}
	for _, msg := range m.messages {
		if msg.Phone == phone {
			copied := *msg
			msgs = append(msgs, &copied)
		}
	}
	return msgs, nil
}

// Content target operations

func (m *MemoryStore) CreateContentTarget(target *models.ContentTarget) (*models.ContentTarget, error) {
	m.contentMu.Lock()
	defer m.contentMu.Unlock()

	m.contentCounter++
	target.ID = m.contentCounter
	target.CreatedAt = time.Now()
	target.UpdatedAt = time.Now()

	m.content = append(m.content, target)
	return target, nil
}

// FindContentTarget resolves (subject, grade) to the highest-priority active
// content row.
func (m *MemoryStore) FindContentTarget(subject, grade string) (*models.ContentTarget, error) {
	m.contentMu.RLock()
	defer m.contentMu.RUnlock()

	var best *models.ContentTarget
	for _, target := range m.content {
		if target.Active && target.Subject == subject && target.Grade == grade {
			if best == nil || target.Priority < best.Priority {
				best = target
			}
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (m *MemoryStore) CountContentTargets() (int64, error) {
	m.contentMu.RLock()
	defer m.contentMu.RUnlock()
	return int64(len(m.content)), nil
}
