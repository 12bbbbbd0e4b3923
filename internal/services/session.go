package services

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aqe-platform/aqe-gateway/internal/models"
	"github.com/aqe-platform/aqe-gateway/internal/storage"
)

// Default session lifetimes. SMS conversations span days of round-trips;
// USSD sessions are carrier-bounded and must die within minutes.
const (
	DefaultSMSSessionTTL  = 24 * time.Hour
	DefaultUSSDSessionTTL = 2 * time.Minute
)

// SessionManager owns the session lifecycle: get-or-create, state writes,
// expiry. All mutations for one (phone, channel) run under that identity's
// lock, so two concurrent first contacts cannot create two live sessions.
type SessionManager struct {
	store storage.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	reaperStop chan struct{}
	reaperOnce sync.Once
}

// NewSessionManager creates a new session manager
func NewSessionManager(store storage.Store) *SessionManager {
	return &SessionManager{
		store:      store,
		locks:      make(map[string]*sync.Mutex),
		reaperStop: make(chan struct{}),
	}
}

func (sm *SessionManager) lockFor(phone, channel string) *sync.Mutex {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := fmt.Sprintf("%s|%s", phone, channel)
	lock, exists := sm.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		sm.locks[key] = lock
	}
	return lock
}

// WithLock runs fn while holding the identity lock for (phone, channel).
// A whole conversation turn - read, engine, write - must run under one
// acquisition, otherwise two concurrent turns from the same subscriber
// read the same snapshot and the last write wins.
func (sm *SessionManager) WithLock(phone, channel string, fn func() error) error {
	lock := sm.lockFor(phone, channel)
	lock.Lock()
	defer lock.Unlock()

	return fn()
}

// live returns the live session for (phone, channel), or nil when none
// exists. The caller must hold the identity lock.
func (sm *SessionManager) live(phone, channel string) (*models.Session, error) {
	session, err := sm.store.GetLiveSession(phone, channel, time.Now())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// create persists a fresh session with the given TTL. The caller must
// hold the identity lock.
func (sm *SessionManager) create(phone, channel string, flowID uint, locale string, ttl time.Duration) (*models.Session, error) {
	session := &models.Session{
		ID:        uuid.NewString(),
		Phone:     phone,
		Channel:   channel,
		FlowID:    flowID,
		State:     make(map[string]string),
		Locale:    locale,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := sm.store.CreateSession(session); err != nil {
		return nil, err
	}

	log.Printf("Session %s created for %s (%s), ttl %s", session.ID, phone, channel, ttl)
	return session, nil
}

func (sm *SessionManager) save(session *models.Session) error {
	return sm.store.UpdateSession(session)
}

func (sm *SessionManager) extend(session *models.Session, ttl time.Duration) error {
	session.ExpiresAt = time.Now().Add(ttl)
	return sm.store.UpdateSession(session)
}

func (sm *SessionManager) expire(session *models.Session) error {
	session.ExpiresAt = time.Now()
	if err := sm.store.UpdateSession(session); err != nil {
		return err
	}
	log.Printf("Session %s expired for %s (%s)", session.ID, session.Phone, session.Channel)
	return nil
}

// GetOrCreate returns the live session for (phone, channel), creating a
// fresh one with the given TTL when none is live. An expired session is
// never reused even if its row is still in storage. The second return
// value reports whether a new session was created.
func (sm *SessionManager) GetOrCreate(phone, channel string, flowID uint, locale string, ttl time.Duration) (*models.Session, bool, error) {
	var (
		session *models.Session
		created bool
	)
	err := sm.WithLock(phone, channel, func() error {
		var err error
		session, err = sm.live(phone, channel)
		if err != nil || session != nil {
			return err
		}
		session, err = sm.create(phone, channel, flowID, locale, ttl)
		created = err == nil
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return session, created, nil
}

// Save persists a state-bag or step-pointer mutation. UpdatedAt is bumped
// by the store; the expiry is deliberately left alone.
func (sm *SessionManager) Save(session *models.Session) error {
	return sm.WithLock(session.Phone, session.Channel, func() error {
		return sm.save(session)
	})
}

// Extend refreshes the session expiry and persists it. The SMS engine
// extends on every turn; USSD never calls this.
func (sm *SessionManager) Extend(session *models.Session, ttl time.Duration) error {
	return sm.WithLock(session.Phone, session.Channel, func() error {
		return sm.extend(session, ttl)
	})
}

// Expire force-closes a session immediately.
func (sm *SessionManager) Expire(session *models.Session) error {
	return sm.WithLock(session.Phone, session.Channel, func() error {
		return sm.expire(session)
	})
}

// ActiveSessions returns all live sessions (for monitoring)
func (sm *SessionManager) ActiveSessions() ([]*models.Session, error) {
	return sm.store.GetLiveSessions(time.Now())
}

// StartReaper launches a background loop that reclaims expired session
// rows. Expiry is already enforced lazily at read time; the reaper only
// keeps storage from growing without bound.
func (sm *SessionManager) StartReaper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed, err := sm.store.DeleteExpiredSessions(time.Now())
				if err != nil {
					log.Printf("⚠️  Session reaper error: %v", err)
					continue
				}
				if removed > 0 {
					log.Printf("🧹 Reaped %d expired sessions", removed)
				}
			case <-sm.reaperStop:
				return
			}
		}
	}()
}

// StopReaper halts the reaper loop
func (sm *SessionManager) StopReaper() {
	sm.reaperOnce.Do(func() {
		close(sm.reaperStop)
	})
}
