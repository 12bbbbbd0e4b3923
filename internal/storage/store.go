package storage

import (
	"errors"
	"time"

	"github.com/aqe-platform/aqe-gateway/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store defines the interface for storage operations
type Store interface {
	// Consent operations
	GetConsent(phone, channel string) (*models.ConsentRecord, error)
	SaveConsent(rec *models.ConsentRecord) error

	// Routing rule operations
	CreateRoutingRule(rule *models.RoutingRule) (*models.RoutingRule, error)
	GetActiveRules(channel string) ([]*models.RoutingRule, error)
	GetAllRules() ([]*models.RoutingRule, error)
	CountRoutingRules() (int64, error)

	// Flow operations
	CreateFlow(flow *models.FlowDefinition) (*models.FlowDefinition, error)
	GetFlow(id uint) (*models.FlowDefinition, error)
	GetActiveFlowByName(name, channel string) (*models.FlowDefinition, error)

	// Session operations
	CreateSession(session *models.Session) error
	GetLiveSession(phone, channel string, now time.Time) (*models.Session, error)
	UpdateSession(session *models.Session) error
	GetLiveSessions(now time.Time) ([]*models.Session, error)
	DeleteExpiredSessions(now time.Time) (int64, error)

	// Message audit log operations
	CreateMessage(msg *models.Message) (*models.Message, error)
	UpdateMessage(msg *models.Message) error
	GetMessagesByStatus(status models.MessageStatus) ([]*models.Message, error)
	GetMessagesByPhone(phone string) ([]*models.Message, error)

	// Content target operations
	CreateContentTarget(target *models.ContentTarget) (*models.ContentTarget, error)
	FindContentTarget(subject, grade string) (*models.ContentTarget, error)
	CountContentTargets() (int64, error)
}
