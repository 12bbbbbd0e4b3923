package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/aqe-platform/aqe-gateway/internal/models"
)

// DatabaseStore persists everything through GORM/PostgreSQL
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a database-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Consent operations

func (d *DatabaseStore) GetConsent(phone, channel string) (*models.ConsentRecord, error) {
	var rec models.ConsentRecord
	err := d.db.Where("phone = ? AND channel = ?", phone, channel).First(&rec).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &rec, nil
}

func (d *DatabaseStore) SaveConsent(rec *models.ConsentRecord) error {
	var existing models.ConsentRecord
	err := d.db.Where("phone = ? AND channel = ?", rec.Phone, rec.Channel).First(&existing).Error
	if err == nil {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		return d.db.Save(rec).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return d.db.Create(rec).Error
}

// Routing rule operations

func (d *DatabaseStore) CreateRoutingRule(rule *models.RoutingRule) (*models.RoutingRule, error) {
	if err := d.db.Create(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

func (d *DatabaseStore) GetActiveRules(channel string) ([]*models.RoutingRule, error) {
	var rules []*models.RoutingRule
	// id breaks priority ties so iteration order stays deterministic
	err := d.db.Where("channel = ? AND active = ?", channel, true).
		Order("priority ASC, id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (d *DatabaseStore) GetAllRules() ([]*models.RoutingRule, error) {
	var rules []*models.RoutingRule
	if err := d.db.Order("channel ASC, priority ASC, id ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (d *DatabaseStore) CountRoutingRules() (int64, error) {
	var count int64
	err := d.db.Model(&models.RoutingRule{}).Count(&count).Error
	return count, err
}

// Flow operations

func (d *DatabaseStore) CreateFlow(flow *models.FlowDefinition) (*models.FlowDefinition, error) {
	if err := d.db.Create(flow).Error; err != nil {
		return nil, err
	}
	return flow, nil
}

func (d *DatabaseStore) GetFlow(id uint) (*models.FlowDefinition, error) {
	var flow models.FlowDefinition
	if err := d.db.First(&flow, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &flow, nil
}

func (d *DatabaseStore) GetActiveFlowByName(name, channel string) (*models.FlowDefinition, error) {
	var flow models.FlowDefinition
	err := d.db.Where("name = ? AND channel = ? AND active = ?", name, channel, true).
		Order("id ASC").
		First(&flow).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &flow, nil
}

// Session operations

func (d *DatabaseStore) CreateSession(session *models.Session) error {
	return d.db.Create(session).Error
}

func (d *DatabaseStore) GetLiveSession(phone, channel string, now time.Time) (*models.Session, error) {
	var session models.Session
	err := d.db.Where("phone = ? AND channel = ? AND expires_at > ?", phone, channel, now).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &session, nil
}

func (d *DatabaseStore) UpdateSession(session *models.Session) error {
	return d.db.Save(session).Error
}

func (d *DatabaseStore) GetLiveSessions(now time.Time) ([]*models.Session, error) {
	var sessions []*models.Session
	err := d.db.Where("expires_at > ?", now).Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (d *DatabaseStore) DeleteExpiredSessions(now time.Time) (int64, error) {
	res := d.db.Where("expires_at <= ?", now).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

// Message audit log operations

func (d *DatabaseStore) CreateMessage(msg *models.Message) (*models.Message, error) {
	if err := d.db.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (d *DatabaseStore) UpdateMessage(msg *models.Message) error {
	return d.db.Save(msg).Error
}

func (d *DatabaseStore) GetMessagesByStatus(status models.MessageStatus) ([]*models.Message, error) {
	var msgs []*models.Message
	err := d.db.Where("status = ?", status).Order("id ASC").Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (d *DatabaseStore) GetMessagesByPhone(phone string) ([]*models.Message, error) {
	var msgs []*models.Message
	err := d.db.Where("phone = ?", phone).Order("id ASC").Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// Content target operations

func (d *DatabaseStore) CreateContentTarget(target *models.ContentTarget) (*models.ContentTarget, error) {
	if err := d.db.Create(target).Error; err != nil {
		return nil, err
	}
	return target, nil
}

func (d *DatabaseStore) FindContentTarget(subject, grade string) (*models.ContentTarget, error) {
	var target models.ContentTarget
	err := d.db.Where("subject = ? AND grade = ? AND active = ?", subject, grade, true).
		Order("priority ASC, id ASC").
		First(&target).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &target, nil
}

func (d *DatabaseStore) CountContentTargets() (int64, error) {
	var count int64
	err := d.db.Model(&models.ContentTarget{}).Count(&count).Error
	return count, err
}
