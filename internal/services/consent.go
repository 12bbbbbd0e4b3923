package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/aqe-platform/aqe-gateway/internal/models"
	"github.com/aqe-platform/aqe-gateway/internal/storage"
)

// ConsentAction classifies an inbound message as a compliance keyword.
type ConsentAction string

const (
	ConsentNone   ConsentAction = ""
	ConsentOptIn  ConsentAction = "opt_in"
	ConsentOptOut ConsentAction = "opt_out"
)

var optOutKeywords = map[string]bool{
	"STOP":        true,
	"UNSUBSCRIBE": true,
}

var optInKeywords = map[string]bool{
	"START":     true,
	"UNSTOP":    true,
	"SUBSCRIBE": true,
}

// MatchConsentKeyword classifies text as a compliance keyword. Matching is
// case and whitespace insensitive and runs before any routing-rule
// evaluation so STOP/START always take precedence over content flows.
func MatchConsentKeyword(text string) ConsentAction {
	normalized := strings.ToUpper(strings.TrimSpace(text))
	if optOutKeywords[normalized] {
		return ConsentOptOut
	}
	if optInKeywords[normalized] {
		return ConsentOptIn
	}
	return ConsentNone
}

// ConsentService is the opt-in/opt-out ledger. Records are upserted per
// (phone, channel) and retained forever for compliance audits.
type ConsentService struct {
	store storage.Store
}

// NewConsentService creates a new consent service
func NewConsentService(store storage.Store) *ConsentService {
	return &ConsentService{store: store}
}

// IsOptedIn reports whether the subscriber may receive flow-bearing
// messages. A missing record counts as not opted in.
func (c *ConsentService) IsOptedIn(phone, channel string) bool {
	rec, err := c.store.GetConsent(phone, channel)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("Failed to read consent for %s/%s: %v", phone, channel, err)
		}
		return false
	}
	return rec.OptedIn
}

// RecordOptIn upserts the consent record with opted-in=true, stamping the
// consent time and source. An earlier opt-out is overwritten, not erased.
func (c *ConsentService) RecordOptIn(phone, channel, source string) error {
	rec, err := c.store.GetConsent(phone, channel)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		rec = &models.ConsentRecord{Phone: phone, Channel: channel, Locale: "en"}
	}

	now := time.Now()
	rec.OptedIn = true
	rec.Source = source
	rec.ConsentedAt = &now

	if err := c.store.SaveConsent(rec); err != nil {
		return err
	}
	log.Printf("✅ Opt-in recorded for %s (%s) via %s", phone, channel, source)
	return nil
}

// RecordOptOut sets opted-in=false without deleting history. A record is
// created if the phone was never seen, so the opt-out survives a later
// first contact.
func (c *ConsentService) RecordOptOut(phone, channel string) error {
	rec, err := c.store.GetConsent(phone, channel)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		rec = &models.ConsentRecord{Phone: phone, Channel: channel, Locale: "en"}
	}

	rec.OptedIn = false

	if err := c.store.SaveConsent(rec); err != nil {
		return err
	}
	log.Printf("🛑 Opt-out recorded for %s (%s)", phone, channel)
	return nil
}

// EnsureRecord creates a not-opted-in record on first contact so the
// ledger has a row for every phone that ever reached us.
func (c *ConsentService) EnsureRecord(phone, channel string) error {
	_, err := c.store.GetConsent(phone, channel)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return c.store.SaveConsent(&models.ConsentRecord{
		Phone:   phone,
		Channel: channel,
		OptedIn: false,
		Locale:  "en",
	})
}
