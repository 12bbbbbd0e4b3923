package services

import (
	"log"
	"regexp"
	"strings"

	"github.com/aqe-platform/aqe-gateway/internal/models"
	"github.com/aqe-platform/aqe-gateway/internal/storage"
)

// RouterService resolves inbound free text to a target flow using the
// channel's active routing rules, ascending priority, first match wins.
type RouterService struct {
	store storage.Store
}

// NewRouterService creates a new routing resolver
func NewRouterService(store storage.Store) *RouterService {
	return &RouterService{store: store}
}

// NormalizeText trims and upper-cases inbound text before matching.
func NormalizeText(text string) string {
	return strings.ToUpper(strings.TrimSpace(text))
}

// Resolve returns the first matching rule for the channel, or nil when
// nothing matches. Callers must fall back to a help message on nil.
func (r *RouterService) Resolve(channel, text string) (*models.RoutingRule, error) {
	normalized := NormalizeText(text)

	rules, err := r.store.GetActiveRules(channel)
	if err != nil {
		return nil, err
	}

	for _, rule := range rules {
		if r.matches(rule, normalized) {
			return rule, nil
		}
	}
	return nil, nil
}

func (r *RouterService) matches(rule *models.RoutingRule, normalized string) bool {
	switch rule.MatchType {
	case models.MatchKeyword:
		return normalized == NormalizeText(rule.MatchValue)
	case models.MatchStartsWith:
		return strings.HasPrefix(normalized, NormalizeText(rule.MatchValue))
	case models.MatchRegex:
		re, err := regexp.Compile(rule.MatchValue)
		if err != nil {
			// a bad admin pattern must not take the gateway down
			log.Printf("⚠️  Invalid regex in routing rule %d: %v", rule.ID, err)
			return false
		}
		return re.MatchString(normalized)
	default:
		log.Printf("⚠️  Unknown match type %q in routing rule %d", rule.MatchType, rule.ID)
		return false
	}
}
