package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/aqe-platform/aqe-gateway/internal/models"
	"github.com/aqe-platform/aqe-gateway/internal/storage"
)

// State bag keys used by the SMS flow
const (
	stateKeyGrade      = "grade"
	stateKeySubject    = "subject"
	stateKeyContentRef = "content_ref"
)

// SMSFlowEngine drives the linear slot-filling conversation:
// AwaitingGrade → AwaitingSubject → Delivering. Each turn fills the next
// empty slot; there is no duplicate detection, so the same value sent
// twice fills two different slots.
type SMSFlowEngine struct {
	store storage.Store
}

// NewSMSFlowEngine creates a new SMS flow engine
func NewSMSFlowEngine(store storage.Store) *SMSFlowEngine {
	return &SMSFlowEngine{store: store}
}

// EntryPrompt is the first outbound turn of a freshly created session.
func (e *SMSFlowEngine) EntryPrompt(session *models.Session) string {
	session.CurrentNode = models.NodeAwaitingGrade
	return "Welcome to AQE! What grade is your learner in? (e.g. K-2, 3-4, 5-6, 7-8)"
}

// Next advances the flow one turn. The session state bag and step pointer
// are mutated in place; the caller persists them. A content miss is a soft
// failure: the reply apologizes and the subject slot stays empty so the
// subscriber can retry.
func (e *SMSFlowEngine) Next(session *models.Session, input string) string {
	grade := session.State[stateKeyGrade]
	subject := session.State[stateKeySubject]

	switch {
	case grade == "":
		grade = NormalizeText(input)
		session.State[stateKeyGrade] = grade
		session.CurrentNode = models.NodeAwaitingSubject
		return fmt.Sprintf("Got it, grade %s! Which subject would you like? (Math, Reading, or Science)", grade)

	case subject == "":
		subject = NormalizeText(input)
		target, err := e.store.FindContentTarget(subject, grade)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				log.Printf("⚠️  Content lookup failed for %s/%s: %v", subject, grade, err)
			}
			// leave the subject slot unresolved so the user can retry
			return fmt.Sprintf("Sorry, we don't have %s lessons for grade %s yet. Please reply with Math, Reading, or Science.",
				subject, grade)
		}

		session.State[stateKeySubject] = subject
		session.State[stateKeyContentRef] = target.ContentRef
		session.CurrentNode = models.NodeDelivering
		return fmt.Sprintf("Perfect! Starting %s lessons for grade %s. Your first lesson arrives shortly. Reply STOP at any time to unsubscribe.", subject, grade)

	default:
		// both slots filled - terminal for this engine
		return fmt.Sprintf("You're all set! %s lessons for grade %s are on their way.", subject, grade)
	}
}
