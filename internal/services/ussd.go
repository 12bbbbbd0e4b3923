package services

import (
	"fmt"
	"strings"

	"github.com/aqe-platform/aqe-gateway/internal/models"
)

const (
	ussdRootMenu  = "Welcome to AQE\n1. Math\n2. Reading\n3. Science\n0. Exit"
	ussdGradeMenu = "Choose grade:\n1. K-2\n2. 3-4\n3. 5-6\n4. 7-8\n0. Back"
	ussdGoodbye   = "Thank you for using AQE!"
	ussdInvalid   = "Invalid choice.\n"
)

var ussdSubjects = map[string]string{
	"1": "MATH",
	"2": "READING",
	"3": "SCIENCE",
}

var ussdGrades = map[string]string{
	"1": "K-2",
	"2": "3-4",
	"3": "5-6",
	"4": "7-8",
}

// USSDEngine drives the synchronous menu tree: Root → SubjectChosen →
// GradeChosen(terminal). Each call maps (session state, raw input) to
// (new state, response text, end flag) with no side effects beyond the
// session mutation, so every transition is unit-testable in isolation.
type USSDEngine struct{}

// NewUSSDEngine creates a new USSD menu engine
func NewUSSDEngine() *USSDEngine {
	return &USSDEngine{}
}

// Next runs one menu transition. The returned text carries no CON/END
// prefix; the end flag tells the caller which directive to emit and
// whether to close the session.
func (e *USSDEngine) Next(session *models.Session, input string) (string, bool) {
	choice := strings.TrimSpace(input)
	subject := session.State[stateKeySubject]

	// fresh session or empty input at the root: render the root menu
	if choice == "" && subject == "" {
		session.CurrentNode = models.NodeRoot
		return ussdRootMenu, false
	}

	if subject == "" {
		return e.atRoot(session, choice)
	}
	return e.atSubjectChosen(session, choice, subject)
}

func (e *USSDEngine) atRoot(session *models.Session, choice string) (string, bool) {
	if choice == "0" {
		session.CurrentNode = models.NodeDone
		return ussdGoodbye, true
	}

	subject, ok := ussdSubjects[choice]
	if !ok {
		return ussdInvalid + ussdRootMenu, false
	}

	session.State[stateKeySubject] = subject
	session.CurrentNode = models.NodeSubjectChosen
	return ussdGradeMenu, false
}

func (e *USSDEngine) atSubjectChosen(session *models.Session, choice, subject string) (string, bool) {
	// "0" here is "back", not exit: pop to the root and clear the subject
	if choice == "0" {
		delete(session.State, stateKeySubject)
		session.CurrentNode = models.NodeRoot
		return ussdRootMenu, false
	}

	grade, ok := ussdGrades[choice]
	if !ok {
		return ussdInvalid + ussdGradeMenu, false
	}

	session.State[stateKeyGrade] = grade
	session.CurrentNode = models.NodeDone
	return fmt.Sprintf("Perfect! We'll send %s lessons for grade %s to this number via SMS. Text START to begin!", subject, grade), true
}
