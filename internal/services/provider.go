package services

import "regexp"

// SendResult reports the outcome of an outbound SMS send.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// UssdReplyResult reports the outcome of a USSD reply.
type UssdReplyResult struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id,omitempty"`
	Ended     bool   `json:"ended"`
	Error     string `json:"error,omitempty"`
}

// Provider is the pluggable carrier backend. One implementation is chosen
// at process start and injected into the gateway; there is no runtime
// switching. Every call result is written to the message audit log by the
// caller - providers themselves never retry.
type Provider interface {
	SendSms(to, body string) SendResult
	ReplyUssd(sessionID, body string, endSession bool) UssdReplyResult
	VerifyNumber(phone string) bool
	Name() string
}

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// ValidE164 reports whether phone looks like an E.164 number.
func ValidE164(phone string) bool {
	return e164Pattern.MatchString(phone)
}
