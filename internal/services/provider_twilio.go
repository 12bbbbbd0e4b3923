package services

import (
	"fmt"
	"log"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/aqe-platform/aqe-gateway/internal/models"
)

// TwilioProvider sends SMS through the Twilio REST API.
type TwilioProvider struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioProvider creates a Twilio-backed provider from environment
// credentials.
func NewTwilioProvider() (*TwilioProvider, error) {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	from := os.Getenv("TWILIO_PHONE_NUMBER")

	if accountSid == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials in environment variables")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &TwilioProvider{
		client: client,
		from:   from,
	}, nil
}

func (p *TwilioProvider) SendSms(to, body string) SendResult {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(p.from)
	params.SetTo(to)
	params.SetBody(body)

	resp, err := p.client.Api.CreateMessage(params)
	if err != nil {
		log.Printf("❌ Failed to send SMS via Twilio: %v", err)
		return SendResult{
			Success: false,
			Status:  models.StatusFailed.String(),
			Error:   err.Error(),
		}
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	log.Printf("✅ SMS sent via Twilio! SID: %s", sid)

	return SendResult{
		Success:   true,
		MessageID: sid,
		Status:    models.StatusSent.String(),
	}
}

// ReplyUssd always fails: Twilio has no USSD capability, and USSD traffic
// should never be routed to this backend.
func (p *TwilioProvider) ReplyUssd(sessionID, body string, endSession bool) UssdReplyResult {
	return UssdReplyResult{
		Success:   false,
		SessionID: sessionID,
		Error:     "ussd is not supported by the twilio provider",
	}
}

func (p *TwilioProvider) VerifyNumber(phone string) bool {
	return ValidE164(phone)
}

func (p *TwilioProvider) Name() string {
	return "twilio"
}
