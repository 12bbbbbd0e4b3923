package services

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aqe-platform/aqe-gateway/internal/models"
)

const atDefaultBaseURL = "https://api.africastalking.com"

// AfricasTalkingProvider sends SMS through the Africa's Talking messaging
// API. USSD replies ride the synchronous webhook response, so ReplyUssd
// only acknowledges.
type AfricasTalkingProvider struct {
	httpClient *http.Client
	baseURL    string
	username   string
	apiKey     string
	from       string
}

// NewAfricasTalkingProvider creates an Africa's Talking-backed provider
// from environment credentials.
func NewAfricasTalkingProvider() (*AfricasTalkingProvider, error) {
	username := os.Getenv("AT_USERNAME")
	apiKey := os.Getenv("AT_API_KEY")
	from := os.Getenv("AT_SHORTCODE")

	if username == "" || apiKey == "" {
		return nil, fmt.Errorf("missing Africa's Talking credentials in environment variables")
	}

	baseURL := os.Getenv("AT_BASE_URL")
	if baseURL == "" {
		baseURL = atDefaultBaseURL
	}

	return &AfricasTalkingProvider{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		username:   username,
		apiKey:     apiKey,
		from:       from,
	}, nil
}

type atSendResponse struct {
	SMSMessageData struct {
		Recipients []struct {
			Number    string `json:"number"`
			Status    string `json:"status"`
			MessageID string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

func (p *AfricasTalkingProvider) SendSms(to, body string) SendResult {
	form := url.Values{}
	form.Set("username", p.username)
	form.Set("to", to)
	form.Set("message", body)
	if p.from != "" {
		form.Set("from", p.from)
	}

	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/version1/messaging", strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{Success: false, Status: models.StatusFailed.String(), Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Printf("❌ Africa's Talking send failed: %v", err)
		return SendResult{Success: false, Status: models.StatusFailed.String(), Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		errMsg := fmt.Sprintf("africastalking returned status %d", resp.StatusCode)
		log.Printf("❌ %s", errMsg)
		return SendResult{Success: false, Status: models.StatusFailed.String(), Error: errMsg}
	}

	var parsed atSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return SendResult{Success: false, Status: models.StatusFailed.String(), Error: fmt.Sprintf("bad response body: %v", err)}
	}
	if len(parsed.SMSMessageData.Recipients) == 0 {
		return SendResult{Success: false, Status: models.StatusFailed.String(), Error: "no recipients in response"}
	}

	recipient := parsed.SMSMessageData.Recipients[0]
	if !strings.EqualFold(recipient.Status, "Success") {
		return SendResult{Success: false, Status: models.StatusFailed.String(), Error: recipient.Status}
	}

	log.Printf("✅ SMS sent via Africa's Talking! ID: %s", recipient.MessageID)
	return SendResult{
		Success:   true,
		MessageID: recipient.MessageID,
		Status:    models.StatusSent.String(),
	}
}

// ReplyUssd acknowledges the reply; the text itself is delivered on the
// synchronous webhook response, not by a separate API call.
func (p *AfricasTalkingProvider) ReplyUssd(sessionID, body string, endSession bool) UssdReplyResult {
	return UssdReplyResult{
		Success:   true,
		SessionID: sessionID,
		Ended:     endSession,
	}
}

func (p *AfricasTalkingProvider) VerifyNumber(phone string) bool {
	return ValidE164(phone)
}

func (p *AfricasTalkingProvider) Name() string {
	return "africastalking"
}
