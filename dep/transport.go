package dep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	brevo "github.com/getbrevo/brevo-go/lib"

	"outreach/config"
)

var (
	sendEmailUrl = "https://api.brevo.com/v3/smtp/email"
)

type Outcome uint32

const (
	OutcomeUnknown Outcome = iota
	OutcomeSent
	OutcomeTransientError
	OutcomePermanentError
)

var Outcomes = map[Outcome]string{
	OutcomeSent:           "sent",
	OutcomeTransientError: "transient_error",
	OutcomePermanentError: "permanent_error",
}

func (o Outcome) String() string {
	return Outcomes[o]
}

type Envelope struct {
	To          string
	Subject     string
	HtmlContent string
	TrackingID  string
}

// MailTransport delivers one envelope. Outcome classifies the failure mode so the
// dispatch engine can decide between retry and terminal failure.
type MailTransport interface {
	Send(ctx context.Context, envelope *Envelope) (Outcome, error)
	Close(ctx context.Context) error
}

type mailTransport struct {
	apiKey      string
	senderEmail string
	senderName  string
}

func NewMailTransport(_ context.Context, cfg config.Brevo) (MailTransport, error) {
	return &mailTransport{
		apiKey:      cfg.APIKey,
		senderEmail: cfg.SenderEmail,
		senderName:  cfg.SenderName,
	}, nil
}

type brevoResp struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (t *mailTransport) Send(ctx context.Context, envelope *Envelope) (Outcome, error) {
	body := brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Email: t.senderEmail,
			Name:  t.senderName,
		},
		ReplyTo: &brevo.SendSmtpEmailReplyTo{
			Email: t.senderEmail,
		},
		To:          []brevo.SendSmtpEmailTo{{Email: envelope.To}},
		Subject:     envelope.Subject,
		HtmlContent: envelope.HtmlContent,
		Tags:        []string{envelope.TrackingID},
	}

	return t.postHttpRequest(ctx, sendEmailUrl, body)
}

func (t *mailTransport) Close(_ context.Context) error {
	return nil
}

func (t *mailTransport) postHttpRequest(ctx context.Context, url string, body interface{}) (Outcome, error) {
	js, err := json.Marshal(body)
	if err != nil {
		return OutcomePermanentError, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(js))
	if err != nil {
		return OutcomePermanentError, err
	}

	req.Header.Add("accept", "application/json")
	req.Header.Add("content-type", "application/json")
	req.Header.Add("api-key", t.apiKey)

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		// network errors are worth retrying
		return OutcomeTransientError, err
	}

	defer func() {
		_ = res.Body.Close()
	}()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return OutcomeTransientError, err
	}

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return OutcomeSent, nil
	}

	resp := new(brevoResp)
	_ = json.Unmarshal(b, resp)

	sendErr := fmt.Errorf("brevo error: %s, code: %s, status: %d", resp.Message, resp.Code, res.StatusCode)

	// 429 and 5xx are retryable, other 4xx are not (e.g. invalid address)
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
		return OutcomeTransientError, sendErr
	}

	return OutcomePermanentError, sendErr
}
