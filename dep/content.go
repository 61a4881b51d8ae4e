package dep

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"outreach/config"
	"outreach/entity"
	"outreach/pkg/errutil"
)

var (
	ErrEmptyContent = errors.New("content service returned empty content")
)

type Content struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ContentService generates the outgoing email for one contact. Generation can be
// rejected on policy grounds, surfaced as a ContentPolicyViolation.
type ContentService interface {
	Generate(ctx context.Context, contact *entity.Contact, templateID, trackedURL string) (*Content, error)
	Close(ctx context.Context) error
}

type contentService struct {
	baseUrl    string
	httpClient *http.Client
}

func NewContentService(_ context.Context, cfg config.ContentService) (ContentService, error) {
	return &contentService{
		baseUrl: cfg.BaseUrl,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}, nil
}

type generateRequest struct {
	TemplateID string          `json:"template_id"`
	Contact    *entity.Contact `json:"contact"`
	TrackedURL string          `json:"tracked_url"`
}

type generateResponse struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Error   string `json:"error"`
}

func (s *contentService) Generate(ctx context.Context, contact *entity.Contact, templateID, trackedURL string) (*Content, error) {
	js, err := json.Marshal(&generateRequest{
		TemplateID: templateID,
		Contact:    contact,
		TrackedURL: trackedURL,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseUrl+"/generate", bytes.NewReader(js))
	if err != nil {
		return nil, err
	}
	req.Header.Add("content-type", "application/json")

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = res.Body.Close()
	}()

	genRes := new(generateResponse)
	if err := json.NewDecoder(res.Body).Decode(genRes); err != nil {
		return nil, err
	}

	if res.StatusCode == http.StatusUnprocessableEntity {
		return nil, errutil.ContentPolicyViolation(fmt.Errorf("content rejected: %s", genRes.Error))
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content service error: %s, status: %d", genRes.Error, res.StatusCode)
	}

	if genRes.Subject == "" || genRes.Body == "" {
		return nil, ErrEmptyContent
	}

	return &Content{
		Subject: genRes.Subject,
		Body:    genRes.Body,
	}, nil
}

func (s *contentService) Close(_ context.Context) error {
	return nil
}
