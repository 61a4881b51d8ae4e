package handler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"outreach/config"
	"outreach/dep"
	"outreach/entity"
	"outreach/pkg/errutil"
	"outreach/pkg/goutil"
	"outreach/pkg/mq"
	"outreach/repo"
)

// TrackingPlaceholder is the token content carries in place of the tracking id.
// The dispatch engine swaps it for the real id right before the send, so the id
// exists only once a send is actually attempted.
const TrackingPlaceholder = "__TRACKING_ID__"

var (
	ErrAllChannelsCapped = errors.New("all channels at daily cap")
	ErrEmptyRecipient    = errors.New("recipient is empty")
)

// EventProducer publishes pipeline events. Satisfied by *mq.Producer.
type EventProducer interface {
	SendMessage(msg *mq.Message) error
}

// DispatchHandler submits one send: it reserves quota, picks a channel, injects a
// tracking id, and drives the retry loop to a terminal record state.
type DispatchHandler interface {
	Dispatch(ctx context.Context, req *DispatchRequest, res *DispatchResponse) error
}

type dispatchHandler struct {
	cfg         *config.Config
	quotaRepo   repo.QuotaRepo
	channelRepo repo.ChannelRepo
	recordRepo  repo.DispatchRecordRepo
	transport   dep.MailTransport
	producer    EventProducer
	limiters    map[uint64]*rate.Limiter
}

func NewDispatchHandler(
	cfg *config.Config,
	quotaRepo repo.QuotaRepo,
	channelRepo repo.ChannelRepo,
	recordRepo repo.DispatchRecordRepo,
	transport dep.MailTransport,
	producer EventProducer,
) DispatchHandler {
	limiters := make(map[uint64]*rate.Limiter, len(cfg.Channels))
	for _, channel := range cfg.Channels {
		burst := int(channel.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiters[channel.ID] = rate.NewLimiter(rate.Limit(channel.RatePerSecond), burst)
	}

	return &dispatchHandler{
		cfg:         cfg,
		quotaRepo:   quotaRepo,
		channelRepo: channelRepo,
		recordRepo:  recordRepo,
		transport:   transport,
		producer:    producer,
		limiters:    limiters,
	}
}

type DispatchRequest struct {
	Campaign    *entity.Campaign `json:"campaign,omitempty"`
	Recipient   *string          `json:"recipient,omitempty"`
	VariantID   *uint64          `json:"variant_id,omitempty"`
	Subject     *string          `json:"subject,omitempty"`
	HtmlContent *string          `json:"html_content,omitempty"`
}

func (r *DispatchRequest) GetRecipient() string {
	if r != nil && r.Recipient != nil {
		return *r.Recipient
	}
	return ""
}

func (r *DispatchRequest) GetSubject() string {
	if r != nil && r.Subject != nil {
		return *r.Subject
	}
	return ""
}

func (r *DispatchRequest) GetHtmlContent() string {
	if r != nil && r.HtmlContent != nil {
		return *r.HtmlContent
	}
	return ""
}

type DispatchResponse struct {
	Record *entity.DispatchRecord `json:"record,omitempty"`
}

func (h *dispatchHandler) Dispatch(ctx context.Context, req *DispatchRequest, res *DispatchResponse) error {
	if req.GetRecipient() == "" {
		return errutil.ValidationError(ErrEmptyRecipient)
	}

	var (
		campaign = req.Campaign
		now      = uint64(time.Now().Unix())
		day      = goutil.DayBucket(now)
	)

	// quota check and increment is one atomic statement, safe under concurrent dispatch
	if err := h.quotaRepo.CheckAndIncr(ctx, campaign, day, now); err != nil {
		if errors.Is(err, repo.ErrQuotaExceeded) {
			return errutil.QuotaExceededError(err)
		}
		return err
	}

	record := &entity.DispatchRecord{
		CampaignID:   campaign.ID,
		Recipient:    req.Recipient,
		VariantID:    req.VariantID,
		Status:       entity.DispatchStatusQueued,
		AttemptCount: goutil.Uint32(0),
		TrackingID:   goutil.String(uuid.New().String()),
		Day:          goutil.Uint64(day),
		CreateTime:   goutil.Uint64(now),
		UpdateTime:   goutil.Uint64(now),
	}

	// unique key on (campaign, recipient, day) keeps at most one record per
	// recipient per day, checked atomically with the insert
	if _, err := h.recordRepo.Create(ctx, record); err != nil {
		if releaseErr := h.quotaRepo.Release(ctx, campaign.GetID(), day); releaseErr != nil {
			log.Ctx(ctx).Error().Msgf("release quota failed: %v, campaign_id: %d", releaseErr, campaign.GetID())
		}
		if errors.Is(err, repo.ErrDuplicateDispatch) {
			return errutil.ConflictError(err)
		}
		return err
	}

	channel, err := h.selectChannel(ctx, day, now)
	if err != nil {
		record.Update(&entity.DispatchRecord{
			Status:     entity.DispatchStatusFailed,
			UpdateTime: goutil.Uint64(uint64(time.Now().Unix())),
		})
		if updateErr := h.recordRepo.Update(ctx, record); updateErr != nil {
			log.Ctx(ctx).Error().Msgf("update dispatch record failed: %v, record_id: %d", updateErr, record.GetID())
		}
		if releaseErr := h.quotaRepo.Release(ctx, campaign.GetID(), day); releaseErr != nil {
			log.Ctx(ctx).Error().Msgf("release quota failed: %v, campaign_id: %d", releaseErr, campaign.GetID())
		}
		if errors.Is(err, ErrAllChannelsCapped) {
			return errutil.QuotaExceededError(err)
		}
		return err
	}

	record.Update(&entity.DispatchRecord{
		ChannelID:  goutil.Uint64(channel.ID),
		UpdateTime: goutil.Uint64(uint64(time.Now().Unix())),
	})

	if err := h.limiters[channel.ID].Wait(ctx); err != nil {
		record.Update(&entity.DispatchRecord{
			Status:     entity.DispatchStatusFailed,
			UpdateTime: goutil.Uint64(uint64(time.Now().Unix())),
		})
		if updateErr := h.recordRepo.Update(ctx, record); updateErr != nil {
			log.Ctx(ctx).Error().Msgf("update dispatch record failed: %v, record_id: %d", updateErr, record.GetID())
		}
		if releaseErr := h.quotaRepo.Release(ctx, campaign.GetID(), day); releaseErr != nil {
			log.Ctx(ctx).Error().Msgf("release quota failed: %v, campaign_id: %d", releaseErr, campaign.GetID())
		}
		h.publishOutcome(ctx, record)
		return err
	}

	err = h.sendWithRetries(ctx, req, record)

	res.Record = record

	h.publishOutcome(ctx, record)

	return err
}

// selectChannel picks the highest-priority channel still under its daily cap,
// breaking priority ties by least recent use. Reserving capacity on the channel
// is atomic, so concurrent dispatches cannot exceed a cap.
func (h *dispatchHandler) selectChannel(ctx context.Context, day, now uint64) (*config.Channel, error) {
	usages, err := h.channelRepo.GetUsages(ctx, day)
	if err != nil {
		return nil, err
	}

	channels := make([]config.Channel, len(h.cfg.Channels))
	copy(channels, h.cfg.Channels)

	sort.SliceStable(channels, func(i, j int) bool {
		if channels[i].Priority != channels[j].Priority {
			return channels[i].Priority < channels[j].Priority
		}
		return usages[channels[i].ID].GetLastUsedTime() < usages[channels[j].ID].GetLastUsedTime()
	})

	for i := range channels {
		channel := channels[i]
		if err := h.channelRepo.CheckAndIncr(ctx, channel.ID, channel.DailyCap, day, now); err != nil {
			if errors.Is(err, repo.ErrChannelCapExceeded) {
				continue
			}
			return nil, err
		}
		return &channel, nil
	}

	return nil, ErrAllChannelsCapped
}

func (h *dispatchHandler) sendWithRetries(ctx context.Context, req *DispatchRequest, record *entity.DispatchRecord) error {
	var (
		maxRetries = h.cfg.Pipeline.MaxRetries
		trackingID = record.GetTrackingID()
		envelope   = &dep.Envelope{
			To:          req.GetRecipient(),
			Subject:     req.GetSubject(),
			HtmlContent: strings.ReplaceAll(req.GetHtmlContent(), TrackingPlaceholder, trackingID),
			TrackingID:  trackingID,
		}
	)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(h.cfg.Pipeline.BaseDelayMs) * time.Millisecond
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = time.Duration(h.cfg.Pipeline.MaxDelayMs) * time.Millisecond
	b.MaxElapsedTime = 0
	b.Reset()

	var lastErr error
	for attempt := uint32(1); attempt <= maxRetries; attempt++ {
		now := uint64(time.Now().Unix())
		record.Update(&entity.DispatchRecord{
			Status:          entity.DispatchStatusSending,
			AttemptCount:    goutil.Uint32(attempt),
			LastAttemptTime: goutil.Uint64(now),
			UpdateTime:      goutil.Uint64(now),
		})
		if err := h.recordRepo.Update(ctx, record); err != nil {
			return err
		}

		outcome, sendErr := h.transport.Send(ctx, envelope)
		lastErr = sendErr

		switch outcome {
		case dep.OutcomeSent:
			record.Update(&entity.DispatchRecord{
				Status:     entity.DispatchStatusSent,
				UpdateTime: goutil.Uint64(uint64(time.Now().Unix())),
			})
			return h.recordRepo.Update(ctx, record)
		case dep.OutcomePermanentError:
			// e.g. invalid address: terminal, no retry
			record.Update(&entity.DispatchRecord{
				Status:     entity.DispatchStatusFailed,
				UpdateTime: goutil.Uint64(uint64(time.Now().Unix())),
			})
			if err := h.recordRepo.Update(ctx, record); err != nil {
				return err
			}
			return errutil.PermanentTransportError(sendErr)
		default:
			log.Ctx(ctx).Warn().Msgf("transient send failure, attempt: %d, record_id: %d, err: %v",
				attempt, record.GetID(), sendErr)

			if attempt == maxRetries {
				break
			}

			select {
			case <-time.After(b.NextBackOff()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	// retries exhausted
	record.Update(&entity.DispatchRecord{
		Status:     entity.DispatchStatusFailed,
		UpdateTime: goutil.Uint64(uint64(time.Now().Unix())),
	})
	if err := h.recordRepo.Update(ctx, record); err != nil {
		return err
	}

	return errutil.TransientTransportError(fmt.Errorf("retries exhausted: %v", lastErr))
}

func (h *dispatchHandler) publishOutcome(ctx context.Context, record *entity.DispatchRecord) {
	if h.producer == nil {
		return
	}

	msg := &mq.Message{
		Payload: mq.PayloadDispatchOutcome,
		Key:     record.GetTrackingID(),
		Body: &mq.DispatchOutcome{
			DispatchRecordID: record.ID,
			CampaignID:       record.CampaignID,
			TrackingID:       record.TrackingID,
			Status:           goutil.Uint32(uint32(record.GetStatus())),
			EventTime:        goutil.Uint64(uint64(time.Now().Unix())),
		},
	}
	if err := h.producer.SendMessage(msg); err != nil {
		log.Ctx(ctx).Error().Msgf("publish dispatch outcome failed: %v, record_id: %d", err, record.GetID())
	}
}
