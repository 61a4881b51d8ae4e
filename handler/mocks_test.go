package handler

import (
	"context"
	"fmt"
	"sync"

	"outreach/dep"
	"outreach/entity"
	"outreach/pkg/errutil"
	"outreach/pkg/goutil"
	"outreach/pkg/mq"
	"outreach/repo"
)

type fakeTxService struct{}

func (f *fakeTxService) RunTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeBlocklistRepo struct {
	blocked map[string]bool
	err     error
}

func (f *fakeBlocklistRepo) Add(_ context.Context, email, _ string, _ uint64) error {
	if f.blocked == nil {
		f.blocked = make(map[string]bool)
	}
	f.blocked[email] = true
	return nil
}

func (f *fakeBlocklistRepo) IsBlocked(_ context.Context, email string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.blocked[email], nil
}

type fakeConsentRepo struct {
	consents map[string]*entity.Consent
	err      error
}

func consentKey(recipient, purpose string) string {
	return recipient + "|" + purpose
}

func (f *fakeConsentRepo) Create(_ context.Context, consent *entity.Consent) (uint64, error) {
	if f.consents == nil {
		f.consents = make(map[string]*entity.Consent)
	}
	f.consents[consentKey(consent.GetRecipient(), consent.GetPurpose())] = consent
	return 1, nil
}

func (f *fakeConsentRepo) Update(_ context.Context, _ *entity.Consent) error {
	return nil
}

func (f *fakeConsentRepo) GetByRecipientPurpose(_ context.Context, recipient, purpose string) (*entity.Consent, error) {
	if f.err != nil {
		return nil, f.err
	}
	consent, ok := f.consents[consentKey(recipient, purpose)]
	if !ok {
		return nil, repo.ErrConsentNotFound
	}
	return consent, nil
}

type fakeVariantRepo struct {
	mu       sync.Mutex
	variants []*entity.AffiliateVariant
}

func (f *fakeVariantRepo) Create(_ context.Context, variant *entity.AffiliateVariant) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uint64(len(f.variants) + 1)
	variant.ID = goutil.Uint64(id)
	f.variants = append(f.variants, variant)
	return id, nil
}

func (f *fakeVariantRepo) GetByID(_ context.Context, id uint64) (*entity.AffiliateVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.variants {
		if v.GetID() == id {
			return v, nil
		}
	}
	return nil, repo.ErrVariantNotFound
}

func (f *fakeVariantRepo) GetByCampaign(_ context.Context, campaignID uint64) ([]*entity.AffiliateVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]*entity.AffiliateVariant, 0)
	for _, v := range f.variants {
		if v.GetCampaignID() == campaignID {
			res = append(res, v)
		}
	}
	return res, nil
}

func (f *fakeVariantRepo) IncrClickCount(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.variants {
		if v.GetID() == id {
			v.ClickCount = goutil.Uint64(v.GetClickCount() + 1)
			return nil
		}
	}
	return repo.ErrVariantNotFound
}

func (f *fakeVariantRepo) IncrConversionCount(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.variants {
		if v.GetID() == id {
			v.ConversionCount = goutil.Uint64(v.GetConversionCount() + 1)
			return nil
		}
	}
	return repo.ErrVariantNotFound
}

type fakeQuotaRepo struct {
	mu   sync.Mutex
	used map[uint64]uint64
}

func (f *fakeQuotaRepo) CheckAndIncr(_ context.Context, campaign *entity.Campaign, day, _ uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used == nil {
		f.used = make(map[uint64]uint64)
	}
	if f.used[day] >= campaign.GetDailyQuota() {
		return repo.ErrQuotaExceeded
	}
	f.used[day]++
	return nil
}

func (f *fakeQuotaRepo) Release(_ context.Context, _ uint64, day uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used[day] > 0 {
		f.used[day]--
	}
	return nil
}

func (f *fakeQuotaRepo) GetUsed(_ context.Context, _ uint64, day uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used[day], nil
}

type fakeChannelRepo struct {
	mu       sync.Mutex
	used     map[uint64]uint64
	lastUsed map[uint64]uint64
}

func (f *fakeChannelRepo) CheckAndIncr(_ context.Context, channelID, cap, _, now uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used == nil {
		f.used = make(map[uint64]uint64)
		f.lastUsed = make(map[uint64]uint64)
	}
	if f.used[channelID] >= cap {
		return repo.ErrChannelCapExceeded
	}
	f.used[channelID]++
	f.lastUsed[channelID] = now
	return nil
}

func (f *fakeChannelRepo) GetUsages(_ context.Context, _ uint64) (map[uint64]*repo.ChannelUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	usages := make(map[uint64]*repo.ChannelUsage)
	for id, used := range f.used {
		usages[id] = &repo.ChannelUsage{
			ChannelID:    goutil.Uint64(id),
			Used:         goutil.Uint64(used),
			LastUsedTime: goutil.Uint64(f.lastUsed[id]),
		}
	}
	return usages, nil
}

type fakeRecordRepo struct {
	mu      sync.Mutex
	nextID  uint64
	records []*entity.DispatchRecord
}

func recordKey(r *entity.DispatchRecord) string {
	return fmt.Sprintf("%d|%s|%d", r.GetCampaignID(), r.GetRecipient(), r.GetDay())
}

func (f *fakeRecordRepo) Create(_ context.Context, record *entity.DispatchRecord) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.records {
		if recordKey(existing) == recordKey(record) {
			return 0, repo.ErrDuplicateDispatch
		}
	}
	f.nextID++
	record.ID = goutil.Uint64(f.nextID)
	clone := *record
	f.records = append(f.records, &clone)
	return f.nextID, nil
}

func (f *fakeRecordRepo) Update(_ context.Context, record *entity.DispatchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.records {
		if existing.GetID() == record.GetID() {
			clone := *record
			f.records[i] = &clone
			return nil
		}
	}
	return repo.ErrDispatchRecordNotFound
}

func (f *fakeRecordRepo) GetByID(_ context.Context, id uint64) (*entity.DispatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.GetID() == id {
			return r, nil
		}
	}
	return nil, repo.ErrDispatchRecordNotFound
}

func (f *fakeRecordRepo) GetByTrackingID(_ context.Context, trackingID string) (*entity.DispatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.GetTrackingID() == trackingID {
			return r, nil
		}
	}
	return nil, repo.ErrDispatchRecordNotFound
}

func (f *fakeRecordRepo) GetMany(_ context.Context, filter *repo.DispatchRecordFilter) ([]*entity.DispatchRecord, *repo.Pagination, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]*entity.DispatchRecord, 0)
	for _, r := range f.records {
		if filter.CampaignID != nil && r.GetCampaignID() != *filter.CampaignID {
			continue
		}
		if filter.Recipient != nil && r.GetRecipient() != *filter.Recipient {
			continue
		}
		if filter.Status != nil && uint32(r.GetStatus()) != *filter.Status {
			continue
		}
		if filter.Day != nil && r.GetDay() != *filter.Day {
			continue
		}
		res = append(res, r)
	}
	return res, nil, nil
}

func (f *fakeRecordRepo) CountByCampaignDay(_ context.Context, campaignID, day uint64) (uint64, error) {
	records, _, _ := f.GetMany(context.Background(), &repo.DispatchRecordFilter{
		CampaignID: goutil.Uint64(campaignID),
		Day:        goutil.Uint64(day),
	})
	return uint64(len(records)), nil
}

type fakeSnapshotRepo struct {
	mu        sync.Mutex
	nextID    uint64
	snapshots []*entity.PerformanceSnapshot
}

func (f *fakeSnapshotRepo) Create(_ context.Context, snapshot *entity.PerformanceSnapshot) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	snapshot.ID = goutil.Uint64(f.nextID)
	f.snapshots = append(f.snapshots, snapshot)
	return f.nextID, nil
}

func (f *fakeSnapshotRepo) Update(_ context.Context, snapshot *entity.PerformanceSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.snapshots {
		if s.GetID() == snapshot.GetID() {
			f.snapshots[i] = snapshot
			return nil
		}
	}
	return repo.ErrSnapshotNotFound
}

func (f *fakeSnapshotRepo) GetByCampaignDay(_ context.Context, campaignID, day uint64) (*entity.PerformanceSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.snapshots {
		if s.GetCampaignID() == campaignID && s.GetDay() == day {
			return s, nil
		}
	}
	return nil, repo.ErrSnapshotNotFound
}

func (f *fakeSnapshotRepo) GetLastN(_ context.Context, campaignID uint64, n int) ([]*entity.PerformanceSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]*entity.PerformanceSnapshot, 0)
	// snapshots are appended in day order, return most recent first
	for i := len(f.snapshots) - 1; i >= 0 && len(res) < n; i-- {
		if f.snapshots[i].GetCampaignID() == campaignID {
			res = append(res, f.snapshots[i])
		}
	}
	return res, nil
}

func (f *fakeSnapshotRepo) GetLatest(ctx context.Context, campaignID uint64) (*entity.PerformanceSnapshot, error) {
	snapshots, err := f.GetLastN(ctx, campaignID, 1)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, repo.ErrSnapshotNotFound
	}
	return snapshots[0], nil
}

type fakeSkippedContactRepo struct {
	mu      sync.Mutex
	skipped []*entity.SkippedContact
}

func (f *fakeSkippedContactRepo) Create(_ context.Context, skipped *entity.SkippedContact) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uint64(len(f.skipped) + 1)
	skipped.ID = goutil.Uint64(id)
	f.skipped = append(f.skipped, skipped)
	return id, nil
}

func (f *fakeSkippedContactRepo) GetMany(_ context.Context, filter *repo.SkippedContactFilter) ([]*entity.SkippedContact, *repo.Pagination, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]*entity.SkippedContact, 0)
	for _, s := range f.skipped {
		if filter.CampaignID != nil && s.GetCampaignID() != *filter.CampaignID {
			continue
		}
		res = append(res, s)
	}
	return res, nil, nil
}

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns []*entity.Campaign
}

func (f *fakeCampaignRepo) Create(_ context.Context, campaign *entity.Campaign) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uint64(len(f.campaigns) + 1)
	campaign.ID = goutil.Uint64(id)
	f.campaigns = append(f.campaigns, campaign)
	return id, nil
}

func (f *fakeCampaignRepo) GetByID(_ context.Context, id uint64) (*entity.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.campaigns {
		if c.GetID() == id {
			return c, nil
		}
	}
	return nil, repo.ErrCampaignNotFound
}

func (f *fakeCampaignRepo) GetMany(_ context.Context, filter *repo.CampaignFilter) ([]*entity.Campaign, *repo.Pagination, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]*entity.Campaign, 0)
	for _, c := range f.campaigns {
		if filter.Stage != nil && uint32(c.GetStage()) != *filter.Stage {
			continue
		}
		res = append(res, c)
	}
	return res, nil, nil
}

func (f *fakeCampaignRepo) GetRunnable(_ context.Context) ([]*entity.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]*entity.Campaign, 0)
	for _, c := range f.campaigns {
		if c.IsRunnable() {
			res = append(res, c)
		}
	}
	return res, nil
}

func (f *fakeCampaignRepo) Update(_ context.Context, campaign *entity.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.campaigns {
		if c.GetID() == campaign.GetID() {
			f.campaigns[i] = campaign
			return nil
		}
	}
	return repo.ErrCampaignNotFound
}

type fakeDiscoveryService struct {
	contacts []*entity.Contact
	err      error
}

func (f *fakeDiscoveryService) Discover(_ context.Context, _ *entity.TargetingCriteria, cursor string, limit uint32) ([]*entity.Contact, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}

	from := 0
	if cursor != "" {
		fmt.Sscanf(cursor, "%d", &from)
	}
	if from >= len(f.contacts) {
		return nil, "", nil
	}

	end := from + int(limit)
	if end > len(f.contacts) {
		end = len(f.contacts)
	}

	page := f.contacts[from:end]
	nextCursor := ""
	if uint32(len(page)) == limit {
		nextCursor = fmt.Sprintf("%d", end)
	}

	return page, nextCursor, nil
}

func (f *fakeDiscoveryService) Close(_ context.Context) error {
	return nil
}

type fakeContentService struct {
	err       error
	rejectAll bool
}

func (f *fakeContentService) Generate(_ context.Context, contact *entity.Contact, _, trackedURL string) (*dep.Content, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.rejectAll {
		return nil, errutil.ContentPolicyViolation(fmt.Errorf("rejected"))
	}
	return &dep.Content{
		Subject: "hello " + contact.GetEmail(),
		Body:    `<a href="` + trackedURL + `">deal</a>`,
	}, nil
}

func (f *fakeContentService) Close(_ context.Context) error {
	return nil
}

// fakeTransport replays a scripted list of outcomes, then keeps returning the
// last one.
type fakeTransport struct {
	mu       sync.Mutex
	script   []dep.Outcome
	calls    int
	lastSent *dep.Envelope
}

func (f *fakeTransport) Send(_ context.Context, envelope *dep.Envelope) (dep.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	outcome := dep.OutcomeSent
	if len(f.script) > 0 {
		i := f.calls
		if i >= len(f.script) {
			i = len(f.script) - 1
		}
		outcome = f.script[i]
	}
	f.calls++
	f.lastSent = envelope

	if outcome == dep.OutcomeSent {
		return outcome, nil
	}
	return outcome, fmt.Errorf("send failed")
}

func (f *fakeTransport) Close(_ context.Context) error {
	return nil
}

type fakeProducer struct {
	mu   sync.Mutex
	msgs []*mq.Message
}

func (f *fakeProducer) SendMessage(msg *mq.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}
