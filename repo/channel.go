package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"outreach/pkg/goutil"
)

var (
	ErrChannelCapExceeded = errors.New("channel daily cap exceeded")
)

// ChannelUsage tracks per-channel send counts per day, plus the last send time for
// least-recently-used tie breaking.
type ChannelUsage struct {
	ID           *uint64
	ChannelID    *uint64
	Day          *uint64
	Used         *uint64
	LastUsedTime *uint64
}

func (m *ChannelUsage) TableName() string {
	return "channel_usage_tab"
}

func (m *ChannelUsage) GetChannelID() uint64 {
	if m != nil && m.ChannelID != nil {
		return *m.ChannelID
	}
	return 0
}

func (m *ChannelUsage) GetUsed() uint64 {
	if m != nil && m.Used != nil {
		return *m.Used
	}
	return 0
}

func (m *ChannelUsage) GetLastUsedTime() uint64 {
	if m != nil && m.LastUsedTime != nil {
		return *m.LastUsedTime
	}
	return 0
}

type ChannelRepo interface {
	// CheckAndIncr reserves one send on a channel under its daily cap, atomically.
	CheckAndIncr(ctx context.Context, channelID, cap, day, now uint64) error
	GetUsages(ctx context.Context, day uint64) (map[uint64]*ChannelUsage, error)
}

type channelRepo struct {
	baseRepo BaseRepo
}

func NewChannelRepo(_ context.Context, baseRepo BaseRepo) ChannelRepo {
	return &channelRepo{baseRepo: baseRepo}
}

func (r *channelRepo) CheckAndIncr(ctx context.Context, channelID, cap, day, now uint64) error {
	f := &Filter{
		Conditions: []*Condition{
			{Field: "channel_id", Op: OpEq, Value: goutil.Uint64(channelID), NextLogicalOp: And},
			{Field: "day", Op: OpEq, Value: goutil.Uint64(day), NextLogicalOp: And},
			{Field: "used", Op: OpLt, Value: goutil.Uint64(cap)},
		},
	}
	exprs := map[string]interface{}{
		"used":           gorm.Expr("used + ?", 1),
		"last_used_time": now,
	}

	rows, err := r.baseRepo.IncrementColumns(ctx, new(ChannelUsage), exprs, f)
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	usage := new(ChannelUsage)
	err = r.baseRepo.Get(ctx, usage, &Filter{
		Conditions: []*Condition{
			{Field: "channel_id", Op: OpEq, Value: goutil.Uint64(channelID), NextLogicalOp: And},
			{Field: "day", Op: OpEq, Value: goutil.Uint64(day)},
		},
	})
	if err == nil {
		return ErrChannelCapExceeded
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := r.baseRepo.Create(ctx, &ChannelUsage{
		ChannelID:    goutil.Uint64(channelID),
		Day:          goutil.Uint64(day),
		Used:         goutil.Uint64(0),
		LastUsedTime: goutil.Uint64(0),
	}); err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}

	rows, err = r.baseRepo.IncrementColumns(ctx, new(ChannelUsage), exprs, f)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrChannelCapExceeded
	}

	return nil
}

func (r *channelRepo) GetUsages(ctx context.Context, day uint64) (map[uint64]*ChannelUsage, error) {
	res, _, err := r.baseRepo.GetMany(ctx, new(ChannelUsage), &Filter{
		Conditions: []*Condition{
			{Field: "day", Op: OpEq, Value: goutil.Uint64(day)},
		},
	})
	if err != nil {
		return nil, err
	}

	usages := make(map[uint64]*ChannelUsage, len(res))
	for _, m := range res {
		usage := m.(*ChannelUsage)
		usages[usage.GetChannelID()] = usage
	}

	return usages, nil
}
