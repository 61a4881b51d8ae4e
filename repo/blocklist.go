package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"outreach/pkg/goutil"
)

const cacheKeyPrefixBlocklist = "blocklist"

// BlocklistEntry is a recipient address that must never be contacted, e.g. after a
// hard bounce, spam complaint or unsubscribe.
type BlocklistEntry struct {
	ID         *uint64
	Email      *string
	Reason     *string
	CreateTime *uint64
}

func (m *BlocklistEntry) TableName() string {
	return "blocklist_tab"
}

func (m *BlocklistEntry) GetID() uint64 {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return 0
}

type BlocklistRepo interface {
	Add(ctx context.Context, email, reason string, now uint64) error
	IsBlocked(ctx context.Context, email string) (bool, error)
}

type blocklistRepo struct {
	baseRepo  BaseRepo
	baseCache BaseCache
}

func NewBlocklistRepo(_ context.Context, baseRepo BaseRepo, baseCache BaseCache) BlocklistRepo {
	return &blocklistRepo{
		baseRepo:  baseRepo,
		baseCache: baseCache,
	}
}

func (r *blocklistRepo) Add(ctx context.Context, email, reason string, now uint64) error {
	if err := r.baseRepo.Create(ctx, &BlocklistEntry{
		Email:      goutil.String(email),
		Reason:     goutil.String(reason),
		CreateTime: goutil.Uint64(now),
	}); err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}

	r.baseCache.Set(ctx, cacheKeyPrefixBlocklist, email, true)

	return nil
}

func (r *blocklistRepo) IsBlocked(ctx context.Context, email string) (bool, error) {
	if v, ok := r.baseCache.Get(ctx, cacheKeyPrefixBlocklist, email); ok {
		return v.(bool), nil
	}

	entryModel := new(BlocklistEntry)
	err := r.baseRepo.Get(ctx, entryModel, &Filter{
		Conditions: []*Condition{
			{Field: "email", Op: OpEq, Value: goutil.String(email)},
		},
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.baseCache.Set(ctx, cacheKeyPrefixBlocklist, email, false)
			return false, nil
		}
		return false, err
	}

	r.baseCache.Set(ctx, cacheKeyPrefixBlocklist, email, true)

	return true, nil
}
