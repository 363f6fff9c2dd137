// Package memory provides an in-memory store.Store.
// It is intended for tests and local development: InTx is serialized behind a
// single mutex and rolls back by discarding a working copy of the state.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
	"github.com/analianare-star/avellaneda-backend/internal/store"
)

type state struct {
	shops      map[uuid.UUID]domain.Shop
	wallets    map[uuid.UUID]domain.QuotaWallet
	ledger     []domain.QuotaTransaction
	broadcasts map[uuid.UUID]domain.Broadcast
	posts      map[uuid.UUID]domain.Post
	purchases  map[uuid.UUID]domain.Purchase
	batches    map[uuid.UUID]domain.RescheduleBatch
	batchItems map[uuid.UUID][]domain.RescheduleItem
	reports    map[uuid.UUID][]domain.BroadcastReport
}

func newState() *state {
	return &state{
		shops:      make(map[uuid.UUID]domain.Shop),
		wallets:    make(map[uuid.UUID]domain.QuotaWallet),
		broadcasts: make(map[uuid.UUID]domain.Broadcast),
		posts:      make(map[uuid.UUID]domain.Post),
		purchases:  make(map[uuid.UUID]domain.Purchase),
		batches:    make(map[uuid.UUID]domain.RescheduleBatch),
		batchItems: make(map[uuid.UUID][]domain.RescheduleItem),
		reports:    make(map[uuid.UUID][]domain.BroadcastReport),
	}
}

func (s *state) clone() *state {
	c := &state{
		shops:      maps.Clone(s.shops),
		wallets:    maps.Clone(s.wallets),
		ledger:     append([]domain.QuotaTransaction(nil), s.ledger...),
		broadcasts: maps.Clone(s.broadcasts),
		posts:      maps.Clone(s.posts),
		purchases:  maps.Clone(s.purchases),
		batches:    maps.Clone(s.batches),
		batchItems: make(map[uuid.UUID][]domain.RescheduleItem, len(s.batchItems)),
		reports:    make(map[uuid.UUID][]domain.BroadcastReport, len(s.reports)),
	}
	for id, items := range s.batchItems {
		c.batchItems[id] = append([]domain.RescheduleItem(nil), items...)
	}
	for id, reports := range s.reports {
		c.reports[id] = append([]domain.BroadcastReport(nil), reports...)
	}
	return c
}

// Store implements store.Store using in-memory maps.
type Store struct {
	mu    sync.Mutex
	state *state

	// OnUpdateBroadcast, when set, runs before every broadcast update and can
	// fail it. Tests use it to inject per-item failures.
	OnUpdateBroadcast func(b *domain.Broadcast) error
}

// New creates an empty store.
func New() *Store {
	return &Store{state: newState()}
}

// InTx implements store.Store.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &tx{st: work, hooks: s}); err != nil {
		return err
	}
	s.state = work
	return nil
}

type tx struct {
	st    *state
	hooks *Store
}

// Shops

func (t *tx) GetShop(_ context.Context, id uuid.UUID) (*domain.Shop, error) {
	shop, ok := t.st.shops[id]
	if !ok {
		return nil, domain.NotFound("store.get_shop", "shop", id.String())
	}
	return &shop, nil
}

func (t *tx) InsertShop(_ context.Context, shop *domain.Shop) error {
	if _, ok := t.st.shops[shop.ID]; ok {
		return fmt.Errorf("inserting shop: duplicate id %s", shop.ID)
	}
	t.st.shops[shop.ID] = *shop
	return nil
}

func (t *tx) UpdateShopStatus(_ context.Context, id uuid.UUID, change domain.ShopStatusChange) error {
	shop, ok := t.st.shops[id]
	if !ok {
		return domain.NotFound("store.update_shop_status", "shop", id.String())
	}
	change.Apply(&shop)
	t.st.shops[id] = shop
	return nil
}

func (t *tx) UpdateShopPlan(_ context.Context, id uuid.UUID, plan string, at time.Time) error {
	shop, ok := t.st.shops[id]
	if !ok {
		return domain.NotFound("store.update_shop_plan", "shop", id.String())
	}
	shop.Plan = plan
	shop.UpdatedAt = at
	t.st.shops[id] = shop
	return nil
}

func (t *tx) SetLegacyQuotaTotal(_ context.Context, id uuid.UUID, resource domain.Resource, total int) error {
	shop, ok := t.st.shops[id]
	if !ok {
		return domain.NotFound("store.set_legacy_quota_total", "shop", id.String())
	}
	if resource == domain.ResourcePost {
		shop.PostQuota = total
	} else {
		shop.BroadcastQuota = total
	}
	t.st.shops[id] = shop
	return nil
}

func (t *tx) ListShopsWithoutWallet(_ context.Context, limit int) ([]domain.Shop, error) {
	var out []domain.Shop
	for id, shop := range t.st.shops {
		if _, ok := t.st.wallets[id]; !ok {
			out = append(out, shop)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Wallets

func (t *tx) GetWalletForUpdate(_ context.Context, shopID uuid.UUID) (*domain.QuotaWallet, error) {
	w, ok := t.st.wallets[shopID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (t *tx) InsertWallet(_ context.Context, w *domain.QuotaWallet) error {
	if _, ok := t.st.wallets[w.ShopID]; ok {
		return fmt.Errorf("inserting wallet: shop %s already has one", w.ShopID)
	}
	t.st.wallets[w.ShopID] = *w
	return nil
}

func (t *tx) UpdateWallet(_ context.Context, w *domain.QuotaWallet) error {
	if _, ok := t.st.wallets[w.ShopID]; !ok {
		return domain.NotFound("store.update_wallet", "wallet", w.ShopID.String())
	}
	t.st.wallets[w.ShopID] = *w
	return nil
}

// Ledger

func (t *tx) AppendTransaction(_ context.Context, qt *domain.QuotaTransaction) error {
	if qt.Amount <= 0 {
		return fmt.Errorf("appending transaction: amount must be positive, got %d", qt.Amount)
	}
	t.st.ledger = append(t.st.ledger, *qt)
	return nil
}

func (t *tx) ListTransactions(_ context.Context, shopID uuid.UUID, f store.LedgerFilter) ([]domain.QuotaTransaction, int64, error) {
	f = f.Normalize()
	var matched []domain.QuotaTransaction
	for _, qt := range t.st.ledger {
		if qt.ShopID != shopID {
			continue
		}
		if f.Resource != "" && qt.Resource != f.Resource {
			continue
		}
		matched = append(matched, qt)
	}
	// Stable keeps append order for equal timestamps.
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := (f.Page - 1) * f.PageSize
	if start >= len(matched) {
		return []domain.QuotaTransaction{}, total, nil
	}
	end := min(start+f.PageSize, len(matched))
	return matched[start:end], total, nil
}

// Broadcasts

func (t *tx) GetBroadcastForUpdate(_ context.Context, id uuid.UUID) (*domain.Broadcast, error) {
	b, ok := t.st.broadcasts[id]
	if !ok {
		return nil, domain.NotFound("store.get_broadcast", "broadcast", id.String())
	}
	return &b, nil
}

func (t *tx) InsertBroadcast(_ context.Context, b *domain.Broadcast) error {
	if _, ok := t.st.broadcasts[b.ID]; ok {
		return fmt.Errorf("inserting broadcast: duplicate id %s", b.ID)
	}
	t.st.broadcasts[b.ID] = *b
	return nil
}

func (t *tx) UpdateBroadcast(_ context.Context, b *domain.Broadcast) error {
	if _, ok := t.st.broadcasts[b.ID]; !ok {
		return domain.NotFound("store.update_broadcast", "broadcast", b.ID.String())
	}
	if t.hooks.OnUpdateBroadcast != nil {
		if err := t.hooks.OnUpdateBroadcast(b); err != nil {
			return err
		}
	}
	t.st.broadcasts[b.ID] = *b
	return nil
}

func (t *tx) CountBroadcasts(_ context.Context, f store.BroadcastFilter) (int, error) {
	n := 0
	for _, b := range t.st.broadcasts {
		if f.Match(&b) {
			n++
		}
	}
	return n, nil
}

func (t *tx) ListBroadcasts(_ context.Context, f store.BroadcastFilter) ([]domain.Broadcast, error) {
	out := []domain.Broadcast{}
	for _, b := range t.st.broadcasts {
		if f.Match(&b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Posts

func (t *tx) InsertPost(_ context.Context, p *domain.Post) error {
	if _, ok := t.st.posts[p.ID]; ok {
		return fmt.Errorf("inserting post: duplicate id %s", p.ID)
	}
	t.st.posts[p.ID] = *p
	return nil
}

func (t *tx) CountPosts(_ context.Context, f store.PostFilter) (int, error) {
	n := 0
	for _, p := range t.st.posts {
		if f.Match(&p) {
			n++
		}
	}
	return n, nil
}

// Purchases

func (t *tx) InsertPurchase(_ context.Context, p *domain.Purchase) error {
	t.st.purchases[p.ID] = *p
	return nil
}

// Reports

func (t *tx) InsertReport(_ context.Context, r *domain.BroadcastReport) error {
	for _, existing := range t.st.reports[r.BroadcastID] {
		if existing.ReporterID == r.ReporterID {
			return domain.Errorf(domain.ECONFLICT, "store.insert_report", "broadcast %s was already reported by %s", r.BroadcastID, r.ReporterID)
		}
	}
	t.st.reports[r.BroadcastID] = append(t.st.reports[r.BroadcastID], *r)
	return nil
}

// Batches

func (t *tx) InsertBatch(_ context.Context, b *domain.RescheduleBatch, items []domain.RescheduleItem) error {
	if _, ok := t.st.batches[b.ID]; ok {
		return fmt.Errorf("inserting batch: duplicate id %s", b.ID)
	}
	t.st.batches[b.ID] = *b
	t.st.batchItems[b.ID] = append([]domain.RescheduleItem(nil), items...)
	return nil
}

func (t *tx) GetBatch(_ context.Context, id uuid.UUID) (*domain.RescheduleBatch, []domain.RescheduleItem, error) {
	b, ok := t.st.batches[id]
	if !ok {
		return nil, nil, domain.NotFound("store.get_batch", "reschedule batch", id.String())
	}
	items := append([]domain.RescheduleItem(nil), t.st.batchItems[id]...)
	return &b, items, nil
}

func (t *tx) UpdateBatch(_ context.Context, b *domain.RescheduleBatch) error {
	if _, ok := t.st.batches[b.ID]; !ok {
		return domain.NotFound("store.update_batch", "reschedule batch", b.ID.String())
	}
	t.st.batches[b.ID] = *b
	return nil
}

func (t *tx) UpdateBatchItem(_ context.Context, item *domain.RescheduleItem) error {
	items := t.st.batchItems[item.BatchID]
	for i := range items {
		if items[i].BroadcastID == item.BroadcastID {
			items[i] = *item
			return nil
		}
	}
	return domain.NotFound("store.update_batch_item", "reschedule item", item.BroadcastID.String())
}
