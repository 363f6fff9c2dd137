package domain

import (
	"time"

	"github.com/google/uuid"
)

// Resource is a kind of consumable content.
type Resource string

const (
	ResourceBroadcast Resource = "BROADCAST"
	ResourcePost      Resource = "POST"
)

// Valid reports whether r is a known resource.
func (r Resource) Valid() bool {
	return r == ResourceBroadcast || r == ResourcePost
}

// Label is the lower-case name used in user-facing messages.
func (r Resource) Label() string {
	switch r {
	case ResourceBroadcast:
		return "broadcast"
	case ResourcePost:
		return "post"
	default:
		return string(r)
	}
}

type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

type Reason string

const (
	ReasonPlanBase        Reason = "PLAN_BASE"
	ReasonPurchase        Reason = "PURCHASE"
	ReasonLegacyMigration Reason = "LEGACY_MIGRATION"
	ReasonAdminGrant      Reason = "ADMIN_GRANT"
)

type RefType string

const (
	RefBroadcast RefType = "BROADCAST"
	RefPost      RefType = "POST"
	RefPurchase  RefType = "PURCHASE"
	RefSystem    RefType = "SYSTEM"
)

// Ref points at whatever caused a ledger entry.
type Ref struct {
	Type RefType
	ID   string
}

// Source is the part of the wallet a reservation was charged to.
type Source string

const (
	SourceBase  Source = "BASE"
	SourceExtra Source = "EXTRA"
)

// QuotaWallet holds one shop's current-period counters and extra balances.
type QuotaWallet struct {
	ShopID uuid.UUID `json:"shop_id"`

	WeeklyBroadcastBaseLimit int    `json:"weekly_broadcast_base_limit"`
	WeeklyBroadcastUsed      int    `json:"weekly_broadcast_used"`
	WeeklyBroadcastWeekKey   string `json:"weekly_broadcast_week_key"`
	BroadcastExtraBalance    int    `json:"broadcast_extra_balance"`

	DailyPostLimit   int    `json:"daily_post_limit"`
	DailyPostUsed    int    `json:"daily_post_used"`
	DailyPostDateKey string `json:"daily_post_date_key"`
	PostExtraBalance int    `json:"post_extra_balance"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Counter is a resource-scoped view of the wallet fields.
type Counter struct {
	Limit int
	Used  int
	Key   string
	Extra int
}

// Counter returns the counter fields for the given resource.
func (w *QuotaWallet) Counter(r Resource) Counter {
	if r == ResourcePost {
		return Counter{Limit: w.DailyPostLimit, Used: w.DailyPostUsed, Key: w.DailyPostDateKey, Extra: w.PostExtraBalance}
	}
	return Counter{
		Limit: w.WeeklyBroadcastBaseLimit,
		Used:  w.WeeklyBroadcastUsed,
		Key:   w.WeeklyBroadcastWeekKey,
		Extra: w.BroadcastExtraBalance,
	}
}

// SetCounter writes c back into the wallet fields for the given resource.
func (w *QuotaWallet) SetCounter(r Resource, c Counter) {
	if r == ResourcePost {
		w.DailyPostLimit, w.DailyPostUsed, w.DailyPostDateKey, w.PostExtraBalance = c.Limit, c.Used, c.Key, c.Extra
		return
	}
	w.WeeklyBroadcastBaseLimit = c.Limit
	w.WeeklyBroadcastUsed = c.Used
	w.WeeklyBroadcastWeekKey = c.Key
	w.BroadcastExtraBalance = c.Extra
}

// QuotaTransaction is an immutable ledger entry.
type QuotaTransaction struct {
	ID        uuid.UUID `json:"id"`
	ShopID    uuid.UUID `json:"shop_id"`
	Resource  Resource  `json:"resource"`
	Direction Direction `json:"direction"`
	Amount    int       `json:"amount"`
	Reason    Reason    `json:"reason"`
	RefType   RefType   `json:"ref_type,omitempty"`
	RefID     string    `json:"ref_id,omitempty"`
	ActorType ActorType `json:"actor_type"`
	ActorID   string    `json:"actor_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
