package domain

import (
	"time"

	"github.com/google/uuid"
)

type BroadcastStatus string

const (
	BroadcastUpcoming               BroadcastStatus = "UPCOMING"
	BroadcastLive                   BroadcastStatus = "LIVE"
	BroadcastFinished               BroadcastStatus = "FINISHED"
	BroadcastCancelled              BroadcastStatus = "CANCELLED"
	BroadcastMissed                 BroadcastStatus = "MISSED"
	BroadcastBanned                 BroadcastStatus = "BANNED"
	BroadcastPendingReprogrammation BroadcastStatus = "PENDING_REPROGRAMMATION"
)

// OccupyingStatuses still hold a quota slot in their period.
var OccupyingStatuses = []BroadcastStatus{
	BroadcastUpcoming,
	BroadcastLive,
	BroadcastPendingReprogrammation,
}

// CollisionStatuses block a rescheduled broadcast from landing on the same day.
var CollisionStatuses = []BroadcastStatus{
	BroadcastUpcoming,
	BroadcastLive,
}

// Editable reports whether a broadcast may still be moved by its owner.
func (s BroadcastStatus) Editable() bool {
	return s == BroadcastUpcoming || s == BroadcastPendingReprogrammation
}

// Broadcast is a scheduled live stream owned by a shop.
type Broadcast struct {
	ID                  uuid.UUID       `json:"id"`
	ShopID              uuid.UUID       `json:"shop_id"`
	Title               string          `json:"title"`
	Description         string          `json:"description,omitempty"`
	Platform            string          `json:"platform"`
	URL                 string          `json:"url,omitempty"`
	Status              BroadcastStatus `json:"status"`
	ScheduledAt         time.Time       `json:"scheduled_at"`
	ScheduledEndPlanned time.Time       `json:"scheduled_end_planned"`
	OriginalScheduledAt *time.Time      `json:"original_scheduled_at,omitempty"`

	ReprogramReason      string     `json:"reprogram_reason,omitempty"`
	ReprogramBatchID     *uuid.UUID `json:"reprogram_batch_id,omitempty"`
	PendingReprogramNote string     `json:"pending_reprogram_note,omitempty"`

	EditCount    int        `json:"edit_count"`
	LastEditedAt *time.Time `json:"last_edited_at,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`

	ReportCount      int    `json:"report_count"`
	ModerationReason string `json:"moderation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MoveTo shifts the broadcast keeping the first scheduled instant it ever had.
func (b *Broadcast) MoveTo(at time.Time, duration time.Duration) {
	if b.OriginalScheduledAt == nil {
		orig := b.ScheduledAt
		b.OriginalScheduledAt = &orig
	}
	b.ScheduledAt = at
	b.ScheduledEndPlanned = at.Add(duration)
}

// BroadcastReport is one viewer report against a broadcast. Counted reports
// were filed late enough after the scheduled start to add to ReportCount.
type BroadcastReport struct {
	ID          uuid.UUID `json:"id"`
	BroadcastID uuid.UUID `json:"broadcast_id"`
	ReporterID  string    `json:"reporter_id"`
	Reason      string    `json:"reason"`
	Counted     bool      `json:"counted"`
	CreatedAt   time.Time `json:"created_at"`
}
