package domain

import (
	"time"

	"github.com/google/uuid"
)

type ShopStatus string

const (
	ShopPendingVerification ShopStatus = "PENDING_VERIFICATION"
	ShopActive              ShopStatus = "ACTIVE"
	ShopAgendaSuspended     ShopStatus = "AGENDA_SUSPENDED"
	ShopHidden              ShopStatus = "HIDDEN"
	ShopBanned              ShopStatus = "BANNED"
)

// Shop is the directory record the quota core reads and projects legacy totals onto.
type Shop struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Plan            string     `json:"plan"`
	Status          ShopStatus `json:"status"`
	StatusReason    string     `json:"status_reason,omitempty"`
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty"`

	AgendaSuspendedUntil  *time.Time `json:"agenda_suspended_until,omitempty"`
	AgendaSuspendedReason string     `json:"agenda_suspended_reason,omitempty"`
	AgendaSuspendedBy     string     `json:"agenda_suspended_by,omitempty"`

	// Legacy display totals, always baseRemaining + extra.
	BroadcastQuota int `json:"broadcast_quota"`
	PostQuota      int `json:"post_quota"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AgendaSuspended reports whether broadcast scheduling is blocked at now.
func (s *Shop) AgendaSuspended(now time.Time) bool {
	if s.Status == ShopAgendaSuspended {
		return s.AgendaSuspendedUntil == nil || s.AgendaSuspendedUntil.After(now)
	}
	return s.AgendaSuspendedUntil != nil && s.AgendaSuspendedUntil.After(now)
}

// SuspensionExpired reports whether the shop is still marked suspended past its expiry.
func (s *Shop) SuspensionExpired(now time.Time) bool {
	return s.Status == ShopAgendaSuspended &&
		s.AgendaSuspendedUntil != nil &&
		!s.AgendaSuspendedUntil.After(now)
}

// LegacyTotal returns the legacy display field for r.
func (s *Shop) LegacyTotal(r Resource) int {
	if r == ResourcePost {
		return s.PostQuota
	}
	return s.BroadcastQuota
}

// ShopStatusChange describes a status write. Suspension fields are cleared
// unless SuspendedUntil is set.
type ShopStatusChange struct {
	Status         ShopStatus
	Reason         string
	SuspendedUntil *time.Time
	SuspendedBy    string
	At             time.Time
}

// Apply mutates s according to the change.
func (c ShopStatusChange) Apply(s *Shop) {
	at := c.At
	s.Status = c.Status
	s.StatusReason = c.Reason
	s.StatusChangedAt = &at
	s.UpdatedAt = at
	if c.SuspendedUntil != nil {
		until := *c.SuspendedUntil
		s.AgendaSuspendedUntil = &until
		s.AgendaSuspendedReason = c.Reason
		s.AgendaSuspendedBy = c.SuspendedBy
		return
	}
	s.AgendaSuspendedUntil = nil
	s.AgendaSuspendedReason = ""
	s.AgendaSuspendedBy = ""
}

// LiftChange returns the change that reactivates a suspended shop.
func LiftChange(at time.Time, reason string) ShopStatusChange {
	return ShopStatusChange{Status: ShopActive, Reason: reason, At: at}
}
