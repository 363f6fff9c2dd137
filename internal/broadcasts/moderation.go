package broadcasts

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/analianare-star/avellaneda-backend/internal/agenda"
	"github.com/analianare-star/avellaneda-backend/internal/domain"
	inats "github.com/analianare-star/avellaneda-backend/internal/nats"
	"github.com/analianare-star/avellaneda-backend/internal/store"
)

const (
	// ReportThreshold counted reports mark a broadcast MISSED and suspend the shop.
	ReportThreshold = 5
	// ReportGrace is how long after the scheduled start a report begins to count.
	ReportGrace = 5 * time.Minute
	// ReportWindow closes reporting this long after the scheduled start.
	ReportWindow = 30 * time.Minute

	defaultReportReason = "inappropriate content"
	missedReason        = "automatic block after validated reports"
	penaltyReason       = "validated reports: broadcast not held"
	defaultBanReason    = "interrupted by an administrator"
	shopBanReason       = "moderation block"
)

// Suspender suspends a shop's agenda. *agenda.Service satisfies it.
type Suspender interface {
	SuspendAndReschedule(ctx context.Context, shopID uuid.UUID, req agenda.SuspendRequest) (*agenda.Summary, error)
}

// WithSuspender sets who applies the agenda penalty once a broadcast reaches
// ReportThreshold. Without one the broadcast is still marked MISSED.
func WithSuspender(sp Suspender) Option {
	return func(s *Service) { s.suspender = sp }
}

// PenaltyDays is the agenda suspension applied to a shop on the given plan
// when one of its broadcasts is reported as not held.
func PenaltyDays(plan string) int {
	key := strings.ToLower(strings.TrimSpace(plan))
	if strings.Contains(key, "maxima") || key == "pro" {
		return 4
	}
	return agenda.DefaultSuspensionDays
}

// ReportOutcome is the result of filing a report.
type ReportOutcome struct {
	Report     *domain.BroadcastReport `json:"report"`
	Broadcast  *domain.Broadcast       `json:"broadcast"`
	Suspension *agenda.Summary         `json:"suspension,omitempty"`
}

// Report records a viewer report against a broadcast that should be on air.
// Reports are accepted during the first ReportWindow after the scheduled start
// and count once ReportGrace has passed. The report that reaches
// ReportThreshold marks the broadcast MISSED and suspends the shop's agenda
// for PenaltyDays of its plan.
func (s *Service) Report(ctx context.Context, id uuid.UUID, reason string, actor domain.Actor) (*ReportOutcome, error) {
	const op = "broadcasts.report"

	if strings.TrimSpace(actor.ID) == "" {
		return nil, domain.Invalid(op, "reporter is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultReportReason
	}

	var (
		out     *ReportOutcome
		tripped bool
		plan    string
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		tripped = false

		b, err := tx.GetBroadcastForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if actor.Type == domain.ActorShop && actor.ShopID == b.ShopID {
			return domain.Forbidden(op, "shops cannot report their own broadcasts")
		}
		if b.Status != domain.BroadcastUpcoming && b.Status != domain.BroadcastLive {
			return domain.InvalidSchedule(op, "broadcast is %s and can no longer be reported", b.Status)
		}

		now := s.now()
		elapsed := now.Sub(b.ScheduledAt)
		if elapsed < 0 {
			return domain.InvalidSchedule(op, "broadcast has not started yet")
		}
		if elapsed > ReportWindow {
			return domain.InvalidSchedule(op, "the report window has closed")
		}

		report := &domain.BroadcastReport{
			ID:          uuid.New(),
			BroadcastID: b.ID,
			ReporterID:  actor.ID,
			Reason:      reason,
			Counted:     elapsed >= ReportGrace,
			CreatedAt:   now,
		}
		if err := tx.InsertReport(ctx, report); err != nil {
			return err
		}

		if report.Counted {
			b.ReportCount++
			if b.ReportCount >= ReportThreshold {
				shop, err := tx.GetShop(ctx, b.ShopID)
				if err != nil {
					return err
				}
				plan = shop.Plan
				tripped = true
				b.Status = domain.BroadcastMissed
				b.ModerationReason = missedReason
				b.FinishedAt = &now
			}
			b.UpdatedAt = now
			if err := tx.UpdateBroadcast(ctx, b); err != nil {
				return domain.Internal(err, op, "counting report")
			}
		}
		out = &ReportOutcome{Report: report, Broadcast: b}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b := out.Broadcast
	s.logger.Info("broadcast reported",
		"broadcast_id", b.ID,
		"shop_id", b.ShopID,
		"counted", out.Report.Counted,
		"report_count", b.ReportCount,
	)
	if !tripped {
		return out, nil
	}

	inats.Emit(ctx, s.publisher, nil, inats.NewAuditEvent(
		b.ShopID, inats.EventBroadcastMissed, "broadcast", b.ID.String(),
		details(map[string]any{"report_count": b.ReportCount, "reason": missedReason}),
		domain.SystemActor, out.Report.CreatedAt,
	))
	if s.suspender == nil {
		return out, nil
	}
	summary, err := s.suspender.SuspendAndReschedule(ctx, b.ShopID, agenda.SuspendRequest{
		Days:   PenaltyDays(plan),
		Reason: penaltyReason,
		Actor:  domain.SystemActor,
	})
	if err != nil {
		// The broadcast stays MISSED; a shop that cannot be suspended keeps its status.
		s.logger.Error("applying report penalty", "shop_id", b.ShopID, "broadcast_id", b.ID, "error", err)
		return out, nil
	}
	out.Suspension = summary
	return out, nil
}

// Ban stops a broadcast by moderation and bans its shop. Only administrators
// may ban.
func (s *Service) Ban(ctx context.Context, id uuid.UUID, reason string, actor domain.Actor) (*domain.Broadcast, error) {
	const op = "broadcasts.ban"

	if !actor.IsAdmin() {
		return nil, domain.Forbidden(op, "only administrators can ban broadcasts")
	}
	reason = strings.TrimSpace(reason)

	banned, err := s.mutate(ctx, op, id, actor, func(ctx context.Context, tx store.Tx, b *domain.Broadcast, now time.Time) error {
		if b.Status == domain.BroadcastBanned {
			return domain.Invalid(op, "broadcast is already banned")
		}
		b.Status = domain.BroadcastBanned
		b.ModerationReason = orDefault(reason, defaultBanReason)
		if b.StartedAt != nil && b.FinishedAt == nil {
			b.FinishedAt = &now
		}
		change := domain.ShopStatusChange{
			Status: domain.ShopBanned,
			Reason: orDefault(reason, shopBanReason),
			At:     now,
		}
		if err := tx.UpdateShopStatus(ctx, b.ShopID, change); err != nil {
			return domain.Internal(err, op, "banning shop")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("broadcast banned", "broadcast_id", banned.ID, "shop_id", banned.ShopID, "actor_id", actor.ID)
	inats.Emit(ctx, s.publisher, nil, inats.NewAuditEvent(
		banned.ShopID, inats.EventBroadcastBanned, "broadcast", banned.ID.String(),
		details(map[string]any{"reason": banned.ModerationReason}),
		actor, banned.UpdatedAt,
	))
	return banned, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func details(fields map[string]any) string {
	raw, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(raw)
}
