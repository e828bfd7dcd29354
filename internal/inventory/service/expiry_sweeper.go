package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pantrymind/pantrymind-backend/internal/inventory/events"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
	"github.com/pantrymind/pantrymind-backend/pkg/metrics"
)

// SweepReport summarizes one expiry sweep
type SweepReport struct {
	Scanned            int `json:"scanned"`
	MarkedExpiringSoon int `json:"marked_expiring_soon"`
	Wasted             int `json:"wasted"`
	Failed             int `json:"failed"`
}

// ExpirySweeper moves dated batches through the expiry state machine:
//
//	FRESH -> EXPIRING_SOON  when 0 < days left <= group.min_expiry_days_alert
//	FRESH|EXPIRING_SOON -> EXPIRED -> WASTED  when the expiry date is today or earlier
//
// Each batch is handled in its own transaction. A failing batch is logged
// and counted; the sweep carries on with the next one.
type ExpirySweeper struct {
	groups    GroupStore
	batches   BatchStore
	waste     WasteLogStore
	ledger    *Ledger
	notifier  *Notifier
	publisher *events.InventoryEventPublisher
	tx        txPolicy
	zones     *zones
	logger    *logger.Logger
}

// RunExpirySweep evaluates every active dated batch against now. The error
// is only set when the batches could not be listed at all.
func (s *ExpirySweeper) RunExpirySweep(ctx context.Context, now time.Time) (SweepReport, error) {
	var report SweepReport

	candidates, err := s.batches.ListDated(ctx)
	if err != nil {
		return report, fmt.Errorf("list dated batches: %w", err)
	}

	for _, c := range candidates {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Scanned++

		days := daysUntil(c.ExpiryDate, now, s.zones.location(c.Timezone))
		switch {
		case days <= 0:
			wasted, err := s.expire(ctx, c)
			if err != nil {
				report.Failed++
				s.logger.Error().Err(err).
					Str("batch_id", c.BatchID).
					Str("kitchen_id", c.KitchenID).
					Msg("failed to retire expired batch")
				continue
			}
			if wasted != nil {
				report.Wasted++
				s.afterExpire(ctx, c, wasted)
			}

		case days <= c.MinExpiryDaysAlert && c.Status == repository.StatusFresh:
			var changed bool
			err := s.tx.run(ctx, "expiry_sweep", func(ctx context.Context) error {
				var err error
				changed, err = s.batches.MarkExpiringSoon(ctx, c.BatchID)
				return err
			})
			if err != nil {
				report.Failed++
				s.logger.Error().Err(err).Str("batch_id", c.BatchID).Msg("failed to mark batch expiring soon")
				continue
			}
			if changed {
				report.MarkedExpiringSoon++
			}
		}
	}

	s.logger.Info().
		Int("scanned", report.Scanned).
		Int("expiring_soon", report.MarkedExpiringSoon).
		Int("wasted", report.Wasted).
		Int("failed", report.Failed).
		Msg("expiry sweep completed")

	return report, nil
}

// expire retires one batch to waste. It returns nil, nil when the batch was
// no longer active once locked.
func (s *ExpirySweeper) expire(ctx context.Context, c *repository.DatedBatch) (*repository.WasteLog, error) {
	var entry *repository.WasteLog

	err := s.tx.run(ctx, "expiry_sweep", func(ctx context.Context) error {
		entry = nil

		if _, err := s.groups.GetForUpdate(ctx, c.GroupID); err != nil {
			return err
		}
		b, err := s.batches.GetForUpdate(ctx, c.BatchID)
		if err != nil {
			return err
		}
		if !b.IsActive {
			return nil
		}

		qty := b.CurrentQuantity
		value := b.ValueOf(qty)
		b.Status = repository.StatusExpired
		b.Discard(qty)
		if err := s.batches.UpdateState(ctx, b); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}

		notes := fmt.Sprintf("Automatically logged - item expired on %s", c.ExpiryDate.Format(time.DateOnly))
		entry = &repository.WasteLog{
			BatchID:        b.ID,
			GroupID:        c.GroupID,
			KitchenID:      c.KitchenID,
			ItemName:       c.ItemName,
			QuantityWasted: qty,
			WasteReason:    repository.WasteExpired,
			EstimatedValue: value,
			ExpiryDate:     b.ExpiryDate,
			Notes:          &notes,
		}
		if err := s.waste.Create(ctx, entry); err != nil {
			return fmt.Errorf("write waste log: %w", err)
		}

		_, err = s.ledger.RecomputeTotals(ctx, c.GroupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *ExpirySweeper) afterExpire(ctx context.Context, c *repository.DatedBatch, entry *repository.WasteLog) {
	metrics.BatchesWasted.WithLabelValues(repository.WasteExpired).Inc()
	s.logger.Info().
		Str("batch_id", c.BatchID).
		Str("kitchen_id", c.KitchenID).
		Int64("quantity", entry.QuantityWasted).
		Str("estimated_value", entry.EstimatedValue.StringFixed(2)).
		Msg("expired batch moved to waste")

	related := c.BatchID
	if _, err := s.notifier.Raise(ctx, c.KitchenID, NotifyItemExpiredWasted, fmt.Sprintf("%s is expired!", c.ItemName), &related); err != nil {
		s.logger.Error().Err(err).Str("batch_id", c.BatchID).Msg("failed to raise expiry notification")
	}
	s.publisher.PublishStockWasted(ctx, entry)
}
