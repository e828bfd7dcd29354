package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
)

// DedupWindow is how long a raised alert type suppresses the same type for a kitchen
const DedupWindow = 24 * time.Hour

// AlertReport summarizes one alert pass
type AlertReport struct {
	KitchensEvaluated int `json:"kitchens_evaluated"`
	Raised            int `json:"raised"`
	Deduplicated      int `json:"deduplicated"`
	Failed            int `json:"failed"`
}

// AlertEngine raises aggregated stock and expiry alerts at each kitchen's
// configured time of day.
type AlertEngine struct {
	kitchens      KitchenStore
	groups        GroupStore
	batches       BatchStore
	notifications NotificationStore
	notifier      *Notifier
	tx            txPolicy
	zones         *zones
	logger        *logger.Logger
}

// alertCounts is what one kitchen's evaluation found
type alertCounts struct {
	lowStock int
	expiring int
	expired  int
}

// RunAlertPass evaluates every kitchen with alerts enabled whose alert
// hour and minute equal now in the kitchen's time zone. Per-kitchen failures
// are logged and counted.
//
// Alerts are stamped with now truncated to the minute, so the pass that
// runs for the same minute on the next day falls just outside DedupWindow.
func (e *AlertEngine) RunAlertPass(ctx context.Context, now time.Time) (AlertReport, error) {
	var report AlertReport
	now = now.Truncate(time.Minute)

	kitchens, err := e.kitchens.ListAlertsEnabled(ctx)
	if err != nil {
		return report, fmt.Errorf("list kitchens: %w", err)
	}

	for _, k := range kitchens {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		local := now.In(e.zones.location(k.Timezone))
		if local.Hour() != k.AlertTimeHour || local.Minute() != k.AlertTimeMinute {
			continue
		}
		report.KitchensEvaluated++

		log := e.logger.WithKitchenID(k.ID)
		counts, err := e.evaluate(ctx, k, now)
		if err != nil {
			report.Failed++
			log.Error().Err(err).Msg("alert evaluation failed")
			continue
		}

		alerts := []struct {
			kind    string
			count   int
			message string
		}{
			{NotifyLowStock, counts.lowStock, "%d items are running low on stock"},
			{NotifyExpiryWarning, counts.expiring, "%d items expiring soon"},
			{NotifyItemsExpired, counts.expired, "%d items have expired"},
		}

		for _, a := range alerts {
			if a.count == 0 {
				continue
			}
			raised, err := e.raiseOnce(ctx, k.ID, a.kind, fmt.Sprintf(a.message, a.count), now)
			if err != nil {
				report.Failed++
				log.Error().Err(err).Str("type", a.kind).Msg("failed to raise alert")
				continue
			}
			if raised {
				report.Raised++
			} else {
				report.Deduplicated++
			}
		}
	}

	e.logger.Info().
		Int("kitchens", report.KitchensEvaluated).
		Int("raised", report.Raised).
		Int("deduplicated", report.Deduplicated).
		Int("failed", report.Failed).
		Msg("alert pass completed")

	return report, nil
}

func (e *AlertEngine) evaluate(ctx context.Context, k *repository.Kitchen, now time.Time) (alertCounts, error) {
	var counts alertCounts

	low, err := e.groups.ListLowStock(ctx, k.ID)
	if err != nil {
		return counts, fmt.Errorf("list low stock: %w", err)
	}
	counts.lowStock = len(low)

	dated, err := e.batches.ListDatedByKitchen(ctx, k.ID)
	if err != nil {
		return counts, fmt.Errorf("list dated batches: %w", err)
	}

	loc := e.zones.location(k.Timezone)
	for _, b := range dated {
		days := daysUntil(b.ExpiryDate, now, loc)
		switch {
		case days <= 0:
			counts.expired++
		case days <= b.MinExpiryDaysAlert:
			counts.expiring++
		}
	}

	return counts, nil
}

// raiseOnce raises the alert unless the kitchen already got the same type
// in the DedupWindow ending at now. It reports whether a notification was raised.
//
// Check and insert run under a transaction-scoped lock on (kitchen, type), so
// concurrent passes from other processes cannot both raise.
func (e *AlertEngine) raiseOnce(ctx context.Context, kitchenID, kind, message string, now time.Time) (bool, error) {
	var raised *repository.Notification
	err := e.tx.run(ctx, "alert_pass", func(ctx context.Context) error {
		raised = nil
		if err := e.notifications.LockDedup(ctx, kitchenID, kind); err != nil {
			return fmt.Errorf("lock %s: %w", kind, err)
		}
		exists, err := e.notifications.ExistsSince(ctx, kitchenID, kind, now.Add(-DedupWindow))
		if err != nil {
			return fmt.Errorf("check recent %s: %w", kind, err)
		}
		if exists {
			return nil
		}
		raised, err = e.notifier.store(ctx, now, kitchenID, kind, message, nil)
		return err
	})
	if err != nil {
		return false, err
	}
	if raised == nil {
		return false, nil
	}
	e.notifier.announce(ctx, raised)
	return true, nil
}
