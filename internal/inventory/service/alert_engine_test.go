package service_test

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nineAM is the default kitchen alert time on the test day
var nineAM = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func seedAlertConditions(t *testing.T, e *testEnv) {
	t.Helper()
	// One item per alert condition, and one that raises nothing.
	e.purchase(t, "Flour", 100, "g")
	e.purchase(t, "Milk", 1, "l", expiring(daysFromNow(2)))
	e.purchase(t, "Yogurt", 6, "pcs", expiring(daysFromNow(-1)))
	e.purchase(t, "Cheese", 1, "kg", expiring(daysFromNow(10)))
}

func notificationsOfType(e *testEnv, kind string) []*repository.Notification {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	var out []*repository.Notification
	for _, n := range e.db.notifications {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

func TestRunAlertPass(t *testing.T) {
	e := newTestEnv(t)
	seedAlertConditions(t, e)

	report, err := e.svc.RunAlertPass(e.ctx, nineAM.Add(20*time.Second))
	require.NoError(t, err)
	assert.Equal(t, service.AlertReport{KitchensEvaluated: 1, Raised: 3}, report)

	t.Run("raises one aggregated alert per condition", func(t *testing.T) {
		low := notificationsOfType(e, service.NotifyLowStock)
		require.Len(t, low, 1)
		assert.Equal(t, "1 items are running low on stock", low[0].Message)
		assert.Equal(t, service.SeverityWarning, low[0].Severity)
		assert.Equal(t, nineAM, low[0].CreatedAt)

		soon := notificationsOfType(e, service.NotifyExpiryWarning)
		require.Len(t, soon, 1)
		assert.Equal(t, "1 items expiring soon", soon[0].Message)
		assert.Equal(t, service.SeverityWarning, soon[0].Severity)

		expired := notificationsOfType(e, service.NotifyItemsExpired)
		require.Len(t, expired, 1)
		assert.Equal(t, "1 items have expired", expired[0].Message)
		assert.Equal(t, service.SeverityCritical, expired[0].Severity)
	})

	t.Run("each dedup check takes the kitchen and type lock", func(t *testing.T) {
		assert.Equal(t, 3, e.db.dedupLocks)
	})

	t.Run("the same minute again is deduplicated", func(t *testing.T) {
		again, err := e.svc.RunAlertPass(e.ctx, nineAM.Add(40*time.Second))
		require.NoError(t, err)
		assert.Equal(t, service.AlertReport{KitchensEvaluated: 1, Deduplicated: 3}, again)
	})

	t.Run("other times of day are skipped", func(t *testing.T) {
		later, err := e.svc.RunAlertPass(e.ctx, nineAM.Add(15*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 0, later.KitchensEvaluated)
	})

	t.Run("a later alert time the same day is still deduplicated", func(t *testing.T) {
		_, err := e.svc.UpdateAlertSettings(e.ctx, service.AlertSettingsRequest{
			KitchenID: kitchenID, Hour: 20, Minute: 0, Enabled: true,
		})
		require.NoError(t, err)

		evening, err := e.svc.RunAlertPass(e.ctx, time.Date(2026, 3, 10, 20, 0, 5, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, service.AlertReport{KitchensEvaluated: 1, Deduplicated: 3}, evening)
	})

	t.Run("the next day raises again", func(t *testing.T) {
		next, err := e.svc.RunAlertPass(e.ctx, time.Date(2026, 3, 11, 20, 0, 1, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, 3, next.Raised)
		assert.Len(t, notificationsOfType(e, service.NotifyLowStock), 2)
	})
}

func TestRunAlertPass_SameTimeEveryDay(t *testing.T) {
	e := newTestEnv(t)
	e.purchase(t, "Flour", 100, "g")

	for day := 0; day < 3; day++ {
		// Ticks land a little after the minute, and not always by the same amount.
		at := nineAM.AddDate(0, 0, day).Add(time.Duration(3-day) * time.Second)
		report, err := e.svc.RunAlertPass(e.ctx, at)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Raised, "day %d", day)
	}
}

func TestRunAlertPass_KitchenSettings(t *testing.T) {
	t.Run("disabled kitchens are skipped", func(t *testing.T) {
		e := newTestEnv(t)
		seedAlertConditions(t, e)
		_, err := e.svc.UpdateAlertSettings(e.ctx, service.AlertSettingsRequest{KitchenID: kitchenID, Hour: 9, Enabled: false})
		require.NoError(t, err)

		report, err := e.svc.RunAlertPass(e.ctx, nineAM)
		require.NoError(t, err)
		assert.Equal(t, 0, report.KitchensEvaluated)
		assert.Empty(t, e.db.notifications)
	})

	t.Run("alert time is read in the kitchen timezone", func(t *testing.T) {
		e := newTestEnv(t)
		seedAlertConditions(t, e)
		_, err := e.svc.UpdateAlertSettings(e.ctx, service.AlertSettingsRequest{
			KitchenID: kitchenID, Hour: 9, Minute: 0, Enabled: true, Timezone: "Asia/Kolkata",
		})
		require.NoError(t, err)

		skipped, err := e.svc.RunAlertPass(e.ctx, nineAM)
		require.NoError(t, err)
		assert.Equal(t, 0, skipped.KitchensEvaluated)

		// 09:00 IST is 03:30 UTC.
		report, err := e.svc.RunAlertPass(e.ctx, time.Date(2026, 3, 10, 3, 30, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, 1, report.KitchensEvaluated)
		assert.Equal(t, 3, report.Raised)
	})

	t.Run("nothing to report raises nothing", func(t *testing.T) {
		e := newTestEnv(t)
		e.purchase(t, "Cheese", 1, "kg", expiring(daysFromNow(10)))

		report, err := e.svc.RunAlertPass(e.ctx, nineAM)
		require.NoError(t, err)
		assert.Equal(t, service.AlertReport{KitchensEvaluated: 1}, report)
	})
}

func TestRunAlertPass_FailingKitchen(t *testing.T) {
	e := newTestEnv(t)
	e.purchase(t, "Flour", 100, "g")
	e.purchase(t, "Flour", 100, "g", inKitchen("kitchen-2"))
	e.db.lowStockErr = map[string]error{kitchenID: stderrors.New("connection reset")}

	report, err := e.svc.RunAlertPass(e.ctx, nineAM)
	require.NoError(t, err)
	assert.Equal(t, service.AlertReport{KitchensEvaluated: 2, Raised: 1, Failed: 1}, report)

	low := notificationsOfType(e, service.NotifyLowStock)
	require.Len(t, low, 1)
	assert.Equal(t, "kitchen-2", low[0].KitchenID)
}

func TestRunAlertPass_GroupWithoutBatches(t *testing.T) {
	e := newTestEnv(t)
	e.purchase(t, "Cheese", 1, "kg")
	// What a purchase whose batch insert failed leaves behind.
	e.db.putGroup(&repository.Group{
		Name: "Saffron", NormalizedName: "saffron", CategoryID: dairy, BaseUnit: "grams",
		KitchenID: kitchenID, MinStock: 100,
	})

	report, err := e.svc.RunAlertPass(e.ctx, nineAM)
	require.NoError(t, err)
	assert.Equal(t, service.AlertReport{KitchensEvaluated: 1}, report)
	assert.Empty(t, notificationsOfType(e, service.NotifyLowStock))
}
