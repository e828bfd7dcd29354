package service_test

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/pantrymind/pantrymind-backend/internal/inventory/events"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/service"
	"github.com/pantrymind/pantrymind-backend/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExpirySweep(t *testing.T) {
	e := newTestEnv(t)

	milk := e.purchase(t, "Milk", 1, "l", expiring(daysFromNow(0)), priced("60"))
	yogurt := e.purchase(t, "Yogurt", 6, "pcs", expiring(daysFromNow(1)))
	cheese := e.purchase(t, "Cheese", 200, "g", expiring(daysFromNow(10)))
	e.purchase(t, "Bread", 1, "piece")
	e.broker.Reset()

	report, err := e.svc.RunExpirySweep(e.ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, service.SweepReport{Scanned: 3, MarkedExpiringSoon: 1, Wasted: 1}, report)

	t.Run("expiring today is wasted", func(t *testing.T) {
		b := e.db.batch(milk.Batch.ID)
		assert.Equal(t, repository.StatusWasted, b.Status)
		assert.False(t, b.IsActive)
		assert.Equal(t, int64(0), b.CurrentQuantity)
		assert.Equal(t, int64(0), e.db.group(milk.Group.ID).TotalQuantity)
		e.assertTotals(t, milk.Group.ID)

		require.Len(t, e.db.waste, 1)
		entry := e.db.waste[0]
		assert.Equal(t, repository.WasteExpired, entry.WasteReason)
		assert.Equal(t, int64(1000), entry.QuantityWasted)
		assert.Equal(t, "60.00", entry.EstimatedValue.StringFixed(2))
		assert.Nil(t, entry.ReportedBy)
		require.NotNil(t, entry.Notes)
		assert.Equal(t, "Automatically logged - item expired on 2026-03-10", *entry.Notes)
	})

	t.Run("expired batch raises a notification", func(t *testing.T) {
		require.Len(t, e.db.notifications, 1)
		n := e.db.notifications[0]
		assert.Equal(t, service.NotifyItemExpiredWasted, n.Type)
		assert.Equal(t, service.SeverityCritical, n.Severity)
		assert.Equal(t, "Milk is expired!", n.Message)
		require.NotNil(t, n.RelatedItemID)
		assert.Equal(t, milk.Batch.ID, *n.RelatedItemID)

		e.broker.AssertEventPublished(t, messaging.EventStockWasted)
		e.broker.AssertEventPublished(t, events.NotificationRoutingKey(service.NotifyItemExpiredWasted))
	})

	t.Run("within the warning window is expiring soon", func(t *testing.T) {
		b := e.db.batch(yogurt.Batch.ID)
		assert.Equal(t, repository.StatusExpiringSoon, b.Status)
		assert.True(t, b.IsActive)
		assert.Equal(t, int64(6), b.CurrentQuantity)
	})

	t.Run("outside the window stays fresh", func(t *testing.T) {
		assert.Equal(t, repository.StatusFresh, e.db.batch(cheese.Batch.ID).Status)
	})

	t.Run("a second sweep changes nothing", func(t *testing.T) {
		again, err := e.svc.RunExpirySweep(e.ctx, testNow)
		require.NoError(t, err)
		assert.Equal(t, service.SweepReport{Scanned: 2}, again)
		assert.Len(t, e.db.waste, 1)
		assert.Len(t, e.db.notifications, 1)
	})

	t.Run("an expiring batch is wasted once its day comes", func(t *testing.T) {
		tomorrow := testNow.Add(24 * time.Hour)
		next, err := e.svc.RunExpirySweep(e.ctx, tomorrow)
		require.NoError(t, err)
		assert.Equal(t, 1, next.Wasted)
		assert.Equal(t, repository.StatusWasted, e.db.batch(yogurt.Batch.ID).Status)
	})
}

func TestRunExpirySweep_UsesKitchenTimezone(t *testing.T) {
	e := newTestEnv(t)

	// Noon UTC on the 10th is already 01:00 on the 11th in Auckland.
	_, err := e.svc.UpdateAlertSettings(e.ctx, service.AlertSettingsRequest{
		KitchenID: "kitchen-nz", Hour: 9, Enabled: true, Timezone: "Pacific/Auckland",
	})
	require.NoError(t, err)

	nz := e.purchase(t, "Milk", 1, "l", expiring(daysFromNow(1)), inKitchen("kitchen-nz"))
	utc := e.purchase(t, "Milk", 1, "l", expiring(daysFromNow(1)))

	report, err := e.svc.RunExpirySweep(e.ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Wasted)
	assert.Equal(t, 1, report.MarkedExpiringSoon)

	assert.Equal(t, repository.StatusWasted, e.db.batch(nz.Batch.ID).Status)
	assert.Equal(t, repository.StatusExpiringSoon, e.db.batch(utc.Batch.ID).Status)
}

func TestRunExpirySweep_PastExpiry(t *testing.T) {
	e := newTestEnv(t)
	old := e.purchase(t, "Ham", 200, "g", expiring(daysFromNow(-3)))

	report, err := e.svc.RunExpirySweep(e.ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Wasted)

	require.Len(t, e.db.waste, 1)
	assert.Equal(t, "Automatically logged - item expired on 2026-03-07", *e.db.waste[0].Notes)
	assert.True(t, e.db.waste[0].EstimatedValue.IsZero())

	expired, err := e.svc.ListExpiredWaste(e.ctx, kitchenID)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, old.Batch.ID, expired[0].BatchID)
}

func TestRunExpirySweep_PartlyConsumed(t *testing.T) {
	e := newTestEnv(t)
	res := e.purchase(t, "Eggs", 3, "pcs", expiring(daysFromNow(0)), priced("90"))
	_, err := e.svc.Consume(e.ctx, service.ConsumeRequest{
		GroupID: res.Group.ID, KitchenID: kitchenID, UserID: userID, Quantity: 2,
	})
	require.NoError(t, err)

	report, err := e.svc.RunExpirySweep(e.ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Wasted)

	require.Len(t, e.db.waste, 1)
	assert.Equal(t, int64(1), e.db.waste[0].QuantityWasted)
	assert.Equal(t, "30.00", e.db.waste[0].EstimatedValue.StringFixed(2))
}

func TestRunExpirySweep_SkipsFailingBatch(t *testing.T) {
	e := newTestEnv(t)
	broken := e.purchase(t, "Ham", 200, "g", expiring(daysFromNow(-2)))
	fine := e.purchase(t, "Milk", 1, "l", expiring(daysFromNow(-1)))
	stuck := e.purchase(t, "Yogurt", 6, "pcs", expiring(daysFromNow(1)))
	soon := e.purchase(t, "Cream", 200, "ml", expiring(daysFromNow(2)))

	boom := stderrors.New("disk full")
	e.db.updateErr = map[string]error{broken.Batch.ID: boom}
	e.db.markErr = map[string]error{stuck.Batch.ID: boom}

	report, err := e.svc.RunExpirySweep(e.ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, service.SweepReport{Scanned: 4, Wasted: 1, MarkedExpiringSoon: 1, Failed: 2}, report)

	b := e.db.batch(broken.Batch.ID)
	assert.Equal(t, repository.StatusFresh, b.Status)
	assert.True(t, b.IsActive)
	assert.Equal(t, int64(200), b.CurrentQuantity)
	e.assertTotals(t, broken.Group.ID)

	assert.Equal(t, repository.StatusWasted, e.db.batch(fine.Batch.ID).Status)
	assert.Equal(t, repository.StatusFresh, e.db.batch(stuck.Batch.ID).Status)
	assert.Equal(t, repository.StatusExpiringSoon, e.db.batch(soon.Batch.ID).Status)

	require.Len(t, e.db.waste, 1)
	assert.Equal(t, fine.Batch.ID, e.db.waste[0].BatchID)

	t.Run("the next sweep picks the batch up again", func(t *testing.T) {
		e.db.updateErr = nil
		again, err := e.svc.RunExpirySweep(e.ctx, testNow)
		require.NoError(t, err)
		assert.Equal(t, 1, again.Wasted)
		assert.Equal(t, repository.StatusWasted, e.db.batch(broken.Batch.ID).Status)
	})
}
