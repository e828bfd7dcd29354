package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
	"github.com/pantrymind/pantrymind-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Groups
// ============================================================================

func TestGroupRepository_GetByID(t *testing.T) {
	t.Run("malformed id never reaches the database", func(t *testing.T) {
		us := testutil.NewUnitTestSuite(t)
		defer us.Cleanup()
		repo := repository.NewGroupRepository(us.DB)

		_, err := repo.GetByID(context.Background(), "not-a-uuid")

		assert.ErrorIs(t, err, errors.ErrGroupNotFound)
	})

	t.Run("missing row", func(t *testing.T) {
		us := testutil.NewUnitTestSuite(t)
		defer us.Cleanup()
		repo := repository.NewGroupRepository(us.DB)
		id := us.Fixtures.Group().ID

		us.MockDB.ExpectQuery(`FROM inventory_groups WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(testutil.MockRows("id"))

		_, err := repo.GetByID(context.Background(), id)

		assert.ErrorIs(t, err, errors.ErrGroupNotFound)
	})
}

func TestGroupRepository_CreateIfAbsent(t *testing.T) {
	t.Run("inserted", func(t *testing.T) {
		us := testutil.NewUnitTestSuite(t)
		defer us.Cleanup()
		repo := repository.NewGroupRepository(us.DB)
		g := us.Fixtures.Group()
		g.ID = ""
		now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

		us.MockDB.ExpectQuery("INSERT INTO inventory_groups").
			WithArgs(testutil.AnyUUID{}, g.Name, g.NormalizedName, g.CategoryID, g.BaseUnit, g.KitchenID, g.MinStock, g.MinExpiryDaysAlert).
			WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))

		created, err := repo.CreateIfAbsent(context.Background(), g)

		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEmpty(t, g.ID)
		assert.Equal(t, now, g.CreatedAt)
	})

	t.Run("key already taken", func(t *testing.T) {
		us := testutil.NewUnitTestSuite(t)
		defer us.Cleanup()
		repo := repository.NewGroupRepository(us.DB)

		us.MockDB.ExpectQuery("ON CONFLICT ON CONSTRAINT inventory_groups_key_unique DO NOTHING").
			WillReturnRows(testutil.MockRows("created_at", "updated_at"))

		created, err := repo.CreateIfAbsent(context.Background(), us.Fixtures.Group())

		require.NoError(t, err)
		assert.False(t, created)
	})
}

func TestGroupRepository_UpdateTotals(t *testing.T) {
	us := testutil.NewUnitTestSuite(t)
	defer us.Cleanup()
	repo := repository.NewGroupRepository(us.DB)

	us.MockDB.ExpectExec("UPDATE inventory_groups SET total_quantity").
		WithArgs("g-1", int64(1500), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	us.MockDB.ExpectExec("UPDATE inventory_groups SET total_quantity").
		WithArgs("g-2", int64(0), 0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateTotals(context.Background(), "g-1", 1500, 2))
	assert.ErrorIs(t, repo.UpdateTotals(context.Background(), "g-2", 0, 0), errors.ErrGroupNotFound)
}

// ============================================================================
// Batches
// ============================================================================

func TestBatchRepository_MarkExpiringSoon(t *testing.T) {
	us := testutil.NewUnitTestSuite(t)
	defer us.Cleanup()
	repo := repository.NewBatchRepository(us.DB)

	us.MockDB.ExpectExec("SET status = 'EXPIRING_SOON'").
		WithArgs("b-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	us.MockDB.ExpectExec("SET status = 'EXPIRING_SOON'").
		WithArgs("b-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.MarkExpiringSoon(context.Background(), "b-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkExpiringSoon(context.Background(), "b-2")
	require.NoError(t, err)
	assert.False(t, changed, "only FRESH batches move")
}

func TestBatchRepository_SumActive(t *testing.T) {
	us := testutil.NewUnitTestSuite(t)
	defer us.Cleanup()
	repo := repository.NewBatchRepository(us.DB)

	us.MockDB.ExpectQuery(`COALESCE\(SUM\(current_quantity\), 0\)`).
		WithArgs("g-1").
		WillReturnRows(testutil.MockRows("total", "count").AddRow(int64(750), 3))

	total, count, err := repo.SumActive(context.Background(), "g-1")

	require.NoError(t, err)
	assert.Equal(t, int64(750), total)
	assert.Equal(t, 3, count)
}

func TestBatchRepository_DeleteMalformedID(t *testing.T) {
	us := testutil.NewUnitTestSuite(t)
	defer us.Cleanup()

	err := repository.NewBatchRepository(us.DB).Delete(context.Background(), "42")

	assert.ErrorIs(t, err, errors.ErrBatchNotFound)
}

// ============================================================================
// Notifications
// ============================================================================

func TestNotificationRepository_Create(t *testing.T) {
	stamp := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("database clock when unset", func(t *testing.T) {
		us := testutil.NewUnitTestSuite(t)
		defer us.Cleanup()
		repo := repository.NewNotificationRepository(us.DB)
		n := &repository.Notification{KitchenID: "kitchen-1", Type: "LOW_STOCK", Title: "Low stock", Severity: "warning", Message: "m"}

		us.MockDB.ExpectQuery(`COALESCE\(\$8, NOW\(\)\)`).
			WithArgs(testutil.AnyUUID{}, "kitchen-1", "LOW_STOCK", "Low stock", "warning", "m", nil, nil).
			WillReturnRows(testutil.MockRows("created_at").AddRow(stamp))

		require.NoError(t, repo.Create(context.Background(), n))
		assert.Equal(t, stamp, n.CreatedAt)
	})

	t.Run("explicit timestamp kept", func(t *testing.T) {
		us := testutil.NewUnitTestSuite(t)
		defer us.Cleanup()
		repo := repository.NewNotificationRepository(us.DB)
		n := &repository.Notification{KitchenID: "kitchen-1", Type: "LOW_STOCK", CreatedAt: stamp}

		us.MockDB.ExpectQuery("INSERT INTO notifications").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), stamp).
			WillReturnRows(testutil.MockRows("created_at").AddRow(stamp))

		require.NoError(t, repo.Create(context.Background(), n))
	})
}

func TestNotificationRepository_LockDedup(t *testing.T) {
	us := testutil.NewUnitTestSuite(t)
	defer us.Cleanup()
	repo := repository.NewNotificationRepository(us.DB)

	us.MockDB.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\), hashtext\(\$2\)\)`).
		WithArgs("kitchen-1", "LOW_STOCK").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.LockDedup(context.Background(), "kitchen-1", "LOW_STOCK"))
}

// ============================================================================
// User cache
// ============================================================================

func TestUserCacheRepository_Names(t *testing.T) {
	t.Run("no ids", func(t *testing.T) {
		us := testutil.NewUnitTestSuite(t)
		defer us.Cleanup()

		names, err := repository.NewUserCacheRepository(us.DB).Names(context.Background(), nil)

		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("unknown users absent", func(t *testing.T) {
		us := testutil.NewUnitTestSuite(t)
		defer us.Cleanup()

		us.MockDB.ExpectQuery(`FROM user_cache WHERE user_id = ANY\(\$1\)`).
			WillReturnRows(testutil.MockRows("user_id", "name", "email").AddRow("user-1", "Ann", nil))

		names, err := repository.NewUserCacheRepository(us.DB).Names(context.Background(), []string{"user-1", "user-2"})

		require.NoError(t, err)
		assert.Equal(t, map[string]string{"user-1": "Ann"}, names)
	})
}
