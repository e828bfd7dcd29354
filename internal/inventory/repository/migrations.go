package repository

// Migrations creates the inventory schema. Every statement is idempotent so
// the list can be applied on each start.
var Migrations = []string{
	`CREATE TABLE IF NOT EXISTS kitchens (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL DEFAULT '',
		alert_time_hour   INT NOT NULL DEFAULT 8,
		alert_time_minute INT NOT NULL DEFAULT 0,
		alerts_enabled    BOOLEAN NOT NULL DEFAULT TRUE,
		timezone          TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT kitchens_alert_time_check CHECK (
			alert_time_hour BETWEEN 0 AND 23 AND alert_time_minute BETWEEN 0 AND 59
		)
	)`,

	`CREATE TABLE IF NOT EXISTS inventory_groups (
		id                    UUID PRIMARY KEY,
		name                  TEXT NOT NULL,
		normalized_name       TEXT NOT NULL,
		category_id           TEXT NOT NULL,
		base_unit             TEXT NOT NULL,
		kitchen_id            TEXT NOT NULL REFERENCES kitchens(id) ON DELETE CASCADE,
		total_quantity        BIGINT NOT NULL DEFAULT 0,
		item_count            INT NOT NULL DEFAULT 0,
		min_stock             BIGINT NOT NULL,
		min_expiry_days_alert INT NOT NULL DEFAULT 3,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT inventory_groups_key_unique UNIQUE (normalized_name, category_id, base_unit, kitchen_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_inventory_groups_scope
		ON inventory_groups (kitchen_id, category_id, base_unit)`,

	`CREATE TABLE IF NOT EXISTS inventory_batches (
		id                UUID PRIMARY KEY,
		group_id          UUID NOT NULL REFERENCES inventory_groups(id) ON DELETE CASCADE,
		description       TEXT,
		original_quantity BIGINT NOT NULL,
		current_quantity  BIGINT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'FRESH',
		is_active         BOOLEAN NOT NULL DEFAULT TRUE,
		expiry_date       DATE,
		price             NUMERIC(12,2),
		location          TEXT,
		created_by        TEXT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT inventory_batches_current_quantity_check CHECK (
			current_quantity >= 0 AND current_quantity <= original_quantity
		),
		CONSTRAINT inventory_batches_status_valid CHECK (
			status IN ('FRESH', 'EXPIRING_SOON', 'EXPIRED', 'CONSUMED', 'WASTED')
		)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_inventory_batches_fifo
		ON inventory_batches (group_id, expiry_date NULLS LAST, created_at)
		WHERE is_active`,

	`CREATE TABLE IF NOT EXISTS usage_logs (
		id            UUID PRIMARY KEY,
		batch_id      UUID NOT NULL,
		group_id      UUID NOT NULL,
		kitchen_id    TEXT NOT NULL,
		user_id       TEXT NOT NULL,
		quantity_used BIGINT NOT NULL CHECK (quantity_used > 0),
		usage_type    TEXT NOT NULL,
		meal_log_id   TEXT,
		notes         TEXT,
		used_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS waste_logs (
		id              UUID PRIMARY KEY,
		batch_id        UUID NOT NULL,
		group_id        UUID NOT NULL,
		kitchen_id      TEXT NOT NULL,
		item_name       TEXT NOT NULL,
		reported_by     TEXT,
		quantity_wasted BIGINT NOT NULL CHECK (quantity_wasted >= 0),
		waste_reason    TEXT NOT NULL,
		estimated_value NUMERIC(12,2) NOT NULL DEFAULT 0,
		expiry_date     DATE,
		notes           TEXT,
		wasted_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_waste_logs_kitchen
		ON waste_logs (kitchen_id, waste_reason, wasted_at DESC)`,

	// Logs outlive their batch. Older schemas cascaded the batch delete.
	`ALTER TABLE usage_logs DROP CONSTRAINT IF EXISTS usage_logs_batch_id_fkey`,
	`ALTER TABLE waste_logs DROP CONSTRAINT IF EXISTS waste_logs_batch_id_fkey`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id              UUID PRIMARY KEY,
		kitchen_id      TEXT NOT NULL,
		type            TEXT NOT NULL,
		title           TEXT NOT NULL,
		severity        TEXT NOT NULL,
		message         TEXT NOT NULL,
		related_item_id TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_notifications_kitchen_type
		ON notifications (kitchen_id, type, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS notification_read_by (
		notification_id UUID NOT NULL REFERENCES notifications(id) ON DELETE CASCADE,
		user_id         TEXT NOT NULL,
		read_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (notification_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS notification_deleted_by (
		notification_id UUID NOT NULL REFERENCES notifications(id) ON DELETE CASCADE,
		user_id         TEXT NOT NULL,
		deleted_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (notification_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS user_cache (
		user_id    TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		email      TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Tables lists every table in dependency order, children last.
var Tables = []string{
	"kitchens",
	"inventory_groups",
	"inventory_batches",
	"usage_logs",
	"waste_logs",
	"notifications",
	"notification_read_by",
	"notification_deleted_by",
	"user_cache",
}
