package sqlite

// Every table is keyed by (business_id, id). Rows of other tenants may exist
// in an engine shared by the service's embedded backend; every query filters
// by the bound tenant.
const schema = `
CREATE TABLE IF NOT EXISTS staff (
	business_id     TEXT NOT NULL,
	id              TEXT NOT NULL,
	name            TEXT NOT NULL,
	role            TEXT NOT NULL,
	commission_rate REAL NOT NULL DEFAULT 0,
	phone           TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	avatar          TEXT NOT NULL DEFAULT '',
	username        TEXT NOT NULL DEFAULT '',
	password_hash   TEXT NOT NULL DEFAULT '',
	version         INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (business_id, id)
);

CREATE TABLE IF NOT EXISTS services (
	business_id TEXT NOT NULL,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL,
	price       REAL NOT NULL CHECK (price >= 0),
	duration    INTEGER NOT NULL CHECK (duration >= 1),
	category    TEXT NOT NULL DEFAULT '',
	version     INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (business_id, id)
);

CREATE TABLE IF NOT EXISTS products (
	business_id TEXT NOT NULL,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL,
	price       REAL NOT NULL CHECK (price >= 0),
	stock       INTEGER NOT NULL CHECK (stock >= 0),
	category    TEXT NOT NULL DEFAULT 'Retail',
	version     INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (business_id, id)
);

CREATE TABLE IF NOT EXISTS customers (
	business_id TEXT NOT NULL,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL,
	phone       TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL DEFAULT '',
	notes       TEXT NOT NULL DEFAULT '',
	join_date   TEXT NOT NULL DEFAULT '',
	version     INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (business_id, id)
);

CREATE TABLE IF NOT EXISTS appointments (
	business_id    TEXT NOT NULL,
	id             TEXT NOT NULL,
	customer_name  TEXT NOT NULL,
	customer_phone TEXT NOT NULL DEFAULT '',
	service_id     TEXT NOT NULL DEFAULT '',
	staff_id       TEXT NOT NULL DEFAULT '',
	date           TEXT NOT NULL,
	status         TEXT NOT NULL,
	version        INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (business_id, id)
);

CREATE TABLE IF NOT EXISTS transactions (
	business_id               TEXT NOT NULL,
	id                        TEXT NOT NULL,
	timestamp                 INTEGER NOT NULL,
	items                     TEXT NOT NULL,
	total                     REAL NOT NULL,
	payment_method            TEXT NOT NULL,
	status                    TEXT NOT NULL,
	customer_id               TEXT NOT NULL DEFAULT '',
	customer_name             TEXT NOT NULL DEFAULT '',
	is_synced                 INTEGER NOT NULL DEFAULT 0,
	payment_reference         TEXT NOT NULL DEFAULT '',
	mpesa_phone_number        TEXT NOT NULL DEFAULT '',
	mpesa_checkout_request_id TEXT NOT NULL DEFAULT '',
	mpesa_receipt_number      TEXT NOT NULL DEFAULT '',
	metadata                  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (business_id, id)
);

CREATE TABLE IF NOT EXISTS settings (
	business_id TEXT PRIMARY KEY,
	content     TEXT NOT NULL,
	version     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS audit_logs (
	business_id  TEXT NOT NULL,
	id           TEXT NOT NULL,
	user_id      TEXT NOT NULL DEFAULT '',
	action       TEXT NOT NULL,
	resource     TEXT NOT NULL,
	details      TEXT,
	pii_redacted INTEGER NOT NULL DEFAULT 0,
	occurred_at  INTEGER NOT NULL,
	PRIMARY KEY (business_id, id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_ts ON transactions(business_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_logs_ts ON audit_logs(business_id, occurred_at DESC);
`

// tableColumns lists the columns copied when a snapshot is restored.
var tableColumns = []struct {
	table   string
	columns string
}{
	{"staff", "business_id, id, name, role, commission_rate, phone, email, avatar, username, password_hash, version"},
	{"services", "business_id, id, name, price, duration, category, version"},
	{"products", "business_id, id, name, price, stock, category, version"},
	{"customers", "business_id, id, name, phone, email, notes, join_date, version"},
	{"appointments", "business_id, id, customer_name, customer_phone, service_id, staff_id, date, status, version"},
	{"transactions", "business_id, id, timestamp, items, total, payment_method, status, customer_id, customer_name, is_synced, payment_reference, mpesa_phone_number, mpesa_checkout_request_id, mpesa_receipt_number, metadata"},
	{"settings", "business_id, content, version"},
	{"audit_logs", "business_id, id, user_id, action, resource, details, pii_redacted, occurred_at"},
}
