package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/cgtfolio/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

var createTableStatement = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	token TEXT NOT NULL,
	refresh_token TEXT NOT NULL,
	user_agent TEXT,
	client_ip TEXT,
	is_blocked BOOLEAN DEFAULT FALSE,
	expires_at TIMESTAMP,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS securities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker TEXT NOT NULL UNIQUE,
	name TEXT,
	exchange TEXT NOT NULL,
	currency TEXT NOT NULL,
	asset_type TEXT NOT NULL DEFAULT 'SHARE'
);

CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	security_id INTEGER NOT NULL,
	trade_date TEXT NOT NULL,
	transaction_type TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	unit_price TEXT NOT NULL,
	brokerage TEXT NOT NULL DEFAULT '0',
	total_value TEXT NOT NULL,
	currency TEXT NOT NULL,
	exchange_rate TEXT NOT NULL DEFAULT '1',
	is_fully_matched BOOLEAN NOT NULL DEFAULT FALSE,
	hash_id TEXT,
	FOREIGN KEY(security_id) REFERENCES securities(id),
	UNIQUE(hash_id)
);

CREATE TABLE IF NOT EXISTS parcels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	transaction_id INTEGER NOT NULL UNIQUE,
	security_id INTEGER NOT NULL,
	acquisition_date TEXT NOT NULL,
	original_quantity INTEGER NOT NULL,
	remaining_quantity INTEGER NOT NULL,
	cost_per_unit TEXT NOT NULL,
	total_cost_base TEXT NOT NULL,
	is_fully_matched BOOLEAN NOT NULL DEFAULT FALSE,
	FOREIGN KEY(transaction_id) REFERENCES transactions(id),
	FOREIGN KEY(security_id) REFERENCES securities(id),
	CHECK(remaining_quantity >= 0),
	CHECK(remaining_quantity <= original_quantity)
);

CREATE TABLE IF NOT EXISTS parcel_matches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	parcel_id INTEGER NOT NULL,
	sell_transaction_id INTEGER NOT NULL,
	matched_quantity INTEGER NOT NULL,
	cost_base TEXT NOT NULL,
	proceeds TEXT NOT NULL,
	capital_gain_loss TEXT NOT NULL,
	holding_period_days INTEGER NOT NULL,
	cgt_discount_eligible BOOLEAN NOT NULL DEFAULT FALSE,
	discount_amount TEXT NOT NULL DEFAULT '0',
	net_capital_gain TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(parcel_id) REFERENCES parcels(id),
	FOREIGN KEY(sell_transaction_id) REFERENCES transactions(id)
);

CREATE INDEX IF NOT EXISTS idx_parcels_security_open
	ON parcels(security_id, acquisition_date) WHERE remaining_quantity > 0;
CREATE INDEX IF NOT EXISTS idx_matches_sell ON parcel_matches(sell_transaction_id);
`

// Open opens a sqlite database at the given path and ensures the schema
// exists. Tests use Open(":memory:") for isolated databases.
func Open(databasePath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, err
	}
	if databasePath == ":memory:" {
		// Each pooled connection would otherwise see its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// Decimal columns are stored as TEXT so values survive round-trips
	// exactly; REAL would reintroduce float rounding.
	if _, err := db.Exec(createTableStatement); err != nil {
		db.Close()
		return nil, err
	}
	migrateTransactionsTable(db)
	return db, nil
}

// InitDB opens the application database and stores it in the package-level
// DB handle. Fatal on failure: nothing works without storage.
func InitDB(databasePath string) {
	db, err := Open(databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}
	DB = db
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.", "databasePath", databasePath)
	} else {
		stdlog.Println("Database tables ensured/created:", databasePath)
	}
}

// migrateTransactionsTable backfills columns added after the first release.
func migrateTransactionsTable(db *sql.DB) {
	rows, err := db.Query("PRAGMA table_info(transactions)")
	if err != nil {
		logWarn("Error querying table schema for 'transactions'", err)
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			logWarn("Error scanning column info for 'transactions'", err)
			return
		}
		columnExists[name] = true
	}
	if err := rows.Err(); err != nil {
		logWarn("Error iterating over column info for 'transactions'", err)
		return
	}

	if !columnExists["is_fully_matched"] {
		if _, err := db.Exec("ALTER TABLE transactions ADD COLUMN is_fully_matched BOOLEAN NOT NULL DEFAULT FALSE"); err != nil {
			logWarn("Error adding 'is_fully_matched' column to 'transactions'", err)
		}
	}
	if !columnExists["hash_id"] {
		if _, err := db.Exec("ALTER TABLE transactions ADD COLUMN hash_id TEXT"); err != nil {
			logWarn("Error adding 'hash_id' column to 'transactions'", err)
		}
	}
}

func logWarn(msg string, err error) {
	if logger.L != nil {
		logger.L.Warn(msg, "error", err)
	} else {
		stdlog.Printf("%s: %v", msg, err)
	}
}
