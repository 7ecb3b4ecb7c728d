package database

// schemas maps database names to their embedded schema DDL.
// The app database holds ledger, rates, prices and derived snapshot rows.
// The client_data database holds TTL-cached external feed responses.
var schemas = map[string]string{
	"app":         appSchema,
	"client_data": clientDataSchema,
}

const appSchema = `
CREATE TABLE IF NOT EXISTS transactions (
    id              TEXT PRIMARY KEY,
    kind            TEXT NOT NULL CHECK (kind IN ('BUY', 'SELL')),
    btc_amount      TEXT NOT NULL,
    price_per_unit  REAL NOT NULL,
    currency        TEXT NOT NULL,
    total           REAL NOT NULL,
    fees            REAL NOT NULL DEFAULT 0,
    fees_currency   TEXT NOT NULL DEFAULT '',
    date            INTEGER NOT NULL,
    notes           TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_transactions_kind ON transactions(kind);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);

CREATE TABLE IF NOT EXISTS exchange_rates (
    from_currency TEXT NOT NULL,
    to_currency   TEXT NOT NULL,
    rate          REAL NOT NULL,
    updated_at    INTEGER NOT NULL,
    UNIQUE(from_currency, to_currency)
);

CREATE TABLE IF NOT EXISTS current_price (
    id                 INTEGER PRIMARY KEY CHECK (id = 1),
    price              REAL NOT NULL,
    change_24h_abs     REAL NOT NULL DEFAULT 0,
    change_24h_pct     REAL NOT NULL DEFAULT 0,
    timestamp          INTEGER NOT NULL,
    source             TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS daily_prices (
    date   TEXT PRIMARY KEY,
    open   REAL NOT NULL,
    high   REAL NOT NULL,
    low    REAL NOT NULL,
    close  REAL NOT NULL,
    volume REAL
);

CREATE TABLE IF NOT EXISTS intraday_prices (
    timestamp INTEGER PRIMARY KEY,
    price     REAL NOT NULL,
    volume    REAL
);

CREATE TABLE IF NOT EXISTS portfolio_snapshot (
    id                       INTEGER PRIMARY KEY CHECK (id = 1),
    total_btc                TEXT NOT NULL,
    total_transactions       INTEGER NOT NULL,
    main_currency            TEXT NOT NULL,
    total_invested_main      REAL NOT NULL,
    total_fees_main          REAL NOT NULL,
    avg_buy_price_main       REAL NOT NULL,
    current_price_main       REAL NOT NULL,
    current_value_main       REAL NOT NULL,
    unrealized_pnl_main      REAL NOT NULL,
    unrealized_pnl_pct       REAL NOT NULL,
    change_24h_main          REAL NOT NULL,
    change_24h_pct           REAL NOT NULL,
    secondary_currency       TEXT NOT NULL,
    current_value_secondary  REAL NOT NULL,
    last_updated             INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const clientDataSchema = `
CREATE TABLE IF NOT EXISTS market_prices (
    key        TEXT PRIMARY KEY,
    data       BLOB NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS market_history (
    key        TEXT PRIMARY KEY,
    data       BLOB NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exchangerate (
    key        TEXT PRIMARY KEY,
    data       BLOB NOT NULL,
    expires_at INTEGER NOT NULL
);
`
