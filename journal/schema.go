package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	date DATETIME NOT NULL,
	ticker TEXT NOT NULL,
	action TEXT NOT NULL,
	requested REAL NOT NULL,
	quantity INTEGER NOT NULL,
	price REAL NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, date);

CREATE TABLE IF NOT EXISTS days (
	run_id TEXT NOT NULL,
	date DATETIME NOT NULL,
	value REAL NOT NULL,
	daily_return REAL NOT NULL,
	cash REAL NOT NULL,
	margin_used REAL NOT NULL,
	long_exposure REAL NOT NULL,
	short_exposure REAL NOT NULL,
	trades INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	skip_reason TEXT NOT NULL,
	PRIMARY KEY (run_id, date)
);

CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	tickers TEXT NOT NULL,
	dataset TEXT NOT NULL,
	config BLOB,
	start_date DATETIME NOT NULL,
	end_date DATETIME NOT NULL,
	initial_capital REAL NOT NULL,
	final_value REAL NOT NULL,
	margin_requirement REAL NOT NULL,
	risk_free_rate REAL NOT NULL,
	return_pct REAL NOT NULL,
	annualized_return REAL NOT NULL,
	volatility REAL NOT NULL,
	sharpe REAL NOT NULL,
	sortino REAL NOT NULL,
	max_dd_pct REAL NOT NULL,
	max_dd_date DATETIME,
	gross_exposure REAL NOT NULL,
	net_exposure REAL NOT NULL,
	long_short_ratio REAL NOT NULL,
	trading_days INTEGER NOT NULL,
	skipped_days INTEGER NOT NULL,
	trade_count INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	org_path TEXT NOT NULL
);
`
