package journal

// Schema is portable between SQLite and Postgres.
const Schema = `
CREATE TABLE IF NOT EXISTS fills (
	fill_id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	slippage DOUBLE PRECISION NOT NULL,
	commission DOUBLE PRECISION NOT NULL,
	underlying_price DOUBLE PRECISION NOT NULL,
	realized_pl DOUBLE PRECISION NOT NULL,
	time TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_time ON fills(time);

CREATE TABLE IF NOT EXISTS equity (
	time TIMESTAMP NOT NULL,
	cash DOUBLE PRECISION NOT NULL,
	portfolio_value DOUBLE PRECISION NOT NULL,
	realized_pl DOUBLE PRECISION NOT NULL,
	unrealized_pl DOUBLE PRECISION NOT NULL,
	delta DOUBLE PRECISION NOT NULL,
	gamma DOUBLE PRECISION NOT NULL,
	theta DOUBLE PRECISION NOT NULL,
	vega DOUBLE PRECISION NOT NULL,
	rho DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`

const insertFill = `
	INSERT INTO fills
	(fill_id, order_id, symbol, side, quantity, price, slippage, commission, underlying_price, realized_pl, time)
	VALUES (:fill_id, :order_id, :symbol, :side, :quantity, :price, :slippage, :commission, :underlying_price, :realized_pl, :time)`

const insertEquity = `
	INSERT INTO equity
	(time, cash, portfolio_value, realized_pl, unrealized_pl, delta, gamma, theta, vega, rho)
	VALUES (:time, :cash, :portfolio_value, :realized_pl, :unrealized_pl, :delta, :gamma, :theta, :vega, :rho)`
