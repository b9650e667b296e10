package state

const schema = `
CREATE TABLE IF NOT EXISTS latest_report (
	station         TEXT NOT NULL,
	report_type     TEXT NOT NULL,
	report_time     TEXT,
	raw             TEXT NOT NULL,
	lat             REAL,
	lon             REAL,
	flight_category TEXT,
	received_at     TEXT NOT NULL,
	payload         TEXT NOT NULL,
	PRIMARY KEY (station, report_type)
);

CREATE INDEX IF NOT EXISTS idx_latest_received ON latest_report(received_at);
`
