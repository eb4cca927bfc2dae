package postgres

const (
	tableARIResults = "ari_results"
	tableCoverage   = "catchment_coverage"
	tableVerdicts   = "validation_verdicts"
	tableRejections = "rejections"
)

// schema creates the result tables. Primary keys are the natural keys of each
// row so re-running an analysis updates rows in place.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS ari_results (
		location_id   TEXT             NOT NULL,
		duration_code TEXT             NOT NULL,
		ts            TIMESTAMPTZ      NOT NULL,
		depth_mm      DOUBLE PRECISION NOT NULL,
		ari_years     DOUBLE PRECISION NOT NULL,
		out_of_range  BOOLEAN          NOT NULL DEFAULT FALSE,
		run_id        UUID             NOT NULL,
		PRIMARY KEY (location_id, duration_code, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS catchment_coverage (
		catchment_id       TEXT             NOT NULL,
		duration_code      TEXT             NOT NULL,
		ts                 TIMESTAMPTZ      NOT NULL,
		fraction_exceeding DOUBLE PRECISION,
		pixels_with_data   INTEGER          NOT NULL,
		pixels_exceeding   INTEGER          NOT NULL,
		pixels_total       INTEGER          NOT NULL,
		reason             TEXT             NOT NULL DEFAULT '',
		run_id             UUID             NOT NULL,
		PRIMARY KEY (catchment_id, duration_code, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS validation_verdicts (
		alarm_id         TEXT             PRIMARY KEY,
		location_id      TEXT             NOT NULL,
		window_start     TIMESTAMPTZ      NOT NULL,
		window_end       TIMESTAMPTZ      NOT NULL,
		max_ari_observed DOUBLE PRECISION,
		threshold        DOUBLE PRECISION NOT NULL,
		metric           TEXT             NOT NULL DEFAULT '',
		status           TEXT             NOT NULL,
		reason           TEXT             NOT NULL,
		run_id           UUID             NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rejections (
		location_id TEXT    NOT NULL,
		rule        TEXT    NOT NULL,
		reason      TEXT    NOT NULL,
		fatal       BOOLEAN NOT NULL DEFAULT FALSE,
		run_id      UUID    NOT NULL,
		PRIMARY KEY (location_id, rule, reason)
	)`,
}
