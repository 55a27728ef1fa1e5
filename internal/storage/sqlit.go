package storage

import (
	"database/sql"
	"time"

	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

type DB interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	Close() error
}

// UsageStats aggregates tool invocations for one category.
type UsageStats struct {
	Count int
	Tools map[string]int
}

// TimeSeriesPoint is one hourly bucket of tool invocations.
type TimeSeriesPoint struct {
	Timestamp int64
	Count     int
}

type Store struct{ db DB }

func OpenSQLite(dsn string) (DB, error) {
	return sql.Open("sqlite3", dsn)
}

func InitSchema(db DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS usage_events(
		tool TEXT, category TEXT, ok INTEGER, duration_ms INTEGER, ts INTEGER
	)`)
	return err
}

func NewStore(db DB) *Store { return &Store{db: db} }

// RecordUsage logs a single tool invocation.
func (s *Store) RecordUsage(tool, category string, ok bool, duration time.Duration, ts int64) error {
	okInt := 0
	if ok {
		okInt = 1
	}
	_, err := s.db.Exec(`INSERT INTO usage_events(tool,category,ok,duration_ms,ts) VALUES(?,?,?,?,?)`,
		tool, category, okInt, duration.Milliseconds(), ts)
	return err
}

// UsageByCategory aggregates invocations per category since the given time.
func (s *Store) UsageByCategory(since int64) (map[string]*UsageStats, error) {
	rows, err := s.db.Query(`SELECT category, tool, COUNT(*) FROM usage_events
		WHERE ts>=? GROUP BY category, tool`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats := make(map[string]*UsageStats)
	for rows.Next() {
		var category, tool string
		var count int
		if err := rows.Scan(&category, &tool, &count); err != nil {
			return nil, err
		}
		st, ok := stats[category]
		if !ok {
			st = &UsageStats{Tools: make(map[string]int)}
			stats[category] = st
		}
		st.Count += count
		st.Tools[tool] = count
	}
	return stats, rows.Err()
}

// UsageTimeSeries buckets invocations per category into hourly points.
func (s *Store) UsageTimeSeries(since int64) (map[string][]TimeSeriesPoint, error) {
	rows, err := s.db.Query(`SELECT category, (ts/3600)*3600 AS bucket, COUNT(*)
		FROM usage_events WHERE ts>=? GROUP BY category, bucket ORDER BY bucket ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	series := make(map[string][]TimeSeriesPoint)
	for rows.Next() {
		var category string
		var bucket int64
		var count int
		if err := rows.Scan(&category, &bucket, &count); err != nil {
			return nil, err
		}
		series[category] = append(series[category], TimeSeriesPoint{Timestamp: bucket, Count: count})
	}
	return series, rows.Err()
}

// ErrorRate returns the share of failed invocations for a tool since the
// given time, and how many invocations were seen.
func (s *Store) ErrorRate(tool string, since int64) (float64, int, error) {
	rows, err := s.db.Query(`SELECT COUNT(*), COALESCE(SUM(1-ok),0) FROM usage_events
		WHERE tool=? AND ts>=?`, tool, since)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()
	var total, failed int
	if rows.Next() {
		if err := rows.Scan(&total, &failed); err != nil {
			return 0, 0, err
		}
	}
	if total == 0 {
		return 0, 0, rows.Err()
	}
	return float64(failed) / float64(total), total, rows.Err()
}
