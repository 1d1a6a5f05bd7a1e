package ride

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"antdrive/internal/events"
)

// Repo persists ride sessions, telemetry samples and discrete ride events.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateSession(ctx context.Context, startedAt time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (started_at) VALUES (?)`, startedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("session id: %w", err)
	}

	return id, nil
}

func (r *Repo) EndSession(ctx context.Context, id int64, endedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ?`, endedAt.UnixMilli(), id); err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	return nil
}

func (r *Repo) InsertSample(ctx context.Context, sessionID int64, s events.TelemetrySample) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO samples (session_id, at, speed_kmh, power_watts, cadence_rpm, heart_rate, distance_m, brake_temp_c)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, s.At.UnixMilli(), s.SpeedKmh, s.PowerWatts, s.CadenceRpm, s.HeartRate, s.DistanceM, s.BrakeTempC); err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}

	return nil
}

func (r *Repo) InsertEvent(ctx context.Context, sessionID int64, at time.Time, kind, detail string) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO ride_events (session_id, at, kind, detail) VALUES (?, ?, ?, ?)`,
		sessionID, at.UnixMilli(), kind, detail); err != nil {
		return fmt.Errorf("insert ride event: %w", err)
	}

	return nil
}

// SessionStats is an aggregate view of one recorded session.
type SessionStats struct {
	Samples     int
	MaxSpeedKmh float64
	AvgPower    float64
	DistanceM   uint32
}

func (r *Repo) Stats(ctx context.Context, sessionID int64) (SessionStats, error) {
	var stats SessionStats
	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(speed_kmh), 0), COALESCE(AVG(power_watts), 0), COALESCE(MAX(distance_m), 0)
		 FROM samples WHERE session_id = ?`, sessionID)
	if err := row.Scan(&stats.Samples, &stats.MaxSpeedKmh, &stats.AvgPower, &stats.DistanceM); err != nil {
		return SessionStats{}, fmt.Errorf("session stats: %w", err)
	}

	return stats, nil
}
