// Package sqlite persists the violation history to a WAL-mode SQLite
// database for audit and analysis. The monitor's in-memory list remains the
// source of truth at runtime; the journal is write-behind.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"risk-systemv1/internal/model"
)

// Journal records risk violations durably.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// DB returns the underlying handle for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// New opens (or creates) the journal database.
func New(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer keeps WAL contention away.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS violations (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		broker_id     TEXT NOT NULL,
		type          TEXT NOT NULL,
		severity      TEXT NOT NULL,
		current_value REAL NOT NULL,
		limit_value   REAL NOT NULL,
		violation_pct REAL NOT NULL,
		positions     TEXT,
		status        TEXT NOT NULL,
		created_at    DATETIME NOT NULL,
		resolved_at   DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_violations_user ON violations(user_id, broker_id);
	CREATE INDEX IF NOT EXISTS idx_violations_created ON violations(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened violation journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// RecordViolation inserts a new violation row.
func (j *Journal) RecordViolation(v model.RiskViolation) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	positions, _ := json.Marshal(v.AffectedPositions)
	_, err := j.db.Exec(
		`INSERT INTO violations (id, user_id, broker_id, type, severity, current_value, limit_value, violation_pct, positions, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.BrokerID, string(v.Type), string(v.Severity),
		v.CurrentValue, v.LimitValue, v.ViolationPercent,
		string(positions), string(v.Status), v.Timestamp.Format(time.RFC3339),
	)
	return err
}

// UpdateViolationStatus transitions a journaled violation's lifecycle state.
func (j *Journal) UpdateViolationStatus(id string, status model.ViolationStatus, resolvedAt *time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var resolved interface{}
	if resolvedAt != nil {
		resolved = resolvedAt.Format(time.RFC3339)
	}
	_, err := j.db.Exec(
		`UPDATE violations SET status = ?, resolved_at = ? WHERE id = ?`,
		string(status), resolved, id,
	)
	return err
}

// ViolationRecord is a row from the violations table.
type ViolationRecord struct {
	ID               string   `json:"id"`
	UserID           string   `json:"user_id"`
	BrokerID         string   `json:"broker_id"`
	Type             string   `json:"type"`
	Severity         string   `json:"severity"`
	CurrentValue     float64  `json:"current_value"`
	LimitValue       float64  `json:"limit_value"`
	ViolationPercent float64  `json:"violation_pct"`
	Positions        []string `json:"positions,omitempty"`
	Status           string   `json:"status"`
	CreatedAt        string   `json:"created_at"`
	ResolvedAt       string   `json:"resolved_at,omitempty"`
}

// RecentViolations returns the newest rows, optionally filtered by user.
func (j *Journal) RecentViolations(userID string, limit int) ([]ViolationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, user_id, broker_id, type, severity, current_value, limit_value, violation_pct, positions, status, created_at, COALESCE(resolved_at, '')
		FROM violations`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query violations: %w", err)
	}
	defer rows.Close()

	var out []ViolationRecord
	for rows.Next() {
		var r ViolationRecord
		var positions string
		if err := rows.Scan(&r.ID, &r.UserID, &r.BrokerID, &r.Type, &r.Severity,
			&r.CurrentValue, &r.LimitValue, &r.ViolationPercent,
			&positions, &r.Status, &r.CreatedAt, &r.ResolvedAt); err != nil {
			return nil, err
		}
		if strings.TrimSpace(positions) != "" {
			json.Unmarshal([]byte(positions), &r.Positions)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
