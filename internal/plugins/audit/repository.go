package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository defines the data access contract for auth events.
// All SQL lives in the concrete implementation.
type Repository interface {
	// Insert stores a new event and sets its ID.
	Insert(ctx context.Context, e *Event) error

	// Recent returns the newest events first, at most limit of them. An
	// empty action matches every event.
	Recent(ctx context.Context, action string, limit int) ([]Event, error)
}

// repository implements Repository with MariaDB queries.
type repository struct {
	db *sql.DB
}

// NewRepository creates a new repository backed by the given DB pool.
func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// Insert serializes Details to JSON. Nil details are stored as SQL NULL.
func (r *repository) Insert(ctx context.Context, e *Event) error {
	query := `INSERT INTO auth_events (action, user_id, email, ip, user_agent, details, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	var details []byte
	if e.Details != nil {
		var err error
		details, err = json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshaling event details: %w", err)
		}
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, query,
		e.Action, nullString(e.UserID), nullString(e.Email),
		nullString(e.IP), nullString(e.UserAgent), details, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting auth event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting auth event id: %w", err)
	}
	e.ID = id
	return nil
}

// Recent lists the newest events.
func (r *repository) Recent(ctx context.Context, action string, limit int) ([]Event, error) {
	query := `SELECT id, action, user_id, email, ip, user_agent, details, created_at
	          FROM auth_events`
	args := []any{}
	if action != "" {
		query += ` WHERE action = ?`
		args = append(args, action)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing auth events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e                             Event
			userID, email, ip, userAgent sql.NullString
			details                       []byte
		)
		if err := rows.Scan(&e.ID, &e.Action, &userID, &email, &ip, &userAgent, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning auth event: %w", err)
		}
		e.UserID, e.Email, e.IP, e.UserAgent = userID.String, email.String, ip.String, userAgent.String
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling event details: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// nullString maps "" to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
