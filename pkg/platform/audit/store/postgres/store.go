// Package postgres persists audit events through database/sql.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	id "signup/pkg/domain"
	audit "signup/pkg/platform/audit"
)

// Store implements audit.Store on the audit_events table.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store. The db is expected to use the
// lib/pq driver.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts an event. Replays of the same event ID are ignored.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	var userID sql.NullInt64
	if !event.UserID.IsNil() {
		userID = sql.NullInt64{Int64: int64(event.UserID), Valid: true}
	}

	query := `
		INSERT INTO audit_events (
			id, category, timestamp, user_id, subject, action,
			reason, email, request_id, client_ip
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID.String(),
		string(category),
		event.Timestamp,
		userID,
		event.Subject,
		event.Action,
		event.Reason,
		event.Email,
		event.RequestID,
		event.ClientIP,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByUser returns events for a user, most recent first.
func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	query := `
		SELECT id, category, timestamp, user_id, subject, action,
			   reason, email, request_id, client_ip
		FROM audit_events
		WHERE user_id = $1
		ORDER BY timestamp DESC
	`
	rows, err := s.db.QueryContext(ctx, query, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			rawID    string
			category string
			uid      sql.NullInt64
		)
		if err := rows.Scan(
			&rawID,
			&category,
			&event.Timestamp,
			&uid,
			&event.Subject,
			&event.Action,
			&event.Reason,
			&event.Email,
			&event.RequestID,
			&event.ClientIP,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		eventID, err := id.ParseEventID(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse audit event id: %w", err)
		}
		event.ID = eventID
		event.Category = audit.EventCategory(category)
		if uid.Valid {
			event.UserID = id.UserID(uid.Int64)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
