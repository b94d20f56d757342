package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mbd888/churnwatch/internal/sqldb"
)

// SQLStore reads events from the events table (PostgreSQL or MySQL).
type SQLStore struct {
	db      *sql.DB
	dialect sqldb.Dialect
}

// NewSQLStore creates a SQL-backed event store.
func NewSQLStore(db *sql.DB, dialect sqldb.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

const queryEvents = `
	SELECT id, client_id, user_id, email, event_type, product_id, session_id,
	       quantity, price, metadata, occurred_at
	FROM events
	WHERE client_id = ?
	  AND occurred_at >= ?
	  AND occurred_at <= ?
	ORDER BY COALESCE(user_id, email), occurred_at, id
`

func (s *SQLStore) Query(ctx context.Context, clientID string, start, end time.Time) ([]*Event, error) {
	if end.Before(start) {
		return nil, ErrInvalidWindow
	}

	rows, err := s.db.QueryContext(ctx, sqldb.Rebind(s.dialect, queryEvents), clientID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return result, nil
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	var (
		e                                   Event
		userID, email, productID, sessionID sql.NullString
		eventType                           string
		quantity                            sql.NullInt64
		price                               sql.NullFloat64
		metadata                            []byte
	)
	if err := rows.Scan(
		&e.ID, &e.ClientID, &userID, &email, &eventType, &productID, &sessionID,
		&quantity, &price, &metadata, &e.OccurredAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	e.UserID = userID.String
	e.Email = email.String
	e.Type = Type(eventType)
	e.ProductID = productID.String
	e.SessionID = sessionID.String
	e.OccurredAt = e.OccurredAt.UTC()
	if quantity.Valid {
		q := int(quantity.Int64)
		e.Quantity = &q
	}
	if price.Valid {
		p := price.Float64
		e.Price = &p
	}
	if len(metadata) > 0 {
		// Metadata is free-form; a malformed blob is not worth failing a report over.
		_ = json.Unmarshal(metadata, &e.Metadata)
	}
	return &e, nil
}
