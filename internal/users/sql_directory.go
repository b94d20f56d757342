package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/mbd888/churnwatch/internal/sqldb"
)

// lookupBatchSize bounds the IN list for MySQL lookups.
const lookupBatchSize = 500

// SQLDirectory reads the users table (PostgreSQL or MySQL).
type SQLDirectory struct {
	db      *sql.DB
	dialect sqldb.Dialect
}

// NewSQLDirectory creates a SQL-backed user directory.
func NewSQLDirectory(db *sql.DB, dialect sqldb.Dialect) *SQLDirectory {
	return &SQLDirectory{db: db, dialect: dialect}
}

func (d *SQLDirectory) Lookup(ctx context.Context, clientID string, userIDs []string) (map[string]*User, error) {
	result := make(map[string]*User, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	if d.dialect == sqldb.Postgres {
		rows, err := d.db.QueryContext(ctx, `
			SELECT client_id, user_id, email, name
			FROM users
			WHERE client_id = $1 AND user_id = ANY($2)
		`, clientID, pq.Array(userIDs))
		if err != nil {
			return nil, fmt.Errorf("failed to look up users: %w", err)
		}
		return result, collect(rows, result)
	}

	for start := 0; start < len(userIDs); start += lookupBatchSize {
		end := min(start+lookupBatchSize, len(userIDs))
		batch := userIDs[start:end]

		args := make([]any, 0, len(batch)+1)
		args = append(args, clientID)
		for _, id := range batch {
			args = append(args, id)
		}

		query := "SELECT client_id, user_id, email, name FROM users WHERE client_id = ? AND user_id IN (" +
			sqldb.Placeholders(len(batch)) + ")"
		rows, err := d.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to look up users: %w", err)
		}
		if err := collect(rows, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func collect(rows *sql.Rows, into map[string]*User) error {
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var u User
		var email, name sql.NullString
		if err := rows.Scan(&u.ClientID, &u.UserID, &email, &name); err != nil {
			return fmt.Errorf("failed to scan user: %w", err)
		}
		u.Email = email.String
		u.Name = name.String
		into[u.UserID] = &u
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read users: %w", err)
	}
	return nil
}
