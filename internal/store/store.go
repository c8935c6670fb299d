// Package store reads single events straight from the application database.
// It backs hydration when the read API is unavailable.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("event not found")

// Event is one notification or activity row joined with its actor and post.
type Event struct {
	ID          string
	Type        string
	ActorID     string
	Username    string
	DisplayName string
	AvatarURL   string
	ActivityID  string
	PostID      string
	PostSlug    string
	PostTitle   string
	Message     string
	Read        bool
	CreatedAt   time.Time
}

// Store looks up events by feed name and id.
type Store interface {
	LookupEvent(ctx context.Context, feed string, id string) (Event, error)
	Close() error
}

// Open picks a backend from the DSN: postgres:// and postgresql:// URLs use
// a pgx pool, anything else is treated as a SQLite path.
func Open(ctx context.Context, dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("store dsn is required")
	}
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return OpenPostgres(ctx, dsn)
	}
	return OpenSQLite(strings.TrimPrefix(dsn, "sqlite://"))
}

// lookupQuery returns the join for feed with placeholder as the bind marker.
func lookupQuery(feed string, placeholder string) (string, error) {
	switch feed {
	case "notifications":
		return `SELECT n.id, n.type, n.actor_id,
       COALESCE(u.username, ''), COALESCE(u.display_name, ''), COALESCE(u.avatar_url, ''),
       COALESCE(n.activity_id, ''), COALESCE(n.post_id, ''),
       COALESCE(p.slug, ''), COALESCE(p.title, ''), COALESCE(n.message, ''),
       n.read, n.created_at
FROM notifications n
LEFT JOIN users u ON u.id = n.actor_id
LEFT JOIN posts p ON p.id = n.post_id
WHERE n.id = ` + placeholder, nil
	case "activities":
		return `SELECT a.id, a.type, a.actor_id,
       COALESCE(u.username, ''), COALESCE(u.display_name, ''), COALESCE(u.avatar_url, ''),
       a.id, COALESCE(a.post_id, ''),
       COALESCE(p.slug, ''), COALESCE(p.title, ''), COALESCE(a.message, ''),
       FALSE, a.created_at
FROM activities a
LEFT JOIN users u ON u.id = a.actor_id
LEFT JOIN posts p ON p.id = a.post_id
WHERE a.id = ` + placeholder, nil
	default:
		return "", fmt.Errorf("unknown feed %q", feed)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (Event, error) {
	var ev Event
	err := row.Scan(
		&ev.ID, &ev.Type, &ev.ActorID,
		&ev.Username, &ev.DisplayName, &ev.AvatarURL,
		&ev.ActivityID, &ev.PostID,
		&ev.PostSlug, &ev.PostTitle, &ev.Message,
		&ev.Read, &ev.CreatedAt,
	)
	if err != nil {
		return Event{}, err
	}
	ev.CreatedAt = ev.CreatedAt.UTC()
	return ev, nil
}
