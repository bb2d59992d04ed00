package reminder

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed storage for reminders.
// Every committed write is published to subscribers as a fresh snapshot.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	pubMu sync.Mutex
	subs  map[*subscriber]struct{}
	now   func() time.Time
	locks idLocks
}

// NewStore opens (or creates) the SQLite database at dbPath and
// ensures the schema exists.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serialises writers; readers see committed rows only.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:   db,
		subs: make(map[*subscriber]struct{}),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS reminders (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			title          TEXT    NOT NULL,
			description    TEXT    NOT NULL DEFAULT '',
			reminder_dates TEXT    NOT NULL DEFAULT '',
			trigger_keys   TEXT    NOT NULL DEFAULT '',
			is_completed   INTEGER NOT NULL DEFAULT 0,
			created_at     TEXT    NOT NULL,
			updated_at     TEXT    NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create reminders table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS notifications (
			reminder_id INTEGER PRIMARY KEY,
			message_id  TEXT    NOT NULL,
			shown_at    TEXT    NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create notifications table: %w", err)
	}
	return nil
}

// Close closes every subscription and the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	for sub := range s.subs {
		sub.close()
		delete(s.subs, sub)
	}
	s.mu.Unlock()

	return s.db.Close()
}

// Insert stores r and returns its identifier. A zero ID is assigned by the
// database; a non-zero ID overwrites any existing row with that ID but keeps
// its original creation time.
// Empty trigger keys are generated, and r is updated in place.
func (s *Store) Insert(ctx context.Context, r *Reminder) (int64, error) {
	now := s.now()
	r.CreatedAt = now
	r.UpdatedAt = now
	assignTriggerKeys(r.Triggers)

	dates, keys := encodeTriggers(r.Triggers)

	if r.ID != 0 {
		var createdAt string
		err := s.db.QueryRowContext(ctx, `
			INSERT INTO reminders (id, title, description, reminder_dates, trigger_keys, is_completed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				reminder_dates = excluded.reminder_dates,
				trigger_keys = excluded.trigger_keys,
				is_completed = excluded.is_completed,
				updated_at = excluded.updated_at
			RETURNING created_at
		`, r.ID, r.Title, r.Description, dates, keys, r.Completed,
			formatTime(r.CreatedAt), formatTime(r.UpdatedAt)).Scan(&createdAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert reminder: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			r.CreatedAt = t
		}

		s.publish(ctx)
		return r.ID, nil
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (title, description, reminder_dates, trigger_keys, is_completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.Title, r.Description, dates, keys, r.Completed,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert reminder: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted ID: %w", err)
	}
	r.ID = id

	s.publish(ctx)
	return r.ID, nil
}

// Update overwrites the stored record with r. Updating a missing ID is a no-op.
// Empty trigger keys are generated, and r is updated in place.
func (s *Store) Update(ctx context.Context, r *Reminder) error {
	r.UpdatedAt = s.now()
	assignTriggerKeys(r.Triggers)

	dates, keys := encodeTriggers(r.Triggers)

	result, err := s.db.ExecContext(ctx, `
		UPDATE reminders
		SET title = ?, description = ?, reminder_dates = ?, trigger_keys = ?, is_completed = ?, updated_at = ?
		WHERE id = ?
	`, r.Title, r.Description, dates, keys, r.Completed, formatTime(r.UpdatedAt), r.ID)
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}

	if n, _ := result.RowsAffected(); n > 0 {
		s.publish(ctx)
	}
	return nil
}

// Delete removes a reminder by ID. Deleting a missing ID is a no-op.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}

	if n, _ := result.RowsAffected(); n > 0 {
		s.publish(ctx)
	}
	return nil
}

// GetByID returns a single reminder by ID, or nil when it does not exist.
func (s *Store) GetByID(ctx context.Context, id int64) (*Reminder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, reminder_dates, trigger_keys, is_completed, created_at, updated_at
		FROM reminders WHERE id = ?
	`, id)

	r, err := scanReminder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return r, nil
}

// GetAll returns every reminder ordered by ID.
func (s *Store) GetAll(ctx context.Context) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, reminder_dates, trigger_keys, is_completed, created_at, updated_at
		FROM reminders ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	reminders := []Reminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

// SaveNotification records the transport message shown for a reminder.
func (s *Store) SaveNotification(ctx context.Context, reminderID int64, messageID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO notifications (reminder_id, message_id, shown_at) VALUES (?, ?, ?)
	`, reminderID, messageID, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// LookupNotification returns the message shown for a reminder.
// ok is false when nothing is recorded.
func (s *Store) LookupNotification(ctx context.Context, reminderID int64) (messageID string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT message_id FROM notifications WHERE reminder_id = ?`, reminderID)
	if err := row.Scan(&messageID); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read notification: %w", err)
	}
	return messageID, true, nil
}

// DeleteNotification forgets the message shown for a reminder.
func (s *Store) DeleteNotification(ctx context.Context, reminderID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE reminder_id = ?`, reminderID); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func assignTriggerKeys(triggers []Trigger) {
	for i := range triggers {
		if triggers[i].Key == "" {
			triggers[i].Key = uuid.NewString()
		}
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanReminder reads a single row into a Reminder.
func scanReminder(row rowScanner) (*Reminder, error) {
	var r Reminder
	var dates, keys, createdAt, updatedAt string

	if err := row.Scan(&r.ID, &r.Title, &r.Description,
		&dates, &keys, &r.Completed,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	triggers, err := decodeTriggers(dates, keys)
	if err != nil {
		return nil, fmt.Errorf("reminder %d: %w", r.ID, err)
	}
	r.Triggers = triggers

	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return &r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
