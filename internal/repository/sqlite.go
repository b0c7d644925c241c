package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/gogo/standup/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens dsn and applies migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	memory := dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
	db, err := sql.Open("sqlite3", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	if memory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return NewSQLiteStoreFromDB(db), nil
}

// NewSQLiteStoreFromDB wraps an already migrated database handle.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// withPragmas enables foreign keys on every pooled connection.
func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const runColumns = `run_id, date, title, timezone, status, started_at, completed_at, error`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	var completedAt sql.NullTime
	var errMsg sql.NullString
	if err := row.Scan(&run.RunID, &run.Date, &run.Title, &run.Timezone, &run.Status, &run.StartedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return &run, nil
}

// UpsertRun creates the run for date, or resets an existing one back to running.
// The run_id of an existing run is preserved.
func (s *SQLiteStore) UpsertRun(ctx context.Context, date, title, timezone string, startedAt time.Time) (*domain.Run, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, date, title, timezone, status, started_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			title = excluded.title,
			timezone = excluded.timezone,
			status = excluded.status,
			started_at = excluded.started_at,
			completed_at = NULL,
			error = NULL`,
		uuid.NewString(), date, title, timezone, domain.RunStatusRunning, startedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert run: %w", err)
	}
	run, err := s.GetRunByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run for %s vanished after upsert", date)
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetRunByDate retrieves the run for a calendar date.
func (s *SQLiteStore) GetRunByDate(ctx context.Context, date string) (*domain.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE date = ?`, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest date first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY date DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// FinishRun moves a run to a terminal status.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status domain.RunStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE run_id = ?`,
		status, s.now(), nullString(errMsg), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AbandonedReason is recorded on runs closed by reconciliation.
const AbandonedReason = "abandoned"

// MarkStaleRuns marks running runs for a date before beforeDate, or started
// before startedBefore, as error. A zero startedBefore disables the age check.
func (s *SQLiteStore) MarkStaleRuns(ctx context.Context, beforeDate string, startedBefore time.Time) (int64, error) {
	var conds []string
	args := []interface{}{domain.RunStatusError, s.now(), AbandonedReason, domain.RunStatusRunning}
	if beforeDate != "" {
		conds = append(conds, "date < ?")
		args = append(args, beforeDate)
	}
	if !startedBefore.IsZero() {
		conds = append(conds, "started_at < ?")
		args = append(args, startedBefore.UTC())
	}
	if len(conds) == 0 {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE status = ? AND (`+strings.Join(conds, " OR ")+`)`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale runs: %w", err)
	}
	return res.RowsAffected()
}

// DeleteRun removes the run for date together with its entries and messages.
func (s *SQLiteStore) DeleteRun(ctx context.Context, date string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE date = ?`, date)
	if err != nil {
		return false, fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReplaceRunContents swaps the entries and messages of a run in one transaction.
// Either all rows land or none do.
func (s *SQLiteStore) ReplaceRunContents(ctx context.Context, runID string, entries []domain.Entry, messages []domain.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	now := s.now()
	for i := range entries {
		e := entries[i]
		if e.EntryID == "" {
			e.EntryID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO entries (entry_id, run_id, participant_id, identity_ref, turn_order, section_a, section_b, section_c, tasks, raw, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.EntryID, runID, e.ParticipantID, nullString(e.IdentityRef), e.TurnOrder,
			e.SectionA, e.SectionB, e.SectionC, nullStringBytes(e.Tasks), e.Raw, e.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert entry for %s: %w", e.ParticipantID, err)
		}
	}

	for i := range messages {
		m := messages[i]
		if m.MessageID == "" {
			m.MessageID = uuid.NewString()
		}
		if m.Seq == 0 {
			m.Seq = i + 1
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (message_id, run_id, seq, kind, participant_id, content, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.MessageID, runID, m.Seq, m.Kind, nullString(m.ParticipantID), m.Content, m.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert message %d: %w", m.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run contents: %w", err)
	}
	return nil
}

// AppendMessage adds a message after the last one of its run and sets its Seq.
func (s *SQLiteStore) AppendMessage(ctx context.Context, message *domain.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var last int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM messages WHERE run_id = ?`, message.RunID).Scan(&last); err != nil {
		return fmt.Errorf("failed to read last message: %w", err)
	}
	if message.MessageID == "" {
		message.MessageID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = s.now()
	}
	message.Seq = last + 1

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (message_id, run_id, seq, kind, participant_id, content, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		message.MessageID, message.RunID, message.Seq, message.Kind, nullString(message.ParticipantID), message.Content, message.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return tx.Commit()
}

// GetEntries returns the entries of a run in turn order.
func (s *SQLiteStore) GetEntries(ctx context.Context, runID string) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, run_id, participant_id, identity_ref, turn_order, section_a, section_b, section_c, tasks, raw, created_at
		FROM entries WHERE run_id = ? ORDER BY turn_order ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var e domain.Entry
		var identityRef, tasks sql.NullString
		if err := rows.Scan(&e.EntryID, &e.RunID, &e.ParticipantID, &identityRef, &e.TurnOrder,
			&e.SectionA, &e.SectionB, &e.SectionC, &tasks, &e.Raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.IdentityRef = identityRef.String
		if tasks.Valid {
			e.Tasks = []byte(tasks.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetMessages returns the transcript of a run.
func (s *SQLiteStore) GetMessages(ctx context.Context, runID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, run_id, seq, kind, participant_id, content, created_at
		FROM messages WHERE run_id = ? ORDER BY created_at ASC, seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var participantID sql.NullString
		if err := rows.Scan(&m.MessageID, &m.RunID, &m.Seq, &m.Kind, &participantID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.ParticipantID = participantID.String
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// UpsertParticipant registers a participant or updates its mutable fields.
func (s *SQLiteStore) UpsertParticipant(ctx context.Context, p *domain.Participant) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO participants (participant_id, name, role, endpoint, identity_ref, active, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(participant_id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			endpoint = excluded.endpoint,
			identity_ref = excluded.identity_ref,
			active = excluded.active`,
		p.ParticipantID, p.Name, p.Role, p.Endpoint, nullString(p.IdentityRef), p.Active, p.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert participant: %w", err)
	}
	return nil
}

const participantColumns = `participant_id, name, role, endpoint, identity_ref, active, created_at`

func scanParticipant(row rowScanner) (*domain.Participant, error) {
	var p domain.Participant
	var identityRef sql.NullString
	if err := row.Scan(&p.ParticipantID, &p.Name, &p.Role, &p.Endpoint, &identityRef, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.IdentityRef = identityRef.String
	return &p, nil
}

// GetParticipant retrieves a participant by ID.
func (s *SQLiteStore) GetParticipant(ctx context.Context, participantID string) (*domain.Participant, error) {
	p, err := scanParticipant(s.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE participant_id = ?`, participantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

// ListParticipants lists participants ordered by ID.
func (s *SQLiteStore) ListParticipants(ctx context.Context, activeOnly bool) ([]domain.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY participant_id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

var _ Store = (*SQLiteStore)(nil)
