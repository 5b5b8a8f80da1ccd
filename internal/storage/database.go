package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	sqlite "modernc.org/sqlite"

	"github.com/conorfennell/archpad/internal/domain"
	"github.com/conorfennell/archpad/internal/fault"
	"github.com/conorfennell/archpad/internal/notify"
)

// SQLite primary result codes for a connection held open elsewhere.
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// Key prefix under which study-time increments live in the settings
// collection.
const studyTimePrefix = "studytime:"

var validate = validator.New()

// busyTimeout bounds how long a connection waits on a lock held by another
// connection before giving up with SQLITE_BUSY.
var busyTimeout = 5 * time.Second

// DB wraps the SQL database connection and the notification sink every
// operation reports failures through.
type DB struct {
	conn *sql.DB
	sink notify.Sink
}

// Open creates a new database connection and ensures the schema is up to
// date. A database locked by another connection surfaces as a distinct
// blocked error rather than hanging.
func Open(dsn string, sink notify.Sink) (*DB, error) {
	if sink == nil {
		sink = notify.Nop{}
	}

	// The busy timeout has to ride in on the DSN so it already applies to
	// the first connection the pool opens.
	if !strings.Contains(dsn, "?") {
		dsn = fmt.Sprintf("%s?_pragma=busy_timeout(%d)", dsn, busyTimeout.Milliseconds())
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, initErr(sink, "failed to open database", err)
	}

	// A single connection serializes writers and keeps the upgrade
	// transaction from racing itself through the pool.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		if isBlocked(err) {
			return nil, initErr(sink, "database is blocked by another open connection", err)
		}
		return nil, initErr(sink, "failed to connect to database", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		if isBlocked(err) {
			return nil, initErr(sink, "database is blocked by another open connection", err)
		}
		return nil, initErr(sink, "failed to apply schema", err)
	}

	return &DB{conn: conn, sink: sink}, nil
}

// migrate walks the database's user_version up through the pending
// migration scripts, each applied in its own transaction.
func migrate(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for v := version; v < len(migrations); v++ {
		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration to version %d: %w", v+1, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to migrate to version %d: %w", v+1, err)
		}
		// PRAGMA does not take placeholders.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record schema version %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration to version %d: %w", v+1, err)
		}
	}
	return nil
}

func isBlocked(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqliteBusy || code == sqliteLocked
	}
	return false
}

func initErr(sink notify.Sink, msg string, cause error) error {
	sink.Notify(notify.Error, "Local storage is unavailable - changes will not be saved")
	return fault.New(fault.StorageInit, msg, cause)
}

// opErr wraps a single failed operation, tells the user, and hands the
// tagged error back to the caller. The store stays usable afterwards.
func (db *DB) opErr(op string, cause error) error {
	db.sink.Notify(notify.Error, "A storage operation failed - your last change may not be saved")
	return fault.New(fault.StorageOp, op, cause)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// PutTerm upserts a server term by id. Full replacement, no field merge.
func (db *DB) PutTerm(t domain.Term) error {
	_, err := db.conn.Exec(`
		INSERT INTO terms (id, term, definition, category)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			term = excluded.term,
			definition = excluded.definition,
			category = excluded.category
	`, t.ID, t.Term, t.Definition, t.Category)
	if err != nil {
		return db.opErr(fmt.Sprintf("failed to put term %d", t.ID), err)
	}
	return nil
}

// GetTerm finds a term by id. Returns (nil, nil) when absent.
func (db *DB) GetTerm(id int64) (*domain.Term, error) {
	var t domain.Term
	row := db.conn.QueryRow(`
		SELECT id, term, definition, category FROM terms WHERE id = ?
	`, id)
	if err := row.Scan(&t.ID, &t.Term, &t.Definition, &t.Category); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, db.opErr(fmt.Sprintf("failed to get term %d", id), err)
	}
	return &t, nil
}

// GetAllTerms returns every server term, in no promised order.
func (db *DB) GetAllTerms() ([]domain.Term, error) {
	rows, err := db.conn.Query(`SELECT id, term, definition, category FROM terms`)
	if err != nil {
		return nil, db.opErr("failed to get all terms", err)
	}
	defer rows.Close()

	var terms []domain.Term
	for rows.Next() {
		var t domain.Term
		if err := rows.Scan(&t.ID, &t.Term, &t.Definition, &t.Category); err != nil {
			return nil, db.opErr("failed to scan term row", err)
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, db.opErr("failed to iterate terms", err)
	}
	return terms, nil
}

// DeleteTerm removes a term by id. Deleting an absent key succeeds; the
// desired end state is already reached.
func (db *DB) DeleteTerm(id int64) error {
	if _, err := db.conn.Exec(`DELETE FROM terms WHERE id = ?`, id); err != nil {
		return db.opErr(fmt.Sprintf("failed to delete term %d", id), err)
	}
	return nil
}

// PutFormula upserts a formula by id.
func (db *DB) PutFormula(f domain.Formula) error {
	variables := "null"
	if len(f.Variables) > 0 {
		variables = string(f.Variables)
	}
	_, err := db.conn.Exec(`
		INSERT INTO formulas (id, name, formula, description, variables)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			formula = excluded.formula,
			description = excluded.description,
			variables = excluded.variables
	`, f.ID, f.Name, f.Formula, f.Description, variables)
	if err != nil {
		return db.opErr(fmt.Sprintf("failed to put formula %d", f.ID), err)
	}
	return nil
}

// GetFormula finds a formula by id. Returns (nil, nil) when absent.
func (db *DB) GetFormula(id int64) (*domain.Formula, error) {
	var f domain.Formula
	var variables string
	row := db.conn.QueryRow(`
		SELECT id, name, formula, description, variables FROM formulas WHERE id = ?
	`, id)
	if err := row.Scan(&f.ID, &f.Name, &f.Formula, &f.Description, &variables); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, db.opErr(fmt.Sprintf("failed to get formula %d", id), err)
	}
	f.Variables = []byte(variables)
	return &f, nil
}

// GetAllFormulas returns every cached formula.
func (db *DB) GetAllFormulas() ([]domain.Formula, error) {
	rows, err := db.conn.Query(`SELECT id, name, formula, description, variables FROM formulas`)
	if err != nil {
		return nil, db.opErr("failed to get all formulas", err)
	}
	defer rows.Close()

	var formulas []domain.Formula
	for rows.Next() {
		var f domain.Formula
		var variables string
		if err := rows.Scan(&f.ID, &f.Name, &f.Formula, &f.Description, &variables); err != nil {
			return nil, db.opErr("failed to scan formula row", err)
		}
		f.Variables = []byte(variables)
		formulas = append(formulas, f)
	}
	if err := rows.Err(); err != nil {
		return nil, db.opErr("failed to iterate formulas", err)
	}
	return formulas, nil
}

// DeleteFormula removes a formula by id; absent keys are a no-op.
func (db *DB) DeleteFormula(id int64) error {
	if _, err := db.conn.Exec(`DELETE FROM formulas WHERE id = ?`, id); err != nil {
		return db.opErr(fmt.Sprintf("failed to delete formula %d", id), err)
	}
	return nil
}

// AddCustomTerm inserts a user-authored term with a store-assigned id and a
// server-independent creation stamp. Always an insert, never an upsert.
func (db *DB) AddCustomTerm(ct domain.CustomTerm) (int64, error) {
	if err := validate.Struct(ct); err != nil {
		return 0, db.opErr("invalid custom term", err)
	}
	createdAt := ct.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := db.conn.Exec(`
		INSERT INTO custom_terms (term, definition, category, created_at)
		VALUES (?, ?, ?, ?)
	`, ct.Term, ct.Definition, ct.Category, createdAt)
	if err != nil {
		return 0, db.opErr(fmt.Sprintf("failed to add custom term %q", ct.Term), err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, db.opErr(fmt.Sprintf("failed to get id for custom term %q", ct.Term), err)
	}
	return id, nil
}

// GetCustomTerms returns every user-authored term with IsCustom set.
func (db *DB) GetCustomTerms() ([]domain.CustomTerm, error) {
	rows, err := db.conn.Query(`SELECT id, term, definition, category, created_at FROM custom_terms`)
	if err != nil {
		return nil, db.opErr("failed to get custom terms", err)
	}
	defer rows.Close()

	var terms []domain.CustomTerm
	for rows.Next() {
		var ct domain.CustomTerm
		if err := rows.Scan(&ct.ID, &ct.Term, &ct.Definition, &ct.Category, &ct.CreatedAt); err != nil {
			return nil, db.opErr("failed to scan custom term row", err)
		}
		ct.IsCustom = true
		terms = append(terms, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, db.opErr("failed to iterate custom terms", err)
	}
	return terms, nil
}

// DeleteCustomTerm removes a custom term by id; absent keys are a no-op.
func (db *DB) DeleteCustomTerm(id int64) error {
	if _, err := db.conn.Exec(`DELETE FROM custom_terms WHERE id = ?`, id); err != nil {
		return db.opErr(fmt.Sprintf("failed to delete custom term %d", id), err)
	}
	return nil
}

// AddQuizScore records one mock exam result under a store-assigned id.
func (db *DB) AddQuizScore(s domain.QuizScore) (int64, error) {
	if err := validate.Struct(s); err != nil {
		return 0, db.opErr("invalid quiz score", err)
	}
	timestamp := s.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	res, err := db.conn.Exec(`
		INSERT INTO quiz_scores (score, total, timestamp)
		VALUES (?, ?, ?)
	`, s.Score, s.Total, timestamp)
	if err != nil {
		return 0, db.opErr("failed to add quiz score", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, db.opErr("failed to get id for quiz score", err)
	}
	return id, nil
}

// GetQuizScores returns every recorded score.
func (db *DB) GetQuizScores() ([]domain.QuizScore, error) {
	rows, err := db.conn.Query(`SELECT id, score, total, timestamp FROM quiz_scores`)
	if err != nil {
		return nil, db.opErr("failed to get quiz scores", err)
	}
	defer rows.Close()

	var scores []domain.QuizScore
	for rows.Next() {
		var s domain.QuizScore
		if err := rows.Scan(&s.ID, &s.Score, &s.Total, &s.Timestamp); err != nil {
			return nil, db.opErr("failed to scan quiz score row", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, db.opErr("failed to iterate quiz scores", err)
	}
	return scores, nil
}

// DeleteQuizScore removes a score by id; absent keys are a no-op.
func (db *DB) DeleteQuizScore(id int64) error {
	if _, err := db.conn.Exec(`DELETE FROM quiz_scores WHERE id = ?`, id); err != nil {
		return db.opErr(fmt.Sprintf("failed to delete quiz score %d", id), err)
	}
	return nil
}

// PutSetting upserts a key/value row.
func (db *DB) PutSetting(key, value string) error {
	_, err := db.conn.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return db.opErr(fmt.Sprintf("failed to put setting %q", key), err)
	}
	return nil
}

// GetSetting finds a setting by key. Returns (nil, nil) when absent.
func (db *DB) GetSetting(key string) (*domain.Setting, error) {
	var s domain.Setting
	row := db.conn.QueryRow(`SELECT key, value FROM settings WHERE key = ?`, key)
	if err := row.Scan(&s.Key, &s.Value); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, db.opErr(fmt.Sprintf("failed to get setting %q", key), err)
	}
	return &s, nil
}

// GetAllSettings returns every settings row, study-time increments included.
func (db *DB) GetAllSettings() ([]domain.Setting, error) {
	rows, err := db.conn.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, db.opErr("failed to get all settings", err)
	}
	defer rows.Close()

	var settings []domain.Setting
	for rows.Next() {
		var s domain.Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, db.opErr("failed to scan setting row", err)
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, db.opErr("failed to iterate settings", err)
	}
	return settings, nil
}

// DeleteSetting removes a setting by key; absent keys are a no-op.
func (db *DB) DeleteSetting(key string) error {
	if _, err := db.conn.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return db.opErr(fmt.Sprintf("failed to delete setting %q", key), err)
	}
	return nil
}

// AddStudyIncrement persists one committed span of study time as a
// settings row keyed by the segment timestamp.
func (db *DB) AddStudyIncrement(ts time.Time, elapsed time.Duration) error {
	key := studyTimePrefix + strconv.FormatInt(ts.UnixNano(), 10)
	return db.PutSetting(key, strconv.FormatInt(elapsed.Milliseconds(), 10))
}

// StudyIncrements returns every persisted study-time increment.
func (db *DB) StudyIncrements() ([]domain.StudyIncrement, error) {
	rows, err := db.conn.Query(`SELECT key, value FROM settings WHERE key LIKE ?`, studyTimePrefix+"%")
	if err != nil {
		return nil, db.opErr("failed to get study increments", err)
	}
	defer rows.Close()

	var increments []domain.StudyIncrement
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, db.opErr("failed to scan study increment row", err)
		}
		nanos, err := strconv.ParseInt(strings.TrimPrefix(key, studyTimePrefix), 10, 64)
		if err != nil {
			return nil, db.opErr(fmt.Sprintf("malformed study increment key %q", key), err)
		}
		millis, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, db.opErr(fmt.Sprintf("malformed study increment value for %q", key), err)
		}
		increments = append(increments, domain.StudyIncrement{
			Timestamp: time.Unix(0, nanos).UTC(),
			Elapsed:   time.Duration(millis) * time.Millisecond,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, db.opErr("failed to iterate study increments", err)
	}
	return increments, nil
}
