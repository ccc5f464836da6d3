package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/sillysearch/pkg/models"
)

// ErrThreadNotFound is returned when a thread ID has no stored row.
var ErrThreadNotFound = errors.New("thread not found")

// ThreadStatus is the lifecycle state of a research thread.
type ThreadStatus string

const (
	// ThreadActive is a thread whose run has not finished.
	ThreadActive ThreadStatus = "active"
	// ThreadAwaitingUser is a thread paused on a clarifying question.
	ThreadAwaitingUser ThreadStatus = "awaiting_user"
	// ThreadCompleted is a thread with a final report.
	ThreadCompleted ThreadStatus = "completed"
	// ThreadFailed is a thread whose last run returned an error.
	ThreadFailed ThreadStatus = "failed"
)

// Thread is a persisted research conversation.
type Thread struct {
	ID        string       `yaml:"id"`
	Title     string       `yaml:"title"`
	Status    ThreadStatus `yaml:"status"`
	CreatedAt time.Time    `yaml:"created_at"`
	UpdatedAt time.Time    `yaml:"updated_at"`
}

// Report is the stored outcome of a completed run.
type Report struct {
	Brief        string    `yaml:"brief"`
	Notes        []string  `yaml:"notes"`
	Report       string    `yaml:"report"`
	Iterations   int       `yaml:"iterations"`
	InputTokens  int64     `yaml:"input_tokens"`
	OutputTokens int64     `yaml:"output_tokens"`
	CreatedAt    time.Time `yaml:"created_at"`
}

// CreateThread inserts a new active thread with a fresh ID, titled after
// the first line of title.
func (db *DB) CreateThread(title string) (*Thread, error) {
	now := time.Now().UTC()
	t := &Thread{
		ID:        uuid.NewString(),
		Title:     threadTitle(title),
		Status:    ThreadActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := db.Exec(`
		INSERT INTO threads (id, title, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, t.ID, t.Title, string(t.Status), formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert thread: %w", err)
	}
	return t, nil
}

func threadTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > 80 {
		s = string(r[:80]) + "..."
	}
	return s
}

// GetThread retrieves a thread by ID.
func (db *DB) GetThread(id string) (*Thread, error) {
	row := db.QueryRow(`
		SELECT id, title, status, created_at, updated_at
		FROM threads WHERE id = ?
	`, id)

	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrThreadNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return t, nil
}

// ListThreads returns up to limit threads, most recently updated first.
// A non-positive limit returns all threads.
func (db *DB) ListThreads(limit int) ([]Thread, error) {
	query := `SELECT id, title, status, created_at, updated_at FROM threads ORDER BY updated_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var threads []Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, *t)
	}
	return threads, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanThread(s scanner) (*Thread, error) {
	var t Thread
	var status, createdAt, updatedAt string
	if err := s.Scan(&t.ID, &t.Title, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.Status = ThreadStatus(status)

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &t, nil
}

// SetStatus updates a thread's status and touches updated_at.
func (db *DB) SetStatus(id string, status ThreadStatus) error {
	res, err := db.Exec(`UPDATE threads SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update thread status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrThreadNotFound)
	}
	return nil
}

// AppendMessages stores msgs after the thread's existing messages.
func (db *DB) AppendMessages(id string, msgs []models.Message) error {
	return db.Transaction(func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM threads WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check thread: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%s: %w", id, ErrThreadNotFound)
		}

		var next int
		if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), -1) + 1 FROM thread_messages WHERE thread_id = ?`, id).Scan(&next); err != nil {
			return fmt.Errorf("next message seq: %w", err)
		}

		now := formatTime(time.Now())
		for i, m := range msgs {
			var calls sql.NullString
			if len(m.ToolCalls) > 0 {
				data, err := json.Marshal(m.ToolCalls)
				if err != nil {
					return fmt.Errorf("marshal tool calls: %w", err)
				}
				calls = sql.NullString{String: string(data), Valid: true}
			}
			_, err := tx.Exec(`
				INSERT INTO thread_messages (thread_id, seq, role, content, tool_calls, tool_call_id, name, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, id, next+i, string(m.Role), m.Content, calls, m.ToolCallID, m.Name, now)
			if err != nil {
				return fmt.Errorf("insert message: %w", err)
			}
		}

		if _, err := tx.Exec(`UPDATE threads SET updated_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("touch thread: %w", err)
		}
		return nil
	})
}

// Messages returns a thread's messages in the order they were appended.
func (db *DB) Messages(id string) ([]models.Message, error) {
	rows, err := db.Query(`
		SELECT role, content, tool_calls, tool_call_id, name
		FROM thread_messages WHERE thread_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		var role string
		var calls, callID, name sql.NullString
		if err := rows.Scan(&role, &m.Content, &calls, &callID, &name); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = models.Role(role)
		m.ToolCallID = callID.String
		m.Name = name.String
		if calls.Valid && calls.String != "" {
			if err := json.Unmarshal([]byte(calls.String), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshal tool calls: %w", err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SaveReport stores the outcome of a run and marks the thread completed.
// A later report for the same thread replaces the earlier one.
func (db *DB) SaveReport(id string, r Report) error {
	notes, err := json.Marshal(r.Notes)
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO thread_reports
				(thread_id, brief, notes, report, iterations, input_tokens, output_tokens, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, r.Brief, string(notes), r.Report, r.Iterations, r.InputTokens, r.OutputTokens, formatTime(r.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert report: %w", err)
		}
		res, err := tx.Exec(`UPDATE threads SET status = ?, updated_at = ? WHERE id = ?`,
			string(ThreadCompleted), formatTime(time.Now()), id)
		if err != nil {
			return fmt.Errorf("update thread status: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%s: %w", id, ErrThreadNotFound)
		}
		return nil
	})
}

// GetReport returns the stored report of a thread.
func (db *DB) GetReport(id string) (*Report, error) {
	var r Report
	var notes, createdAt string
	err := db.QueryRow(`
		SELECT brief, notes, report, iterations, input_tokens, output_tokens, created_at
		FROM thread_reports WHERE thread_id = ?
	`, id).Scan(&r.Brief, &notes, &r.Report, &r.Iterations, &r.InputTokens, &r.OutputTokens, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report for %s: %w", id, ErrThreadNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if err := json.Unmarshal([]byte(notes), &r.Notes); err != nil {
		return nil, fmt.Errorf("unmarshal notes: %w", err)
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &r, nil
}

// Export is the YAML document written by ExportThread.
type Export struct {
	Thread   Thread           `yaml:"thread"`
	Messages []models.Message `yaml:"messages"`
	Report   *Report          `yaml:"report,omitempty"`
}

// ExportThread writes a thread, its messages and its report as YAML.
func (db *DB) ExportThread(id string, w io.Writer) error {
	t, err := db.GetThread(id)
	if err != nil {
		return err
	}
	msgs, err := db.Messages(id)
	if err != nil {
		return err
	}
	doc := Export{Thread: *t, Messages: msgs}
	if r, err := db.GetReport(id); err == nil {
		doc.Report = r
	} else if !errors.Is(err, ErrThreadNotFound) {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode thread: %w", err)
	}
	return enc.Close()
}
