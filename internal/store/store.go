// Package store persists reviewed question documents to SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rkotari/qbank/internal/model"
	"github.com/rkotari/qbank/internal/ulid"
)

// Schema for the uploads and questions tables, applied on Open.
const Schema = `
CREATE TABLE IF NOT EXISTS uploads (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	total INTEGER NOT NULL,
	with_answers INTEGER NOT NULL,
	with_diagrams INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	upload_id TEXT NOT NULL,
	qno INTEGER NOT NULL,
	type TEXT NOT NULL,
	question TEXT NOT NULL,
	list1 TEXT,
	list2 TEXT,
	options TEXT,
	answer TEXT,
	diagram TEXT
);
CREATE INDEX IF NOT EXISTS idx_questions_upload ON questions(upload_id);
CREATE INDEX IF NOT EXISTS idx_questions_qno ON questions(upload_id, qno);
CREATE INDEX IF NOT EXISTS idx_uploads_created ON uploads(created_at);
`

// Store is the SQLite-backed question bank.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Upload is the metadata record for one saved document.
type Upload struct {
	ID           string    `json:"upload_id"`
	Filename     string    `json:"filename"`
	CreatedAt    time.Time `json:"created_at"`
	Total        int       `json:"total"`
	WithAnswers  int       `json:"with_answers"`
	WithDiagrams int       `json:"with_diagrams"`
}

// SaveDocument stores a finished document under a new upload ID and
// returns that ID. Counts are derived from the questions themselves.
func (s *Store) SaveDocument(ctx context.Context, filename string, questions []model.Question) (string, error) {
	uploadID := ulid.New()
	now := time.Now().UTC()

	withAnswers, withDiagrams := 0, 0
	for _, q := range questions {
		if q.Answer != "" {
			withAnswers++
		}
		if q.DiagramRef != "" {
			withDiagrams++
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO uploads (id, filename, created_at, total, with_answers, with_diagrams)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uploadID, filename, now.Unix(), len(questions), withAnswers, withDiagrams)
	if err != nil {
		return "", fmt.Errorf("insert upload: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO questions (upload_id, qno, type, question, list1, list2, options, answer, diagram)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, q := range questions {
		list1, list2, options, err := encodeFields(q)
		if err != nil {
			return "", err
		}
		if _, err := stmt.ExecContext(ctx,
			uploadID, q.Number, string(q.Type), q.Text,
			list1, list2, options,
			nullable(q.Answer), nullable(q.DiagramRef)); err != nil {
			return "", fmt.Errorf("insert question %d: %w", q.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return uploadID, nil
}

// Questions returns all questions of an upload, ordered by number.
func (s *Store) Questions(ctx context.Context, uploadID string) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT qno, type, question, list1, list2, options, answer, diagram
		 FROM questions WHERE upload_id = ? ORDER BY qno ASC`, uploadID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// QuestionByNumber returns one question of an upload, or nil if absent.
func (s *Store) QuestionByNumber(ctx context.Context, uploadID string, qno int) (*model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT qno, type, question, list1, list2, options, answer, diagram
		 FROM questions WHERE upload_id = ? AND qno = ? LIMIT 1`, uploadID, qno)
	if err != nil {
		return nil, fmt.Errorf("query question: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	q, err := scanQuestion(rows)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListUploads returns all upload records, most recent first.
func (s *Store) ListUploads(ctx context.Context) ([]Upload, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, created_at, total, with_answers, with_diagrams
		 FROM uploads ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	defer rows.Close()

	var out []Upload
	for rows.Next() {
		var u Upload
		var createdAt int64
		if err := rows.Scan(&u.ID, &u.Filename, &createdAt, &u.Total, &u.WithAnswers, &u.WithDiagrams); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		u.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetUpload returns one upload record, or nil if absent.
func (s *Store) GetUpload(ctx context.Context, uploadID string) (*Upload, error) {
	var u Upload
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, created_at, total, with_answers, with_diagrams
		 FROM uploads WHERE id = ?`, uploadID).
		Scan(&u.ID, &u.Filename, &createdAt, &u.Total, &u.WithAnswers, &u.WithDiagrams)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query upload: %w", err)
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}

// DeleteUpload removes an upload and its questions. Returns the number
// of questions deleted.
func (s *Store) DeleteUpload(ctx context.Context, uploadID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE upload_id = ?`, uploadID)
	if err != nil {
		return 0, fmt.Errorf("delete questions: %w", err)
	}
	deleted, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM uploads WHERE id = ?`, uploadID); err != nil {
		return 0, fmt.Errorf("delete upload: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(deleted), nil
}

func encodeFields(q model.Question) (list1, list2, options []byte, err error) {
	if len(q.ListOne) > 0 {
		if list1, err = json.Marshal(q.ListOne); err != nil {
			return nil, nil, nil, fmt.Errorf("encode list1: %w", err)
		}
	}
	if len(q.ListTwo) > 0 {
		if list2, err = json.Marshal(q.ListTwo); err != nil {
			return nil, nil, nil, fmt.Errorf("encode list2: %w", err)
		}
	}
	if len(q.Options) > 0 {
		if options, err = json.Marshal(q.Options); err != nil {
			return nil, nil, nil, fmt.Errorf("encode options: %w", err)
		}
	}
	return list1, list2, options, nil
}

func scanQuestion(rows *sql.Rows) (model.Question, error) {
	var q model.Question
	var typ string
	var list1, list2, options, answer, diagram sql.NullString
	if err := rows.Scan(&q.Number, &typ, &q.Text, &list1, &list2, &options, &answer, &diagram); err != nil {
		return q, fmt.Errorf("scan question: %w", err)
	}
	q.Type = model.QuestionType(typ)
	if list1.Valid && list1.String != "" {
		if err := json.Unmarshal([]byte(list1.String), &q.ListOne); err != nil {
			return q, fmt.Errorf("decode list1: %w", err)
		}
	}
	if list2.Valid && list2.String != "" {
		if err := json.Unmarshal([]byte(list2.String), &q.ListTwo); err != nil {
			return q, fmt.Errorf("decode list2: %w", err)
		}
	}
	if options.Valid && options.String != "" {
		if err := json.Unmarshal([]byte(options.String), &q.Options); err != nil {
			return q, fmt.Errorf("decode options: %w", err)
		}
	}
	q.Answer = answer.String
	q.DiagramRef = diagram.String
	return q, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
