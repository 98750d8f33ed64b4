package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm-forestadmin/internal/config"
	"gorm-forestadmin/internal/store"
)

const ddl = `
CREATE TABLE categories (
    id     INTEGER PRIMARY KEY AUTOINCREMENT,
    label  TEXT
);
CREATE TABLE books (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    label         TEXT NOT NULL,
    comment       TEXT,
    difficulty    TEXT,
    amount        REAL,
    options       TEXT,
    category_id   INTEGER,
    published_at  DATE,
    created_at    DATETIME,
    updated_at    DATETIME
);
CREATE TABLE advertisements (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    label    TEXT,
    book_id  INTEGER
);
CREATE TABLE comments (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    body     TEXT,
    user_id  INTEGER,
    book_id  INTEGER
);
CREATE TABLE ranges (
    id     INTEGER PRIMARY KEY AUTOINCREMENT,
    label  TEXT
);
CREATE TABLE book_range (
    book_id   INTEGER,
    range_id  INTEGER
);
`

// NewStore opens an empty sqlite database holding the fixture tables.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, config.DatabaseConfig{Driver: "sqlite", Path: t.TempDir(), Name: "fixtures"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(s.Close)
	if _, err := s.DB.ExecContext(ctx, ddl); err != nil {
		t.Fatalf("create fixture tables: %v", err)
	}
	return s
}

// BookRow is a book inserted by InsertBook.
type BookRow struct {
	Label      string
	Difficulty string
	Amount     float64
	CategoryID int64
	CreatedAt  time.Time
}

// InsertCategory inserts a category and returns its id.
func InsertCategory(t *testing.T, s *store.Store, label string) int64 {
	t.Helper()
	return insert(t, s, "INSERT INTO categories (label) VALUES (?1)", label)
}

// InsertBook inserts a book and returns its id.
func InsertBook(t *testing.T, s *store.Store, b BookRow) int64 {
	t.Helper()
	if b.Difficulty == "" {
		b.Difficulty = "easy"
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	created := b.CreatedAt.UTC().Format("2006-01-02 15:04:05")
	return insert(t, s,
		`INSERT INTO books (label, comment, difficulty, amount, options, category_id, published_at, created_at, updated_at)
		 VALUES (?1, '', ?2, ?3, '{}', ?4, ?5, ?6, ?6)`,
		b.Label, b.Difficulty, b.Amount, b.CategoryID, b.CreatedAt.UTC().Format("2006-01-02"), created)
}

// InsertComment inserts a comment on a book.
func InsertComment(t *testing.T, s *store.Store, bookID int64, body string) int64 {
	t.Helper()
	return insert(t, s, "INSERT INTO comments (body, user_id, book_id) VALUES (?1, 1, ?2)", body, bookID)
}

// InsertAdvertisement inserts the advertisement of a book.
func InsertAdvertisement(t *testing.T, s *store.Store, bookID int64, label string) int64 {
	t.Helper()
	return insert(t, s, "INSERT INTO advertisements (label, book_id) VALUES (?1, ?2)", label, bookID)
}

// InsertRange inserts a range linked to a book.
func InsertRange(t *testing.T, s *store.Store, bookID int64, label string) int64 {
	t.Helper()
	id := insert(t, s, "INSERT INTO ranges (label) VALUES (?1)", label)
	insert(t, s, "INSERT INTO book_range (book_id, range_id) VALUES (?1, ?2)", bookID, id)
	return id
}

// MakeBooks creates ten books in category 1; book N is labelled
// "test book N" and has N comments and N ranges.
func MakeBooks(t *testing.T, s *store.Store) {
	t.Helper()
	category := InsertCategory(t, s, "novels")
	for i := 1; i <= 10; i++ {
		book := InsertBook(t, s, BookRow{
			Label:      fmt.Sprintf("test book %d", i),
			Amount:     1000,
			CategoryID: category,
		})
		for j := 0; j < i; j++ {
			InsertComment(t, s, book, "Test comment")
			InsertRange(t, s, book, "Test range")
		}
	}
}

func insert(t *testing.T, s *store.Store, query string, args ...any) int64 {
	t.Helper()
	res, err := s.DB.ExecContext(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("last insert id: %v", err)
	}
	return id
}
