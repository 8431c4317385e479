package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/xid"

	"github.com/potluck-app/potluck/internal/apperror"

	// Registers the pure-Go "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// SQLite implements Store on an embedded SQLite database.
//
// Every document is one row: (collection, id, data) with the body stored as
// JSON text. Queries and set operations are evaluated inside single SQL
// statements with SQLite's JSON functions, which is what makes Update's set
// ops atomic: there is no read-modify-write window for another writer to
// race into.
type SQLite struct {
	conn *sql.DB
}

var _ Store = (*SQLite)(nil)

// Open opens (or creates) the database at path and runs migrations.
// Use ":memory:" for an in-memory store in tests.
func Open(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("docstore: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in flight, required for
	// a web server where requests overlap.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: setting WAL mode: %w", err)
	}

	s := &SQLite{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		);
		CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
	`)
	if err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

// Get retrieves a single document by ID.
func (s *SQLite) Get(ctx context.Context, collection, id string) (Doc, error) {
	var data string
	err := s.conn.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound(collection, id)
		}
		return nil, fmt.Errorf("docstore: getting %s/%s: %w", collection, id, err)
	}
	return decodeRow(collection, id, data)
}

// Query returns the documents matching field op value.
//
// Equality compares against json_extract of the field; array-contains walks
// the array with json_each. Both paths are built from a bound parameter, so
// field names never reach the SQL text.
func (s *SQLite) Query(ctx context.Context, collection, field string, op Op, value any) ([]Doc, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch op {
	case OpEqual:
		rows, err = s.conn.QueryContext(ctx,
			`SELECT id, data FROM documents
			 WHERE collection = ?
			   AND json_extract(data, '$.' || ?) = ?
			 ORDER BY rowid`,
			collection, field, value,
		)
	case OpArrayContains:
		rows, err = s.conn.QueryContext(ctx,
			`SELECT id, data FROM documents
			 WHERE collection = ?
			   AND EXISTS (
			     SELECT 1 FROM json_each(data, '$.' || ?) WHERE json_each.value = ?
			   )
			 ORDER BY rowid`,
			collection, field, value,
		)
	default:
		return nil, fmt.Errorf("docstore: unsupported operator %q", op)
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: querying %s.%s: %w", collection, field, err)
	}
	defer rows.Close()

	return collectDocs(collection, rows)
}

// List returns every document in the collection, oldest first.
func (s *SQLite) List(ctx context.Context, collection string) ([]Doc, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = ? ORDER BY rowid`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("docstore: listing %s: %w", collection, err)
	}
	defer rows.Close()

	return collectDocs(collection, rows)
}

// Add stores a new document under a generated xid and returns the ID.
func (s *SQLite) Add(ctx context.Context, collection string, doc Doc) (string, error) {
	id := xid.New().String()

	body := make(Doc, len(doc))
	for k, v := range doc {
		if k == "id" {
			continue
		}
		body[k] = v
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("docstore: encoding %s document: %w", collection, err)
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)`,
		collection, id, string(data),
	)
	if err != nil {
		return "", fmt.Errorf("docstore: adding to %s: %w", collection, err)
	}
	return id, nil
}

// Set stores a document at the given ID, replacing any existing document.
func (s *SQLite) Set(ctx context.Context, collection, id string, doc Doc) error {
	body := make(Doc, len(doc))
	for k, v := range doc {
		if k == "id" {
			continue
		}
		body[k] = v
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("docstore: encoding %s document: %w", collection, err)
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`,
		collection, id, string(data),
	)
	if err != nil {
		return fmt.Errorf("docstore: setting %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update applies a partial update. Plain values replace the field; SetOp
// values add to or remove from an array field. Each field is applied in its
// own atomic statement; a missing document yields NotFound.
func (s *SQLite) Update(ctx context.Context, collection, id string, fields Fields) error {
	for field, value := range fields {
		var (
			result sql.Result
			err    error
		)
		switch v := value.(type) {
		case SetOp:
			if v.Add {
				// Append only when the element is absent. The coalesce
				// handles documents that never had the field.
				result, err = s.conn.ExecContext(ctx,
					`UPDATE documents
					 SET data = json_set(data, '$.' || ?1,
					   CASE WHEN EXISTS (
					     SELECT 1 FROM json_each(data, '$.' || ?1) WHERE json_each.value = ?2
					   )
					   THEN json_extract(data, '$.' || ?1)
					   ELSE json_insert(coalesce(json_extract(data, '$.' || ?1), json_array()), '$[#]', ?2)
					   END)
					 WHERE collection = ?3 AND id = ?4`,
					field, v.Value, collection, id,
				)
			} else {
				// Rebuild the array without the element; removing a
				// non-member leaves the array untouched.
				result, err = s.conn.ExecContext(ctx,
					`UPDATE documents
					 SET data = json_set(data, '$.' || ?1, coalesce(
					   (SELECT json_group_array(json_each.value)
					      FROM json_each(data, '$.' || ?1)
					     WHERE json_each.value <> ?2),
					   json_array()))
					 WHERE collection = ?3 AND id = ?4`,
					field, v.Value, collection, id,
				)
			}
		default:
			raw, merr := json.Marshal(v)
			if merr != nil {
				return fmt.Errorf("docstore: encoding field %s: %w", field, merr)
			}
			result, err = s.conn.ExecContext(ctx,
				`UPDATE documents
				 SET data = json_set(data, '$.' || ?, json(?))
				 WHERE collection = ? AND id = ?`,
				field, string(raw), collection, id,
			)
		}
		if err != nil {
			return fmt.Errorf("docstore: updating %s/%s field %s: %w", collection, id, field, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("docstore: checking rows affected: %w", err)
		}
		if affected == 0 {
			return apperror.NotFound(collection, id)
		}
	}
	return nil
}

// Delete removes a document. Deleting a missing document yields NotFound.
func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("docstore: deleting %s/%s: %w", collection, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("docstore: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound(collection, id)
	}
	return nil
}

func decodeRow(collection, id, data string) (Doc, error) {
	var doc Doc
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("docstore: decoding %s/%s: %w", collection, id, err)
	}
	doc["id"] = id
	return doc, nil
}

func collectDocs(collection string, rows *sql.Rows) ([]Doc, error) {
	docs := []Doc{}
	for rows.Next() {
		var (
			id   string
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("docstore: scanning %s row: %w", collection, err)
		}
		doc, err := decodeRow(collection, id, data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: iterating %s rows: %w", collection, err)
	}
	return docs, nil
}
