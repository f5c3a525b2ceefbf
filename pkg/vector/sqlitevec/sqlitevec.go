// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/releaselens/releaselens/pkg/vector"
)

// SQLiteVecDriver implements vector.Driver using SQLite with sqlite-vec.
type SQLiteVecDriver struct {
	db     *sql.DB
	logger *zap.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	// Must match the embedding model used for the lifetime of the index.
	Dimensions uint
}

// NewSQLiteVecDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewSQLiteVecDriver(c Config, logger *zap.Logger) (*SQLiteVecDriver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrStorage, err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrStorage, err)
	}

	// vec0 virtual tables use integer rowids, so string chunk IDs, the
	// chunk text, and the metadata JSON live in a mapping table keyed by
	// the same rowid.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS chunk_documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			text TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating documents table: %v", vector.ErrStorage, err)
	}

	// Cosine distance so similarity ordering matches the normalized
	// embedding space used at ingestion time.
	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunk_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating vec0 table: %v", vector.ErrStorage, err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &SQLiteVecDriver{
		db:     db,
		logger: logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func marshalMetadata(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshaling metadata: %w", err)
	}
	return string(data), nil
}

func unmarshalMetadata(s string) map[string]string {
	m := map[string]string{}
	if s != "" {
		// Corrupt metadata degrades the document to unfilterable rather
		// than failing the whole query.
		_ = json.Unmarshal([]byte(s), &m)
	}
	return m
}

// Add stores documents with their embeddings.
// If a document with the same ID already exists, it is updated.
func (d *SQLiteVecDriver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", vector.ErrStorage, err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		embBlob := serializeFloat32(doc.Embedding)

		metaJSON, err := marshalMetadata(doc.Metadata)
		if err != nil {
			return fmt.Errorf("doc %s: %w", doc.ID, err)
		}

		// Check if document already exists
		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM chunk_documents WHERE doc_id = ?`, doc.ID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			// Document exists, update text, metadata, and embedding
			if _, err := tx.ExecContext(ctx,
				`UPDATE chunk_documents SET text = ?, metadata = ? WHERE rowid = ?`,
				doc.Text, metaJSON, existingRowID,
			); err != nil {
				return fmt.Errorf("%w: updating document %s: %v", vector.ErrStorage, doc.ID, err)
			}

			// Update embedding in vec0 table via DELETE + INSERT
			// (vec0 does not support UPDATE)
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM chunk_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("%w: deleting old embedding for doc %s: %v", vector.ErrStorage, doc.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chunk_embeddings(rowid, embedding) VALUES (?, ?)`,
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("%w: re-inserting embedding for doc %s: %v", vector.ErrStorage, doc.ID, err)
			}
		case sql.ErrNoRows:
			// New document, insert into mapping table first to get the rowid
			result, err := tx.ExecContext(ctx,
				`INSERT INTO chunk_documents(doc_id, text, metadata) VALUES (?, ?, ?)`,
				doc.ID, doc.Text, metaJSON,
			)
			if err != nil {
				return fmt.Errorf("%w: inserting document %s: %v", vector.ErrStorage, doc.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("%w: getting rowid for doc %s: %v", vector.ErrStorage, doc.ID, err)
			}

			// Insert embedding into vec0 table with matching rowid
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chunk_embeddings(rowid, embedding) VALUES (?, ?)`,
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("%w: inserting embedding for doc %s: %v", vector.ErrStorage, doc.ID, err)
			}
		default:
			return fmt.Errorf("%w: checking for existing document %s: %v", vector.ErrStorage, doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", vector.ErrStorage, err)
	}

	d.logger.Debug("added documents to sqlite-vec",
		zap.Int("count", len(docs)),
	)

	return nil
}

// filterClause renders a metadata filter map into a subquery constraining
// candidate rowids. Returns empty string when no filters apply.
func filterClause(filters map[string]string) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}

	conds := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters)*2)
	for key, value := range filters {
		conds = append(conds, `json_extract(metadata, ?) = ?`)
		args = append(args, "$."+key, value)
	}

	sub := `AND ve.rowid IN (SELECT rowid FROM chunk_documents WHERE ` +
		strings.Join(conds, " AND ") + `)`
	return sub, args
}

// Query finds the topK most similar documents to the given embedding among
// documents matching every filter key/value pair.
func (d *SQLiteVecDriver) Query(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	queryBlob := serializeFloat32(embedding)

	sub, filterArgs := filterClause(filters)

	// KNN via vec0 MATCH constrained to the filtered rowid set, then JOIN
	// back for text and metadata. Secondary ORDER BY rowid makes ties
	// deterministic by insertion order.
	query := fmt.Sprintf(`
		SELECT
			d.doc_id,
			d.text,
			d.metadata,
			ve.distance
		FROM chunk_embeddings ve
		INNER JOIN chunk_documents d ON d.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
			%s
		ORDER BY ve.distance, ve.rowid
	`, sub)

	args := append([]any{queryBlob, topK}, filterArgs...)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying vectors: %v", vector.ErrStorage, err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var docID, text, metaJSON string
		var distance float64
		if err := rows.Scan(&docID, &text, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("%w: scanning query result: %v", vector.ErrStorage, err)
		}

		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID:       docID,
				Text:     text,
				Metadata: unmarshalMetadata(metaJSON),
			},
			// Cosine distance in [0, 2]; similarity = 1 - distance.
			Score: float32(1.0 - distance),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating query results: %v", vector.ErrStorage, err)
	}

	d.logger.Debug("queried sqlite-vec",
		zap.Int("results", len(results)),
		zap.Int("filters", len(filters)),
	)

	return results, nil
}

// Get retrieves documents by their IDs.
func (d *SQLiteVecDriver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	// Build placeholders for IN clause
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT d.doc_id, d.text, d.metadata, d.rowid
		FROM chunk_documents d
		WHERE d.doc_id IN (%s)
		ORDER BY d.rowid
	`, strings.Join(placeholders, ","))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying documents: %v", vector.ErrStorage, err)
	}
	defer rows.Close()

	// Collect results first so we can close the rows cursor before
	// issuing additional queries (SQLite uses a single connection).
	type docRow struct {
		docID    string
		text     string
		metaJSON string
		rowID    int64
	}
	var docRows []docRow

	for rows.Next() {
		var dr docRow
		if err := rows.Scan(&dr.docID, &dr.text, &dr.metaJSON, &dr.rowID); err != nil {
			return nil, fmt.Errorf("%w: scanning document: %v", vector.ErrStorage, err)
		}
		docRows = append(docRows, dr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating documents: %v", vector.ErrStorage, err)
	}
	rows.Close()

	docs := make([]vector.Document, 0, len(docRows))
	for _, dr := range docRows {
		doc := vector.Document{
			ID:       dr.docID,
			Text:     dr.text,
			Metadata: unmarshalMetadata(dr.metaJSON),
		}

		var embBlob []byte
		err := d.db.QueryRowContext(ctx,
			`SELECT embedding FROM chunk_embeddings WHERE rowid = ?`, dr.rowID,
		).Scan(&embBlob)
		if err == nil && len(embBlob) > 0 {
			doc.Embedding, _ = deserializeFloat32(embBlob)
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

// Delete removes documents by their IDs.
func (d *SQLiteVecDriver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", vector.ErrStorage, err)
	}
	defer tx.Rollback()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	// First, get the rowids for the documents to delete from vec0
	query := fmt.Sprintf(
		`SELECT rowid FROM chunk_documents WHERE doc_id IN (%s)`, inClause,
	)
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: querying rowids for deletion: %v", vector.ErrStorage, err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return fmt.Errorf("%w: scanning rowid: %v", vector.ErrStorage, err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterating rowids: %v", vector.ErrStorage, err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunk_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("%w: deleting embedding rowid %d: %v", vector.ErrStorage, rowID, err)
		}
	}

	deleteQuery := fmt.Sprintf(
		`DELETE FROM chunk_documents WHERE doc_id IN (%s)`, inClause,
	)
	if _, err := tx.ExecContext(ctx, deleteQuery, args...); err != nil {
		return fmt.Errorf("%w: deleting documents: %v", vector.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", vector.ErrStorage, err)
	}

	d.logger.Debug("deleted documents from sqlite-vec",
		zap.Int("count", len(ids)),
	)

	return nil
}

// Count returns the total number of stored documents.
func (d *SQLiteVecDriver) Count(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunk_documents`,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting documents: %v", vector.ErrStorage, err)
	}
	return count, nil
}

// Reset removes all stored documents and embeddings.
func (d *SQLiteVecDriver) Reset(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", vector.ErrStorage, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_embeddings`); err != nil {
		return fmt.Errorf("%w: clearing embeddings: %v", vector.ErrStorage, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_documents`); err != nil {
		return fmt.Errorf("%w: clearing documents: %v", vector.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", vector.ErrStorage, err)
	}

	d.logger.Info("reset sqlite-vec store")

	return nil
}

// Close releases resources held by the driver.
func (d *SQLiteVecDriver) Close() error {
	return d.db.Close()
}

var _ vector.Driver = (*SQLiteVecDriver)(nil)
