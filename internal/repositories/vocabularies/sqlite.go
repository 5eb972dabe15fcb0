package vocabularies

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/dmitrijs2005/lexisync/internal/dbx"
	"github.com/dmitrijs2005/lexisync/internal/models"
	"github.com/dmitrijs2005/lexisync/internal/timex"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
//
// The array-valued fields (definitions, example sentences, topics, tags,
// related words) are stored denormalized as JSON text columns.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectCols = `id, word, word_type, level, ipa, audio_url, concept, language,
	collection_id, definitions, example_sentences, topics, tags, related_words,
	sync_version, synced_at, deleted, deleted_at, created_at, updated_at`

func (r *SQLiteRepository) Create(ctx context.Context, v *models.Vocabulary) error {
	cols, err := marshalJSONCols(v)
	if err != nil {
		return err
	}
	query := `INSERT INTO vocabularies
		(id, word, word_type, level, ipa, audio_url, concept, language, collection_id,
		 definitions, example_sentences, topics, tags, related_words,
		 sync_version, synced_at, deleted, deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		v.ID, v.Word, v.WordType, v.Level, v.IPA, v.AudioURL, v.Concept, v.Language,
		v.CollectionID, cols[0], cols[1], cols[2], cols[3], cols[4],
		v.SyncVersion, timex.UnixPtr(v.SyncedAt), v.Deleted, timex.UnixPtr(v.DeletedAt),
		timex.Unix(v.CreatedAt), timex.Unix(v.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert vocabulary: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, v *models.Vocabulary) error {
	cols, err := marshalJSONCols(v)
	if err != nil {
		return err
	}
	query := `UPDATE vocabularies SET word = ?, word_type = ?, level = ?, ipa = ?,
		audio_url = ?, concept = ?, language = ?, collection_id = ?, definitions = ?,
		example_sentences = ?, topics = ?, tags = ?, related_words = ?,
		sync_version = ?, synced_at = ?, deleted = ?, deleted_at = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		v.Word, v.WordType, v.Level, v.IPA, v.AudioURL, v.Concept, v.Language,
		v.CollectionID, cols[0], cols[1], cols[2], cols[3], cols[4],
		v.SyncVersion, timex.UnixPtr(v.SyncedAt), v.Deleted, timex.UnixPtr(v.DeletedAt),
		timex.Unix(v.UpdatedAt), v.ID)
	if err != nil {
		return fmt.Errorf("failed to update vocabulary: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Vocabulary, error) {
	query := `SELECT ` + selectCols + ` FROM vocabularies WHERE id = ?`
	v, err := scanVocabulary(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vocabulary: %w", err)
	}
	return v, nil
}

func (r *SQLiteRepository) ListByCollection(ctx context.Context, collectionID string) ([]models.Vocabulary, error) {
	query := `SELECT ` + selectCols + ` FROM vocabularies
		WHERE collection_id = ? AND deleted = 0 ORDER BY word`
	return r.list(ctx, query, collectionID)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]models.Vocabulary, error) {
	query := `SELECT ` + selectCols + ` FROM vocabularies WHERE synced_at IS NULL`
	return r.list(ctx, query)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.Vocabulary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select vocabularies: %w", err)
	}
	defer rows.Close()

	var result []models.Vocabulary
	for rows.Next() {
		v, err := scanVocabulary(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE vocabularies SET deleted = 1, deleted_at = ?, updated_at = ?,
		sync_version = sync_version + 1, synced_at = NULL WHERE id = ? AND deleted = 0`
	res, err := r.db.ExecContext(ctx, query, timex.Unix(at), timex.Unix(at), id)
	if err != nil {
		return fmt.Errorf("failed to delete vocabulary: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) TombstoneByCollection(ctx context.Context, collectionID string, at time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM vocabularies WHERE collection_id = ? AND deleted = 0`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to select collection members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ts := timex.Unix(at)
	query := `UPDATE vocabularies SET deleted = 1, deleted_at = ?, updated_at = ?,
		synced_at = ? WHERE collection_id = ? AND deleted = 0`
	if _, err := r.db.ExecContext(ctx, query, ts, ts, ts, collectionID); err != nil {
		return nil, fmt.Errorf("failed to tombstone collection members: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) CountLiveByCollection(ctx context.Context, collectionID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vocabularies WHERE collection_id = ? AND deleted = 0`,
		collectionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count vocabularies: %w", err)
	}
	return n, nil
}

// marshalJSONCols serializes the array-valued fields in column order:
// definitions, example_sentences, topics, tags, related_words.
func marshalJSONCols(v *models.Vocabulary) ([5]string, error) {
	var out [5]string
	for i, src := range []any{
		emptySlice(v.Definitions), emptySlice(v.ExampleSentences),
		emptySlice(v.Topics), emptySlice(v.Tags), emptySlice(v.RelatedWords),
	} {
		b, err := json.Marshal(src)
		if err != nil {
			return out, fmt.Errorf("failed to marshal vocabulary field: %w", err)
		}
		out[i] = string(b)
	}
	return out, nil
}

// emptySlice keeps nil slices encoding as [] instead of null.
func emptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVocabulary(row rowScanner) (*models.Vocabulary, error) {
	var (
		v                                             models.Vocabulary
		definitions, sentences, topics, tags, related string
		syncedAt, deletedAt                           *int64
		createdAt, updatedAt                          int64
	)
	err := row.Scan(&v.ID, &v.Word, &v.WordType, &v.Level, &v.IPA, &v.AudioURL,
		&v.Concept, &v.Language, &v.CollectionID, &definitions, &sentences, &topics,
		&tags, &related, &v.SyncVersion, &syncedAt, &v.Deleted, &deletedAt,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		raw  string
		dest any
	}{
		{definitions, &v.Definitions},
		{sentences, &v.ExampleSentences},
		{topics, &v.Topics},
		{tags, &v.Tags},
		{related, &v.RelatedWords},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dest); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vocabulary field: %w", err)
		}
	}

	v.SyncedAt = timex.FromUnixPtr(syncedAt)
	v.DeletedAt = timex.FromUnixPtr(deletedAt)
	v.CreatedAt = timex.FromUnix(createdAt)
	v.UpdatedAt = timex.FromUnix(updatedAt)
	return &v, nil
}
