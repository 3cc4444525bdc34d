package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/repocerti-api/internal/models"
)

const recordColumns = `id, owner_id, owner_username, owner_role, owner_designation, title, type, content, images, created_at`

// recordRow mirrors the records table; attachments live in a JSON column.
type recordRow struct {
	models.StoredRecord
	ImagesJSON []byte `db:"images"`
}

func (row recordRow) toModel() (models.StoredRecord, error) {
	record := row.StoredRecord
	if len(row.ImagesJSON) > 0 {
		if err := json.Unmarshal(row.ImagesJSON, &record.Images); err != nil {
			return models.StoredRecord{}, fmt.Errorf("decode images for record %s: %w", record.ID, err)
		}
	}
	if len(record.Images) == 0 {
		record.Images = nil
	}
	return record, nil
}

// RecordRepository provides database access for stored records.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository creates a new instance of RecordRepository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// SaveRecord inserts a copy of record with a fresh id and creation time.
func (r *RecordRepository) SaveRecord(ctx context.Context, record *models.StoredRecord) (*models.StoredRecord, error) {
	stored := *record
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now().UTC()

	images := stored.Images
	if images == nil {
		images = []models.Attachment{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("encode record images: %w", err)
	}

	row := recordRow{StoredRecord: stored, ImagesJSON: imagesJSON}
	const query = `INSERT INTO records (id, owner_id, owner_username, owner_role, owner_designation, title, type, content, images, created_at) VALUES (:id, :owner_id, :owner_username, :owner_role, :owner_designation, :title, :type, :content, :images, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}
	return &stored, nil
}

// ListRecordsForAccount returns the account's records in insertion order.
func (r *RecordRepository) ListRecordsForAccount(ctx context.Context, accountID string) ([]models.StoredRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE owner_id = $1 ORDER BY seq ASC`
	return r.list(ctx, "list records for account", query, accountID)
}

// ListRecords returns every record in insertion order.
func (r *RecordRepository) ListRecords(ctx context.Context) ([]models.StoredRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records ORDER BY seq ASC`
	return r.list(ctx, "list records", query)
}

func (r *RecordRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]models.StoredRecord, error) {
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	records := make([]models.StoredRecord, 0, len(rows))
	for _, row := range rows {
		record, err := row.toModel()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		records = append(records, record)
	}
	return records, nil
}
