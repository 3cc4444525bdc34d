package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/repocerti-api/internal/dto"
	"github.com/noah-isme/repocerti-api/internal/models"
	"github.com/noah-isme/repocerti-api/internal/policy"
	appErrors "github.com/noah-isme/repocerti-api/pkg/errors"
)

type recordStore interface {
	FindAccountByID(ctx context.Context, id string) (*models.Account, error)
	SaveRecord(ctx context.Context, record *models.StoredRecord) (*models.StoredRecord, error)
	ListRecordsForAccount(ctx context.Context, accountID string) ([]models.StoredRecord, error)
	ListRecords(ctx context.Context) ([]models.StoredRecord, error)
}

type visibilityRecorder interface {
	RecordVisibility(viewer string, evaluated, visible int)
}

// RecordService saves records and serves them through the visibility policy.
type RecordService struct {
	store     recordStore
	validator *validator.Validate
	logger    *zap.Logger
	metrics   visibilityRecorder
}

// NewRecordService constructs a RecordService.
func NewRecordService(store recordStore, validate *validator.Validate, logger *zap.Logger, metrics visibilityRecorder) *RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RecordService{store: store, validator: validate, logger: logger, metrics: metrics}
}

// Save stores a record owned by the viewer, snapshotting the owner's current identity.
func (s *RecordService) Save(ctx context.Context, viewerID string, req dto.SaveRecordRequest) (*models.StoredRecord, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid record payload")
	}

	owner, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.SaveRecord(ctx, &models.StoredRecord{
		OwnerID:          owner.ID,
		OwnerUsername:    owner.Username,
		OwnerRole:        owner.Role,
		OwnerDesignation: owner.Designation,
		Title:            req.Title,
		Type:             req.Type,
		Content:          req.Content,
		Images:           req.Images,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save record")
	}

	s.logger.Info("record saved",
		zap.String("record_id", stored.ID),
		zap.String("owner_id", owner.ID),
		zap.String("type", string(stored.Type)),
		zap.Int("images", len(stored.Images)),
	)
	return stored, nil
}

// ListOwn returns the viewer's own records in the order they were saved.
func (s *RecordService) ListOwn(ctx context.Context, viewerID string) ([]models.StoredRecord, error) {
	owner, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListRecordsForAccount(ctx, owner.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
	}
	if records == nil {
		records = []models.StoredRecord{}
	}
	return records, nil
}

// ListVisible returns every record the viewer may see, optionally narrowed by a
// case-insensitive match on title or owner username.
func (s *RecordService) ListVisible(ctx context.Context, viewerID, search string) ([]models.StoredRecord, error) {
	viewer, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
	}

	visible := policy.RecordsVisibleTo(*viewer, all)
	if s.metrics != nil {
		s.metrics.RecordVisibility(policy.Rank(*viewer), len(all), len(visible))
	}
	return filterRecords(visible, search), nil
}

// GetVisible fetches one record. Records the viewer may not see are reported as not found.
func (s *RecordService) GetVisible(ctx context.Context, viewerID, recordID string) (*models.StoredRecord, error) {
	viewer, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}
	for _, record := range all {
		if record.ID != recordID {
			continue
		}
		if !policy.CanView(*viewer, record) {
			s.logger.Debug("record hidden from viewer", zap.String("record_id", recordID), zap.String("viewer_id", viewer.ID))
			break
		}
		found := record
		return &found, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
}

func (s *RecordService) viewer(ctx context.Context, viewerID string) (*models.Account, error) {
	if viewerID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing session subject")
	}
	account, err := s.store.FindAccountByID(ctx, viewerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if account == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
	}
	return account, nil
}

func filterRecords(records []models.StoredRecord, search string) []models.StoredRecord {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return records
	}
	filtered := make([]models.StoredRecord, 0, len(records))
	for _, record := range records {
		if strings.Contains(strings.ToLower(record.Title), term) ||
			strings.Contains(strings.ToLower(record.OwnerUsername), term) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}
