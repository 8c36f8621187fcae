package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/spigell/cv-matcher/internal/talent"
)

type candidateModel struct {
	ID          string `gorm:"primaryKey;type:varchar(64)"`
	Name        string
	Email       string
	Phone       string
	ProfileText string `gorm:"type:text"`
	Skills      string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (candidateModel) TableName() string { return "candidates" }

type jobModel struct {
	ID                string `gorm:"primaryKey;type:varchar(64)"`
	Title             string
	Description       string `gorm:"type:text"`
	Requirements      string `gorm:"type:text"`
	Parameters        string `gorm:"type:text"`
	ParametersVersion int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (jobModel) TableName() string { return "job_postings" }

type batchModel struct {
	ID                string    `gorm:"primaryKey;type:varchar(64)"`
	JobID             string    `gorm:"index;type:varchar(64)"`
	CreatedAt         time.Time `gorm:"index"`
	ParametersVersion int
	Parameters        string `gorm:"type:text"`
	VectorizerVersion string
	Results           string `gorm:"type:text"`
	Excluded          string `gorm:"type:text"`
}

func (batchModel) TableName() string { return "match_batches" }

// Gorm is a Store backed by PostgreSQL.
type Gorm struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenGorm connects to the PostgreSQL database at dsn and migrates the schema.
func OpenGorm(dsn string, debug bool, logger *zap.Logger) (*Gorm, error) {
	return OpenDialector(postgres.Open(dsn), debug, logger)
}

// OpenDialector is OpenGorm for any gorm dialector.
func OpenDialector(dialector gorm.Dialector, debug bool, logger *zap.Logger) (*Gorm, error) {
	logLevel := gormlogger.Silent
	if debug {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&candidateModel{}, &jobModel{}, &batchModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return NewGorm(db, logger), nil
}

func NewGorm(db *gorm.DB, logger *zap.Logger) *Gorm {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gorm{db: db, logger: logger}
}

func (g *Gorm) StoreCandidate(ctx context.Context, rec talent.CandidateRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	m, err := toCandidateModel(rec)
	if err != nil {
		return "", err
	}
	err = g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "phone", "profile_text", "skills", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return "", fmt.Errorf("failed to store candidate: %w", err)
	}
	return rec.ID, nil
}

func (g *Gorm) FetchAllCandidates(ctx context.Context) ([]talent.CandidateRecord, error) {
	var models []candidateModel
	if err := g.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	out := make([]talent.CandidateRecord, 0, len(models))
	for i := range models {
		rec, err := fromCandidateModel(&models[i])
		if err != nil {
			// one corrupt row must not hide the rest of the pool
			g.logger.Warn("skipping unreadable candidate", zap.String("candidate_id", models[i].ID), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (g *Gorm) StoreJob(ctx context.Context, job talent.JobQuery) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	m, err := toJobModel(job)
	if err != nil {
		return "", err
	}
	err = g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "requirements", "parameters", "parameters_version", "updated_at",
		}),
	}).Create(m).Error
	if err != nil {
		return "", fmt.Errorf("failed to store job: %w", err)
	}
	return job.ID, nil
}

func (g *Gorm) FetchJob(ctx context.Context, id string) (*talent.JobQuery, error) {
	m, err := g.findJob(g.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return fromJobModel(m)
}

func (g *Gorm) findJob(db *gorm.DB, id string) (*jobModel, error) {
	var m jobModel
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job %s: %w", id, talent.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	return &m, nil
}

func (g *Gorm) StoreMatchBatch(ctx context.Context, batch *talent.Batch) (string, error) {
	stored := cloneBatch(batch)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	m, err := toBatchModel(&stored)
	if err != nil {
		return "", err
	}
	if err := g.db.WithContext(ctx).Create(m).Error; err != nil {
		return "", fmt.Errorf("failed to store match batch: %w", err)
	}
	return stored.ID, nil
}

func (g *Gorm) ListBatches(ctx context.Context, jobID string) ([]talent.Batch, error) {
	var models []batchModel
	err := g.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list match batches: %w", err)
	}

	out := make([]talent.Batch, 0, len(models))
	for i := range models {
		b, err := fromBatchModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, nil
}

func (g *Gorm) UpdateParameters(ctx context.Context, jobID string, params talent.MatchParameters) (bool, error) {
	modified := false

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := g.findJob(tx, jobID)
		if err != nil {
			return err
		}

		job, err := fromJobModel(m)
		if err != nil {
			return err
		}

		next, changed := nextParameters(job.Parameters, params)
		if !changed {
			return nil
		}

		if err := applyParameters(tx, jobID, job.Parameters.Version, next); err != nil {
			return err
		}
		modified = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return modified, nil
}

// applyParameters writes next only while the stored version is still expected.
func applyParameters(tx *gorm.DB, jobID string, expected int, next talent.MatchParameters) error {
	encoded, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encoding parameters: %w", err)
	}

	result := tx.Model(&jobModel{}).
		Where("id = ? AND parameters_version = ?", jobID, expected).
		Updates(map[string]interface{}{
			"parameters":         string(encoded),
			"parameters_version": next.Version,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update parameters: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job %s at parameters version %d: %w", jobID, expected, ErrConflict)
	}
	return nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toCandidateModel(rec talent.CandidateRecord) (*candidateModel, error) {
	skills, err := json.Marshal(rec.Skills)
	if err != nil {
		return nil, fmt.Errorf("encoding skills: %w", err)
	}
	return &candidateModel{
		ID:          rec.ID,
		Name:        rec.Name,
		Email:       rec.Email,
		Phone:       rec.Phone,
		ProfileText: rec.ProfileText,
		Skills:      string(skills),
	}, nil
}

func fromCandidateModel(m *candidateModel) (talent.CandidateRecord, error) {
	rec := talent.CandidateRecord{
		ID:          m.ID,
		Name:        m.Name,
		Email:       m.Email,
		Phone:       m.Phone,
		ProfileText: m.ProfileText,
	}
	if err := decodeColumn(m.Skills, &rec.Skills); err != nil {
		return rec, fmt.Errorf("decoding skills: %w", err)
	}
	return rec, nil
}

func toJobModel(job talent.JobQuery) (*jobModel, error) {
	requirements, err := json.Marshal(job.Requirements)
	if err != nil {
		return nil, fmt.Errorf("encoding requirements: %w", err)
	}
	params, err := json.Marshal(job.Parameters)
	if err != nil {
		return nil, fmt.Errorf("encoding parameters: %w", err)
	}
	return &jobModel{
		ID:                job.ID,
		Title:             job.Title,
		Description:       job.Description,
		Requirements:      string(requirements),
		Parameters:        string(params),
		ParametersVersion: job.Parameters.Version,
	}, nil
}

func fromJobModel(m *jobModel) (*talent.JobQuery, error) {
	job := &talent.JobQuery{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
	}
	if err := decodeColumn(m.Requirements, &job.Requirements); err != nil {
		return nil, fmt.Errorf("decoding requirements: %w", err)
	}
	if err := decodeColumn(m.Parameters, &job.Parameters); err != nil {
		return nil, fmt.Errorf("decoding parameters: %w", err)
	}
	job.Parameters.Version = m.ParametersVersion
	return job, nil
}

func toBatchModel(b *talent.Batch) (*batchModel, error) {
	params, err := json.Marshal(b.Parameters)
	if err != nil {
		return nil, fmt.Errorf("encoding parameters: %w", err)
	}
	results, err := json.Marshal(b.Results)
	if err != nil {
		return nil, fmt.Errorf("encoding results: %w", err)
	}
	excluded, err := json.Marshal(b.Excluded)
	if err != nil {
		return nil, fmt.Errorf("encoding exclusions: %w", err)
	}
	return &batchModel{
		ID:                b.ID,
		JobID:             b.JobID,
		CreatedAt:         b.CreatedAt,
		ParametersVersion: b.Parameters.Version,
		Parameters:        string(params),
		VectorizerVersion: b.VectorizerVersion,
		Results:           string(results),
		Excluded:          string(excluded),
	}, nil
}

func fromBatchModel(m *batchModel) (*talent.Batch, error) {
	b := &talent.Batch{
		ID:                m.ID,
		JobID:             m.JobID,
		CreatedAt:         m.CreatedAt,
		VectorizerVersion: m.VectorizerVersion,
	}
	if err := decodeColumn(m.Parameters, &b.Parameters); err != nil {
		return nil, fmt.Errorf("decoding batch %s parameters: %w", m.ID, err)
	}
	if err := decodeColumn(m.Results, &b.Results); err != nil {
		return nil, fmt.Errorf("decoding batch %s results: %w", m.ID, err)
	}
	if err := decodeColumn(m.Excluded, &b.Excluded); err != nil {
		return nil, fmt.Errorf("decoding batch %s exclusions: %w", m.ID, err)
	}
	return b, nil
}

func decodeColumn(raw string, target any) error {
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), target)
}
