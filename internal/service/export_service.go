package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/seating-api/internal/models"
	"github.com/noah-isme/seating-api/internal/seating"
	"github.com/noah-isme/seating-api/pkg/export"
	"github.com/noah-isme/seating-api/pkg/storage"
)

type seatingPlanReader interface {
	FindByID(ctx context.Context, id string) (*models.SeatingPlan, error)
	ListSeats(ctx context.Context, planID string) ([]models.SeatingPlanSeat, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders saved seating plans and persists the files.
type ExportService struct {
	plans   seatingPlanReader
	storage fileStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(plans seatingPlanReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	return &ExportService{
		plans:   plans,
		storage: store,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Generate renders the job's plan in the requested format, stores it and signs a download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, err := export.ForFormat(string(job.Format))
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.FindByID(ctx, job.PlanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("plan %s no longer exists", job.PlanID)
		}
		return nil, err
	}
	seats, err := s.plans.ListSeats(ctx, job.PlanID)
	if err != nil {
		return nil, err
	}

	payload, err := renderer.Render(buildChart(plan, seats))
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(plan, renderer.Extension()), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/seating/exports/download?token=%s", prefix, token),
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string) (*storage.DownloadClaims, error) {
	return s.signer.Parse(token)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, or the configured ResultTTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(plan *models.SeatingPlan, ext string) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("seating/%s/%s_%s.%s", sanitizeFilename(plan.ClassID), sanitizeFilename(plan.ID), timestamp, ext)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// buildChart turns a saved plan into renderable form. Violations found by
// re-checking the seats are printed as notes.
func buildChart(plan *models.SeatingPlan, seats []models.SeatingPlanSeat) export.Chart {
	chart := export.Chart{
		Title: plan.Name,
		Rows:  plan.Rows,
		Cols:  plan.Cols,
		Seats: make([]export.SeatEntry, 0, len(seats)),
	}
	if plan.ClassID != "" {
		chart.Title = fmt.Sprintf("%s (%s)", plan.Name, plan.ClassID)
	}
	for _, seat := range seats {
		entry := export.SeatEntry{StudentID: seat.StudentID, Gender: seat.Gender, Row: seat.Row, Col: seat.Col}
		if seat.Special != "" {
			entry.Special = strings.Split(seat.Special, "/")
		}
		chart.Seats = append(chart.Seats, entry)
	}

	_, _, assignment := planState(plan, seats)
	pairs := make([]seating.Pair, 0, len(plan.Pairs))
	for _, p := range plan.Pairs {
		pairs = append(pairs, seating.NewPair(p.A, p.B))
	}
	for _, v := range seating.CheckViolations(assignment, pairs) {
		chart.Notes = append(chart.Notes, fmt.Sprintf("Students %d and %d sit next to each other at %s and %s",
			v.Pair.A, v.Pair.B, v.SeatA, v.SeatB))
	}
	return chart
}
