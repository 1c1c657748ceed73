package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/seating-api/internal/dto"
	"github.com/noah-isme/seating-api/internal/models"
	"github.com/noah-isme/seating-api/internal/repository"
	appErrors "github.com/noah-isme/seating-api/pkg/errors"
	"github.com/noah-isme/seating-api/pkg/jobs"
	"github.com/noah-isme/seating-api/pkg/storage"
)

type exportJobRepoStub struct {
	jobs     map[string]*models.ExportJob
	finished []models.ExportJob
}

func newExportJobRepoStub() *exportJobRepoStub {
	return &exportJobRepoStub{jobs: map[string]*models.ExportJob{}}
}

func (r *exportJobRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *exportJobRepoStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (r *exportJobRepoStub) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.FilePath != nil {
		job.FilePath = params.FilePath
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *exportJobRepoStub) ListPending(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var pending []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusQueued || job.Status == models.ExportStatusProcessing {
			pending = append(pending, *job)
		}
	}
	return pending, nil
}

func (r *exportJobRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type exportStub struct {
	result *ExportResult
	err    error
}

func (e exportStub) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func newPlanStoreWithPlan() *planStoreStub {
	plans := newPlanStoreStub()
	plans.plans["plan-1"] = &models.SeatingPlan{
		ID: "plan-1", ClassID: "7A", Name: "Term 1", Rows: 2, Cols: 3,
		Pairs: models.SeparationPairs{{A: 1, B: 2}},
	}
	plans.seats["plan-1"] = []models.SeatingPlanSeat{
		{PlanID: "plan-1", StudentID: 1, Gender: "M", Special: "vision", Row: 0, Col: 0},
		{PlanID: "plan-1", StudentID: 2, Gender: "F", Row: 0, Col: 1},
		{PlanID: "plan-1", StudentID: 3, Gender: "M", Special: "height", Row: 1, Col: 2},
	}
	return plans
}

func newExportServiceForTest(t *testing.T, plans seatingPlanReader) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	return NewExportService(plans, store, signer, ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop())
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc := newExportServiceForTest(t, newPlanStoreWithPlan())
	job := &models.ExportJob{ID: "job-1", PlanID: "plan-1", Format: models.ExportFormatCSV}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.RelativePath, "seating/7A/plan-1_"))
	assert.True(t, strings.HasSuffix(result.RelativePath, ".csv"))
	assert.Equal(t, "/api/v1/seating/exports/download?token="+result.Token, result.URL)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(body), "row,col,number,gender,special")

	claims, err := svc.ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "job-1", claims.JobID)
	assert.Equal(t, result.RelativePath, claims.Path)
}

func TestExportServiceGeneratePDFAndXLSX(t *testing.T) {
	svc := newExportServiceForTest(t, newPlanStoreWithPlan())
	for _, format := range []models.ExportFormat{models.ExportFormatPDF, models.ExportFormatXLSX} {
		result, err := svc.Generate(context.Background(), &models.ExportJob{ID: "job-" + string(format), PlanID: "plan-1", Format: format})
		require.NoError(t, err, format)
		assert.True(t, strings.HasSuffix(result.RelativePath, "."+string(format)))
	}
}

func TestExportServiceGenerateFailures(t *testing.T) {
	svc := newExportServiceForTest(t, newPlanStoreWithPlan())

	_, err := svc.Generate(context.Background(), &models.ExportJob{ID: "job", PlanID: "plan-1", Format: "docx"})
	require.Error(t, err)

	_, err = svc.Generate(context.Background(), &models.ExportJob{ID: "job", PlanID: "gone", Format: models.ExportFormatCSV})
	require.Error(t, err)
}

func TestBuildChartNotesViolations(t *testing.T) {
	plans := newPlanStoreWithPlan()
	chart := buildChart(plans.plans["plan-1"], plans.seats["plan-1"])

	assert.Equal(t, "Term 1 (7A)", chart.Title)
	require.Len(t, chart.Seats, 3)
	assert.Equal(t, []string{"vision"}, chart.Seats[0].Special)
	require.Len(t, chart.Notes, 1)
	assert.Equal(t, "Students 1 and 2 sit next to each other at (0,0) and (0,1)", chart.Notes[0])
}

func newSeatingExportServiceForTest(t *testing.T) (*SeatingExportService, *exportJobRepoStub, *queueStub, *ExportService) {
	t.Helper()
	repo := newExportJobRepoStub()
	queue := &queueStub{}
	plans := newPlanStoreWithPlan()
	exporter := newExportServiceForTest(t, plans)
	svc := NewSeatingExportService(repo, plans, queue, exporter, NewMetricsService(), nil, zap.NewNop(), SeatingExportConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
	})
	return svc, repo, queue, exporter
}

func TestSeatingExportServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newSeatingExportServiceForTest(t)

	resp, err := svc.CreateJob(context.Background(), "plan-1", dto.CreateSeatingExportRequest{Format: "pdf"}, "teacher-1")
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	assert.Equal(t, models.ExportFormatPDF, resp.Format)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, ExportJobType, queue.jobs[0].Type)
	assert.Equal(t, "teacher-1", repo.jobs[resp.ID].CreatedBy)
}

func TestSeatingExportServiceCreateJobErrors(t *testing.T) {
	svc, repo, queue, _ := newSeatingExportServiceForTest(t)

	_, err := svc.CreateJob(context.Background(), "plan-1", dto.CreateSeatingExportRequest{Format: "docx"}, "u")
	requireAppError(t, err, appErrors.ErrValidation)

	_, err = svc.CreateJob(context.Background(), "missing", dto.CreateSeatingExportRequest{Format: "csv"}, "u")
	requireAppError(t, err, appErrors.ErrNotFound)

	queue.err = jobs.ErrQueueStopped
	_, err = svc.CreateJob(context.Background(), "plan-1", dto.CreateSeatingExportRequest{Format: "csv"}, "u")
	requireAppError(t, err, appErrors.ErrInternal)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestSeatingExportServiceGetStatusOwnership(t *testing.T) {
	svc, repo, _, _ := newSeatingExportServiceForTest(t)
	repo.jobs["job-1"] = &models.ExportJob{ID: "job-1", PlanID: "plan-1", Format: models.ExportFormatCSV, Status: models.ExportStatusProcessing, CreatedBy: "teacher-1"}

	resp, err := svc.GetStatus(context.Background(), "job-1", "teacher-1", models.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusProcessing, resp.Status)

	_, err = svc.GetStatus(context.Background(), "job-1", "teacher-2", models.RoleTeacher)
	requireAppError(t, err, appErrors.ErrForbidden)

	_, err = svc.GetStatus(context.Background(), "job-1", "admin", models.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), "nope", "admin", models.RoleAdmin)
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestSeatingExportRoundTrip(t *testing.T) {
	svc, repo, queue, exporter := newSeatingExportServiceForTest(t)
	worker := NewSeatingExportWorker(repo, exporter, nil, zap.NewNop())

	resp, err := svc.CreateJob(context.Background(), "plan-1", dto.CreateSeatingExportRequest{Format: "csv"}, "teacher-1")
	require.NoError(t, err)
	require.NoError(t, worker.Handle(context.Background(), queue.jobs[0]))

	job := repo.jobs[resp.ID]
	require.Equal(t, models.ExportStatusFinished, job.Status)
	require.NotNil(t, job.ResultURL)
	require.NotNil(t, job.FinishedAt)

	token := (*job.ResultURL)[strings.Index(*job.ResultURL, "token=")+len("token="):]
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, models.ExportFormatCSV, download.Format)
	assert.True(t, strings.HasSuffix(download.Filename, ".csv"))
	assert.False(t, download.ExpiresAt.IsZero())
}

func TestSeatingExportResolveDownloadRejects(t *testing.T) {
	svc, repo, _, exporter := newSeatingExportServiceForTest(t)

	_, err := svc.ResolveDownload(context.Background(), "garbage")
	requireAppError(t, err, appErrors.ErrForbidden)

	job := &models.ExportJob{ID: "job-2", PlanID: "plan-1", Format: models.ExportFormatCSV, Status: models.ExportStatusProcessing}
	repo.jobs[job.ID] = job
	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)

	_, err = svc.ResolveDownload(context.Background(), result.Token)
	requireAppError(t, err, appErrors.ErrForbidden)

	other := "seating/other.csv"
	job.Status = models.ExportStatusFinished
	job.FilePath = &other
	_, err = svc.ResolveDownload(context.Background(), result.Token)
	requireAppError(t, err, appErrors.ErrForbidden)

	job.FilePath = &result.RelativePath
	require.NoError(t, exporter.Delete(result.RelativePath))
	_, err = svc.ResolveDownload(context.Background(), result.Token)
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestSeatingExportWorkerFailureRequeues(t *testing.T) {
	repo := newExportJobRepoStub()
	repo.jobs["job-1"] = &models.ExportJob{ID: "job-1", PlanID: "plan-1", Format: models.ExportFormatCSV, Status: models.ExportStatusQueued}
	worker := NewSeatingExportWorker(repo, exportStub{err: errors.New("render failed")}, nil, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusQueued, repo.jobs["job-1"].Status)
	require.NotNil(t, repo.jobs["job-1"].ErrorMessage)
	assert.Equal(t, "render failed", *repo.jobs["job-1"].ErrorMessage)

	worker.GiveUp(jobs.Job{ID: "job-1", Attempt: 4}, err)
	assert.Equal(t, models.ExportStatusFailed, repo.jobs["job-1"].Status)
	assert.NotNil(t, repo.jobs["job-1"].FinishedAt)
}

func TestSeatingExportWorkerSuccess(t *testing.T) {
	repo := newExportJobRepoStub()
	repo.jobs["job-1"] = &models.ExportJob{ID: "job-1", PlanID: "plan-1", Format: models.ExportFormatPDF, Status: models.ExportStatusQueued}
	worker := NewSeatingExportWorker(repo, exportStub{result: &ExportResult{
		RelativePath: "seating/7A/plan-1.pdf",
		URL:          "/api/v1/seating/exports/download?token=abc",
	}}, NewMetricsService(), zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))
	job := repo.jobs["job-1"]
	assert.Equal(t, models.ExportStatusFinished, job.Status)
	assert.Equal(t, "seating/7A/plan-1.pdf", *job.FilePath)
	assert.Equal(t, "", *job.ErrorMessage)
}

func TestSeatingExportRecoverAndCleanup(t *testing.T) {
	svc, repo, queue, exporter := newSeatingExportServiceForTest(t)
	repo.jobs["queued"] = &models.ExportJob{ID: "queued", PlanID: "plan-1", Format: models.ExportFormatCSV, Status: models.ExportStatusQueued}
	repo.jobs["stuck"] = &models.ExportJob{ID: "stuck", PlanID: "plan-1", Format: models.ExportFormatPDF, Status: models.ExportStatusProcessing}
	repo.jobs["done"] = &models.ExportJob{ID: "done", PlanID: "plan-1", Format: models.ExportFormatPDF, Status: models.ExportStatusFinished}

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.jobs, 2)
	assert.ElementsMatch(t, []string{"queued", "stuck"}, []string{queue.jobs[0].ID, queue.jobs[1].ID})

	old := &models.ExportJob{ID: "old", PlanID: "plan-1", Format: models.ExportFormatCSV}
	result, err := exporter.Generate(context.Background(), old)
	require.NoError(t, err)
	finishedAt := time.Now().Add(-2 * time.Hour)
	old.Status = models.ExportStatusFinished
	old.FilePath = &result.RelativePath
	old.FinishedAt = &finishedAt
	repo.jobs[old.ID] = old

	svc.cleanupExpired(context.Background())
	assert.Equal(t, models.ExportStatusFailed, old.Status)
	_, err = exporter.Open(result.RelativePath)
	assert.Error(t, err)
}
