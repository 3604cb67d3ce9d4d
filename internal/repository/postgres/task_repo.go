package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bananaslides/internal/domain"
	"bananaslides/internal/port"
)

// taskRow is the storage shape of a ConversionTask. Nested values live in JSONB columns.
type taskRow struct {
	ID                uuid.UUID  `db:"id"`
	ProjectID         string     `db:"project_id"`
	Status            string     `db:"status"`
	Pages             []byte     `db:"pages"`
	Settings          []byte     `db:"settings"`
	Progress          []byte     `db:"progress"`
	Error             []byte     `db:"error"`
	Analyses          []byte     `db:"analyses"`
	ResultArtifactRef string     `db:"result_artifact_ref"`
	NotifyEmail       string     `db:"notify_email"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
	CompletedAt       *time.Time `db:"completed_at"`
}

const taskColumns = `id, project_id, status, pages, settings, progress, error, analyses,
	result_artifact_ref, notify_email, created_at, updated_at, completed_at`

type taskRepo struct {
	db *sqlx.DB
}

// NewTaskRepo creates a new PostgreSQL-backed TaskRepository.
func NewTaskRepo(db *sqlx.DB) port.TaskRepository {
	return &taskRepo{db: db}
}

func (r *taskRepo) Create(ctx context.Context, task *domain.ConversionTask) error {
	row, err := toRow(task)
	if err != nil {
		return fmt.Errorf("taskRepo.Create: %w", err)
	}

	query := `INSERT INTO conversion_tasks (` + taskColumns + `) VALUES (
		:id, :project_id, :status, :pages, :settings, :progress, :error, :analyses,
		:result_artifact_ref, :notify_email, :created_at, :updated_at, :completed_at
	)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("taskRepo.Create: %w", err)
	}
	return nil
}

func (r *taskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ConversionTask, error) {
	var row taskRow
	err := r.db.GetContext(ctx, &row,
		"SELECT "+taskColumns+" FROM conversion_tasks WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("taskRepo.GetByID: %w", err)
	}
	return fromRow(&row)
}

func (r *taskRepo) Update(ctx context.Context, task *domain.ConversionTask) error {
	row, err := toRow(task)
	if err != nil {
		return fmt.Errorf("taskRepo.Update: %w", err)
	}

	query := `UPDATE conversion_tasks SET
		status = :status, progress = :progress, error = :error, analyses = :analyses,
		result_artifact_ref = :result_artifact_ref, updated_at = :updated_at, completed_at = :completed_at
	WHERE id = :id`
	if err := r.execOne(ctx, query, row); err != nil {
		return fmt.Errorf("taskRepo.Update: %w", err)
	}
	return nil
}

func (r *taskRepo) UpdateProgress(ctx context.Context, task *domain.ConversionTask) error {
	row, err := toProgressRow(task)
	if err != nil {
		return fmt.Errorf("taskRepo.UpdateProgress: %w", err)
	}

	query := `UPDATE conversion_tasks SET
		status = :status, progress = :progress, error = :error,
		result_artifact_ref = :result_artifact_ref, updated_at = :updated_at, completed_at = :completed_at
	WHERE id = :id`
	if err := r.execOne(ctx, query, row); err != nil {
		return fmt.Errorf("taskRepo.UpdateProgress: %w", err)
	}
	return nil
}

// execOne runs a named statement that must touch exactly one task.
func (r *taskRepo) execOne(ctx context.Context, query string, row *taskRow) error {
	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepo) ListByStatus(ctx context.Context, statuses []domain.TaskStatus, limit int) ([]domain.ConversionTask, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	query, args, err := sqlx.In(
		"SELECT "+taskColumns+" FROM conversion_tasks WHERE status IN (?) ORDER BY created_at LIMIT ?",
		names, limit)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.ListByStatus: %w", err)
	}

	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("taskRepo.ListByStatus: %w", err)
	}

	tasks := make([]domain.ConversionTask, 0, len(rows))
	for i := range rows {
		t, err := fromRow(&rows[i])
		if err != nil {
			return nil, fmt.Errorf("taskRepo.ListByStatus: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func toRow(t *domain.ConversionTask) (*taskRow, error) {
	row, err := toProgressRow(t)
	if err != nil {
		return nil, err
	}
	row.ProjectID = t.ProjectID
	row.NotifyEmail = t.NotifyEmail
	row.CreatedAt = t.CreatedAt

	if row.Pages, err = json.Marshal(t.Pages); err != nil {
		return nil, fmt.Errorf("encoding pages: %w", err)
	}
	if row.Settings, err = json.Marshal(t.Settings); err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	if len(t.Analyses) > 0 {
		if row.Analyses, err = json.Marshal(t.Analyses); err != nil {
			return nil, fmt.Errorf("encoding analyses: %w", err)
		}
	}
	return row, nil
}

// toProgressRow fills only the columns that change while a task runs.
func toProgressRow(t *domain.ConversionTask) (*taskRow, error) {
	row := &taskRow{
		ID:                t.ID,
		Status:            string(t.Status),
		ResultArtifactRef: t.ResultArtifactRef,
		UpdatedAt:         t.UpdatedAt,
		CompletedAt:       t.CompletedAt,
	}

	var err error
	if row.Progress, err = json.Marshal(t.Progress); err != nil {
		return nil, fmt.Errorf("encoding progress: %w", err)
	}
	if t.Error != nil {
		if row.Error, err = json.Marshal(t.Error); err != nil {
			return nil, fmt.Errorf("encoding error: %w", err)
		}
	}
	return row, nil
}

func fromRow(row *taskRow) (*domain.ConversionTask, error) {
	t := &domain.ConversionTask{
		ID:                row.ID,
		ProjectID:         row.ProjectID,
		Status:            domain.TaskStatus(row.Status),
		ResultArtifactRef: row.ResultArtifactRef,
		NotifyEmail:       row.NotifyEmail,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
		CompletedAt:       row.CompletedAt,
	}

	if err := json.Unmarshal(row.Pages, &t.Pages); err != nil {
		return nil, fmt.Errorf("decoding pages of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.Settings, &t.Settings); err != nil {
		return nil, fmt.Errorf("decoding settings of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.Progress, &t.Progress); err != nil {
		return nil, fmt.Errorf("decoding progress of %s: %w", row.ID, err)
	}
	if len(row.Error) > 0 {
		t.Error = &domain.TaskError{}
		if err := json.Unmarshal(row.Error, t.Error); err != nil {
			return nil, fmt.Errorf("decoding error of %s: %w", row.ID, err)
		}
	}
	if len(row.Analyses) > 0 {
		if err := json.Unmarshal(row.Analyses, &t.Analyses); err != nil {
			return nil, fmt.Errorf("decoding analyses of %s: %w", row.ID, err)
		}
	}
	return t, nil
}
