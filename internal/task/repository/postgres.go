package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskvault/backend/internal/task/domain"
)

const taskColumns = "id, title, description, status, priority, due_date, user_id, created_at, updated_at, completed_at"

// PostgresRepository persists tasks in the tasks table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a task repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the task. The task must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, description, status, priority, due_date, user_id, created_at, updated_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.Title, nullString(t.Description), string(t.Status), string(t.Priority),
		t.DueDate, t.UserID, t.CreatedAt, t.UpdatedAt, t.CompletedAt,
	)
	return err
}

// FindByID returns the task for id, or nil if absent.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = $1", id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// FindByUser returns the user's tasks, newest first, narrowed by f.
func (r *PostgresRepository) FindByUser(ctx context.Context, userID string, f Filter) ([]*domain.Task, error) {
	var b strings.Builder
	b.WriteString("SELECT " + taskColumns + " FROM tasks WHERE user_id = $1")
	args := []interface{}{userID}

	if f.Status != "" {
		args = append(args, string(f.Status))
		fmt.Fprintf(&b, " AND status = $%d", len(args))
	}
	if f.Priority != "" {
		args = append(args, string(f.Priority))
		fmt.Fprintf(&b, " AND priority = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		fmt.Fprintf(&b, " AND (title ILIKE $%d OR description ILIKE $%d)", len(args), len(args))
	}
	b.WriteString(" ORDER BY created_at DESC")

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Update writes the full task row back.
func (r *PostgresRepository) Update(ctx context.Context, t *domain.Task) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tasks
		 SET title = $2, description = $3, status = $4, priority = $5,
		     due_date = $6, updated_at = $7, completed_at = $8
		 WHERE id = $1`,
		t.ID, t.Title, nullString(t.Description), string(t.Status), string(t.Priority),
		t.DueDate, t.UpdatedAt, t.CompletedAt,
	)
	return err
}

// Delete removes the task row. Deleting a missing row is a no-op.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var description sql.NullString
	var status, priority string
	var dueDate, completedAt sql.NullTime
	err := row.Scan(&t.ID, &t.Title, &description, &status, &priority,
		&dueDate, &t.UserID, &t.CreatedAt, &t.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	t.Description = description.String
	t.Status = domain.Status(status)
	t.Priority = domain.Priority(priority)
	if dueDate.Valid {
		d := dueDate.Time
		t.DueDate = &d
	}
	if completedAt.Valid {
		c := completedAt.Time
		t.CompletedAt = &c
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
