package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taskvault/backend/internal/apperr"
	"taskvault/backend/internal/task/domain"
	"taskvault/backend/internal/task/repository"
)

// memTaskRepo is an in-memory TaskRepo for tests.
type memTaskRepo struct {
	mu         sync.Mutex
	byID       map[string]*domain.Task
	failCreate bool
	failFind   bool
	failUpdate bool
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{byID: map[string]*domain.Task{}}
}

func (m *memTaskRepo) Create(_ context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return errors.New("create failed")
	}
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memTaskRepo) FindByID(_ context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFind {
		return nil, errors.New("find failed")
	}
	t, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memTaskRepo) FindByUser(_ context.Context, userID string, f repository.Filter) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Task
	for _, t := range m.byID {
		if t.UserID != userID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memTaskRepo) Update(_ context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate {
		return errors.New("update failed")
	}
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memTaskRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("error kind = %v, want %v (err: %v)", got, kind, err)
	}
}

func mustCreate(t *testing.T, svc *TaskService, userID, title string) *domain.Task {
	t.Helper()
	task, err := svc.Create(context.Background(), userID, CreateInput{Title: title})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return task
}

func TestCreateDefaults(t *testing.T) {
	svc := NewTaskService(newMemTaskRepo())

	task := mustCreate(t, svc, "user-1", "write report")
	if task.Status != domain.StatusPending {
		t.Errorf("status = %q, want pending", task.Status)
	}
	if task.Priority != domain.PriorityMedium {
		t.Errorf("priority = %q, want medium", task.Priority)
	}
	if task.CompletedAt != nil {
		t.Error("new task must not have completed_at")
	}
	if task.ID == "" {
		t.Error("expected a generated id")
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewTaskService(newMemTaskRepo())
	ctx := context.Background()

	long := make([]byte, 256)
	for i := range long {
		long[i] = 'x'
	}
	cases := []struct {
		name string
		in   CreateInput
	}{
		{"missing title", CreateInput{}},
		{"title too long", CreateInput{Title: string(long)}},
		{"bad status", CreateInput{Title: "t", Status: "done"}},
		{"bad priority", CreateInput{Title: "t", Priority: "asap"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "user-1", tc.in)
			wantKind(t, err, apperr.KindValidation)
		})
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc := NewTaskService(newMemTaskRepo())
	task := mustCreate(t, svc, "user-1", "mine")
	ctx := context.Background()

	if _, err := svc.Get(ctx, task.ID, "user-1"); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	_, err := svc.Get(ctx, task.ID, "user-2")
	wantKind(t, err, apperr.KindAuthorization)

	_, err = svc.Get(ctx, "no-such-task", "user-1")
	wantKind(t, err, apperr.KindNotFound)
}

func TestListFilters(t *testing.T) {
	repo := newMemTaskRepo()
	svc := NewTaskService(repo)
	ctx := context.Background()

	mustCreate(t, svc, "user-1", "a")
	b := mustCreate(t, svc, "user-1", "b")
	mustCreate(t, svc, "user-2", "other")
	if _, err := svc.MarkCompleted(ctx, b.ID, "user-1"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	all, err := svc.List(ctx, "user-1", repository.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all tasks = %d, want 2", len(all))
	}

	completed, err := svc.List(ctx, "user-1", repository.Filter{Status: domain.StatusCompleted})
	if err != nil {
		t.Fatalf("List(completed): %v", err)
	}
	if len(completed) != 1 || completed[0].ID != b.ID {
		t.Errorf("completed filter returned %d tasks", len(completed))
	}

	_, err = svc.List(ctx, "user-1", repository.Filter{Status: "bogus"})
	wantKind(t, err, apperr.KindValidation)
}

func TestUpdatePartial(t *testing.T) {
	svc := NewTaskService(newMemTaskRepo())
	task := mustCreate(t, svc, "user-1", "original")
	ctx := context.Background()

	title := "renamed"
	priority := domain.PriorityUrgent
	updated, err := svc.Update(ctx, task.ID, "user-1", UpdateInput{Title: &title, Priority: &priority})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "renamed" || updated.Priority != domain.PriorityUrgent {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.Status != domain.StatusPending {
		t.Errorf("untouched status changed to %q", updated.Status)
	}

	empty := ""
	_, err = svc.Update(ctx, task.ID, "user-1", UpdateInput{Title: &empty})
	wantKind(t, err, apperr.KindValidation)

	_, err = svc.Update(ctx, task.ID, "user-2", UpdateInput{Title: &title})
	wantKind(t, err, apperr.KindAuthorization)
}

func TestStatusLifecycle(t *testing.T) {
	svc := NewTaskService(newMemTaskRepo())
	task := mustCreate(t, svc, "user-1", "lifecycle")
	ctx := context.Background()

	inProgress, err := svc.MarkInProgress(ctx, task.ID, "user-1")
	if err != nil {
		t.Fatalf("MarkInProgress: %v", err)
	}
	if inProgress.Status != domain.StatusInProgress || inProgress.CompletedAt != nil {
		t.Errorf("in_progress state wrong: %+v", inProgress)
	}

	done, err := svc.MarkCompleted(ctx, task.ID, "user-1")
	if err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if done.Status != domain.StatusCompleted || done.CompletedAt == nil {
		t.Error("completed task must carry completed_at")
	}

	// Archiving a completed task keeps its completion stamp.
	archived, err := svc.Archive(ctx, task.ID, "user-1")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if archived.Status != domain.StatusArchived || archived.CompletedAt == nil {
		t.Error("archive must not clear completed_at")
	}

	// Reopening clears it.
	reopened, err := svc.MarkPending(ctx, task.ID, "user-1")
	if err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	if reopened.Status != domain.StatusPending || reopened.CompletedAt != nil {
		t.Error("pending task must not carry completed_at")
	}
}

func TestCompletedAtStableOnRecomplete(t *testing.T) {
	svc := NewTaskService(newMemTaskRepo())
	task := mustCreate(t, svc, "user-1", "t")
	ctx := context.Background()

	first, _ := svc.MarkCompleted(ctx, task.ID, "user-1")
	time.Sleep(5 * time.Millisecond)
	second, err := svc.MarkCompleted(ctx, task.ID, "user-1")
	if err != nil {
		t.Fatalf("MarkCompleted again: %v", err)
	}
	if !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Error("re-completing an already-completed task must not restamp completed_at")
	}
}

func TestDeleteEnforcesOwnership(t *testing.T) {
	svc := NewTaskService(newMemTaskRepo())
	task := mustCreate(t, svc, "user-1", "t")
	ctx := context.Background()

	err := svc.Delete(ctx, task.ID, "user-2")
	wantKind(t, err, apperr.KindAuthorization)

	if err := svc.Delete(ctx, task.ID, "user-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = svc.Get(ctx, task.ID, "user-1")
	wantKind(t, err, apperr.KindNotFound)
}

func TestRepositoryFailuresSurfaceAsDatabase(t *testing.T) {
	repo := newMemTaskRepo()
	svc := NewTaskService(repo)
	ctx := context.Background()

	repo.failCreate = true
	_, err := svc.Create(ctx, "user-1", CreateInput{Title: "t"})
	wantKind(t, err, apperr.KindDatabase)
	repo.failCreate = false

	task := mustCreate(t, svc, "user-1", "t")
	repo.failUpdate = true
	_, err = svc.MarkCompleted(ctx, task.ID, "user-1")
	wantKind(t, err, apperr.KindDatabase)
	repo.failUpdate = false

	repo.failFind = true
	_, err = svc.Get(ctx, task.ID, "user-1")
	wantKind(t, err, apperr.KindDatabase)
}
