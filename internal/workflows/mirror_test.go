package workflows_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/usecases"
	"github.com/samirrijal/exsitu/internal/workflows"
)

type pagedRemote struct{ pages int }

func (r pagedRemote) FetchPage(ctx context.Context, q domain.ObjectQuery) (*domain.ObjectPage, error) {
	o := domain.MuseumObject{ID: fmt.Sprintf("obj-%d", q.Page)}
	return &domain.ObjectPage{Objects: []domain.MuseumObject{o}, Page: q.Page, PageSize: q.PageSize, PageCount: r.pages, Total: r.pages}, nil
}

func (pagedRemote) FetchStats(ctx context.Context) ([]domain.StatRow, error) { return nil, nil }

type memRepo struct {
	pagedRemote
	mu      sync.Mutex
	stored  map[string]bool
	failIDs map[string]bool
}

func (m *memRepo) UpsertBatch(ctx context.Context, objects []domain.MuseumObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stored == nil {
		m.stored = make(map[string]bool)
	}
	for _, o := range objects {
		if m.failIDs[o.ID] {
			return errors.New("disk full")
		}
		m.stored[o.ID] = true
	}
	return nil
}

func (m *memRepo) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stored), nil
}

type countingPublisher struct {
	mu      sync.Mutex
	objects []int
}

func (p *countingPublisher) PublishMirrorCompleted(ctx context.Context, objects int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects = append(p.objects, objects)
	return nil
}

func (p *countingPublisher) PublishStatsRefreshed(ctx context.Context, summary *domain.StatsSummary) error {
	return nil
}

func runMirror(t *testing.T, pages int, repo *memRepo, pub *countingPublisher) (*usecases.MirrorReport, error) {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	env.RegisterWorkflow(workflows.MirrorWorkflow)
	env.RegisterActivity(&workflows.MirrorActivities{
		Mirror:    usecases.NewMirrorService(pagedRemote{pages: pages}, repo, nil, 1),
		Publisher: pub,
	})

	env.ExecuteWorkflow(workflows.MirrorWorkflow, workflows.MirrorInput{Bounds: usecases.WorldBounds})
	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		return nil, err
	}
	var report usecases.MirrorReport
	if err := env.GetWorkflowResult(&report); err != nil {
		t.Fatalf("workflow result: %v", err)
	}
	return &report, nil
}

func TestMirrorWorkflow_AllPages(t *testing.T) {
	repo := &memRepo{}
	pub := &countingPublisher{}

	report, err := runMirror(t, 6, repo, pub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Pages != 6 || report.Stored != 6 || report.FailedPages != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if n, _ := repo.Count(context.Background()); n != 6 {
		t.Errorf("expected 6 stored objects, got %d", n)
	}
	if len(pub.objects) != 1 || pub.objects[0] != 6 {
		t.Errorf("expected one completion event for 6 objects, got %v", pub.objects)
	}
}

func TestMirrorWorkflow_FailedPageIsSkipped(t *testing.T) {
	repo := &memRepo{failIDs: map[string]bool{"obj-3": true}}

	report, err := runMirror(t, 5, repo, &countingPublisher{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.FailedPages != 1 || report.Stored != 4 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestMirrorWorkflow_FirstPageFailure(t *testing.T) {
	repo := &memRepo{failIDs: map[string]bool{"obj-1": true}}
	pub := &countingPublisher{}

	if _, err := runMirror(t, 3, repo, pub); err == nil {
		t.Fatal("expected error when page 1 cannot be stored")
	}
	if len(pub.objects) != 0 {
		t.Errorf("nothing should be published, got %v", pub.objects)
	}
}
