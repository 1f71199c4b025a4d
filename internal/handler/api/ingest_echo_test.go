package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"HistFill/internal/domain/models"
	"HistFill/internal/repository"
	"HistFill/internal/usecase"
	"HistFill/pkg/cache"
	"HistFill/pkg/logger"
	"HistFill/pkg/metrics"
)

// staticMarket serves one price and one share count for every known symbol.
type staticMarket struct {
	known map[string]bool
}

func (m staticMarket) PriceNear(_ context.Context, formats []string, target time.Time) (*models.Bar, error) {
	for _, f := range formats {
		if m.known[f] {
			return &models.Bar{Date: target, AdjClose: 42}, nil
		}
	}
	return nil, nil
}

func (m staticMarket) SharesOutstanding(_ context.Context, symbol string, _ time.Time) (float64, bool, error) {
	return 1e9, m.known[symbol], nil
}

func (m staticMarket) KnownSymbols(context.Context) (*models.SymbolDirectory, error) {
	return &models.SymbolDirectory{Active: m.known}, nil
}

// recordingPublisher captures enqueued message types.
type recordingPublisher struct {
	types []string
}

func (p *recordingPublisher) PublishMessage(_ context.Context, msgType string, _ interface{}) error {
	p.types = append(p.types, msgType)
	return nil
}

func newTestServer(t *testing.T, known ...string) (*echo.Echo, *recordingPublisher) {
	t.Helper()
	mem := cache.NewMemoryCache()
	tickers := repository.NewCacheTickerStore(mem)
	failed := repository.NewCacheFailedRegistry(mem)
	jobs := repository.NewCacheJobStore(mem)

	knownSet := make(map[string]bool, len(known))
	for _, s := range known {
		knownSet[s] = true
	}

	lgr := logger.Nop()
	coverage := usecase.NewCoverageChecker(tickers, failed)
	worker := usecase.NewFillWorker(
		staticMarket{known: knownSet}, tickers, failed,
		repository.NoopArchive{}, metrics.Noop{}, lgr,
		usecase.WithMinYear(2020),
		usecase.WithClock(func() time.Time { return time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC) }),
	)
	manager := usecase.NewJobManager(jobs, coverage, repository.NoopEvents{}, lgr)
	orchestrator := usecase.NewOrchestrator(manager, worker, jobs, metrics.Noop{}, lgr)
	publisher := &recordingPublisher{}
	runner := usecase.NewJobRunner(orchestrator, publisher, lgr, time.Minute)

	e := echo.New()
	NewIngestEchoHandler(lgr, manager, orchestrator, runner, coverage, tickers, failed).RegisterRoutes(e)
	return e, publisher
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *envelope {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code == http.StatusNoContent {
		return &envelope{Status: http.StatusNoContent}
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %q: %v", rec.Body.String(), err)
	}
	return &env
}

func TestCreateJobEndpoint(t *testing.T) {
	e, publisher := newTestServer(t, "AAPL", "MSFT")

	env := doJSON(t, e, http.MethodPost, "/api/jobs", `{"symbols":["AAPL","MSFT"],"chunkSize":1}`)
	if env.Status != http.StatusCreated {
		t.Fatalf("status = %d, want 201", env.Status)
	}
	var resp models.CreateJobResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID == "" || resp.TotalChunks != 2 || len(resp.ToProcess) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	if len(publisher.types) != 0 {
		t.Fatalf("no auto-run requested, but enqueued %v", publisher.types)
	}

	env = doJSON(t, e, http.MethodGet, "/api/jobs/"+resp.JobID, "")
	if env.Status != http.StatusOK {
		t.Fatalf("get job status = %d", env.Status)
	}
	var job models.Job
	if err := json.Unmarshal(env.Data, &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Status != models.JobPending {
		t.Fatalf("job status = %s, want pending", job.Status)
	}
}

func TestCreateJobAutoRunEnqueues(t *testing.T) {
	e, publisher := newTestServer(t, "AAPL")

	env := doJSON(t, e, http.MethodPost, "/api/jobs", `{"symbols":["AAPL"],"autoRun":true}`)
	if env.Status != http.StatusCreated {
		t.Fatalf("status = %d, want 201", env.Status)
	}
	if len(publisher.types) != 1 || publisher.types[0] != usecase.RunMessageType {
		t.Fatalf("enqueued = %v, want one %s", publisher.types, usecase.RunMessageType)
	}
}

func TestCreateJobRejectsEmptySymbols(t *testing.T) {
	e, _ := newTestServer(t)

	env := doJSON(t, e, http.MethodPost, "/api/jobs", `{"symbols":[]}`)
	if env.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", env.Status)
	}
}

func TestRunJobEndpointSync(t *testing.T) {
	e, _ := newTestServer(t, "AAPL")

	env := doJSON(t, e, http.MethodPost, "/api/jobs", `{"symbols":["AAPL","GONE"],"chunkSize":10}`)
	var created models.CreateJobResponse
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}

	env = doJSON(t, e, http.MethodPost, "/api/jobs/"+created.JobID+"/run", `{"budgetSeconds":60}`)
	if env.Status != http.StatusOK {
		t.Fatalf("run status = %d", env.Status)
	}
	var run models.RunJobResponse
	if err := json.Unmarshal(env.Data, &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if !run.Completed {
		t.Fatalf("run = %+v, want completed", run)
	}
	if run.Progress.Successful != 1 || run.Progress.Failed != 1 {
		t.Fatalf("progress = %+v", run.Progress)
	}
}

func TestCoverageEndpoint(t *testing.T) {
	e, _ := newTestServer(t, "AAPL")

	env := doJSON(t, e, http.MethodPost, "/api/coverage", `{"symbols":["AAPL","MSFT"]}`)
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d", env.Status)
	}
	var cov models.Coverage
	if err := json.Unmarshal(env.Data, &cov); err != nil {
		t.Fatalf("decode coverage: %v", err)
	}
	if len(cov.Missing) != 2 {
		t.Fatalf("coverage = %+v", cov)
	}
}

func TestGetTickerNotFound(t *testing.T) {
	e, _ := newTestServer(t)

	env := doJSON(t, e, http.MethodGet, "/api/tickers/NOPE", "")
	if env.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", env.Status)
	}
}

func TestFailedRegistryEndpoints(t *testing.T) {
	e, _ := newTestServer(t, "AAPL")

	// Processing an unknown symbol lands it in the registry.
	env := doJSON(t, e, http.MethodPost, "/api/jobs", `{"symbols":["GONE"],"chunkSize":10}`)
	var created models.CreateJobResponse
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	doJSON(t, e, http.MethodPost, "/api/jobs/"+created.JobID+"/run", `{"budgetSeconds":60}`)

	env = doJSON(t, e, http.MethodGet, "/api/failed", "")
	var registry map[string]models.FailedTicker
	if err := json.Unmarshal(env.Data, &registry); err != nil {
		t.Fatalf("decode registry: %v", err)
	}
	if _, ok := registry["GONE"]; !ok {
		t.Fatalf("registry = %v, want GONE marked", registry)
	}

	env = doJSON(t, e, http.MethodDelete, "/api/failed/GONE", "")
	if env.Status != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", env.Status)
	}

	env = doJSON(t, e, http.MethodGet, "/api/failed", "")
	registry = nil
	if err := json.Unmarshal(env.Data, &registry); err != nil {
		t.Fatalf("decode registry: %v", err)
	}
	if _, ok := registry["GONE"]; ok {
		t.Fatal("GONE should have been cleared")
	}
}
