package chemflow_test

import (
	"context"
	"embed"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
	_ "github.com/viant/afs/embed"
	"github.com/viant/chemflow"
	"github.com/viant/chemflow/internal/logging"
	"github.com/viant/chemflow/model/graph"
	"github.com/viant/chemflow/runtime/execution"
	"github.com/viant/chemflow/service/engine"
	"github.com/viant/chemflow/service/transport"
	"github.com/viant/chemflow/service/workdir"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

//go:embed testdata/*
var embedFS embed.FS

type echoAdapter struct {
	workdir *workdir.Service
	values  map[string]interface{}
	mux     sync.Mutex
}

func (a *echoAdapter) Kind() string { return "echo" }

func (a *echoAdapter) Prepare(ctx context.Context, stage *graph.Stage, params map[string]interface{}, workDir string) (*engine.LaunchSpec, error) {
	a.mux.Lock()
	a.values[stage.Name] = params["value"]
	a.mux.Unlock()
	change, err := a.workdir.Write(ctx, workDir, "echo.in", []byte(stage.Name))
	if err != nil {
		return nil, err
	}
	spec := &engine.LaunchSpec{Command: "echo", Args: []string{stage.Name}}
	spec.AddChange(change)
	return spec, nil
}

func (a *echoAdapter) Collect(ctx context.Context, stage *graph.Stage, workDir string) (map[string]interface{}, error) {
	a.mux.Lock()
	defer a.mux.Unlock()
	return map[string]interface{}{"value": a.values[stage.Name]}, nil
}

type instantTransport struct{}

func (instantTransport) StageIn(ctx context.Context, job *transport.Target) error { return nil }

func (instantTransport) Execute(ctx context.Context, job *transport.Target, spec *engine.LaunchSpec) (*transport.Handle, error) {
	return &transport.Handle{ID: "1", Dir: job.Dir(), SubmittedAt: time.Now()}, nil
}

func (instantTransport) Poll(ctx context.Context, job *transport.Target, handle *transport.Handle) (*transport.Status, error) {
	return &transport.Status{Done: true}, nil
}

func (instantTransport) StageOut(ctx context.Context, job *transport.Target) error { return nil }

func (instantTransport) Cancel(ctx context.Context, job *transport.Target, handle *transport.Handle) error {
	return nil
}

func (instantTransport) Close() error { return nil }

func newService(t *testing.T, options ...chemflow.Option) *chemflow.Service {
	config := chemflow.DefaultConfig()
	config.WorkRoot = "mem://localhost/chemflow/" + t.Name()
	config.StepInterval = "1ms"
	options = append([]chemflow.Option{
		chemflow.WithConfig(config),
		chemflow.WithMetaFsOptions(&embedFS),
		chemflow.WithMetaBaseURL("embed:///testdata"),
		chemflow.WithTransport("", instantTransport{}),
		chemflow.WithAdapter(&echoAdapter{workdir: workdir.New(afs.New()), values: map[string]interface{}{}}),
		chemflow.WithLogger(logging.Discard()),
		chemflow.WithMetricsRegistry(prometheus.NewRegistry()),
	}, options...)
	srv, err := chemflow.New(context.Background(), options...)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestService(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	srv := newService(t, chemflow.WithTracingExporter(exporter))
	runtime := srv.Runtime()
	ctx := context.Background()

	workflow, err := runtime.LoadWorkflow(ctx, "pipeline.yaml")
	if !assert.NoError(t, err) {
		return
	}
	aRun, err := runtime.Submit(ctx, workflow, nil)
	if !assert.NoError(t, err) {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	snapshot, err := runtime.Run(ctx, aRun.ID)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, execution.RunStateComplete, snapshot.State)
	assert.EqualValues(t, 2, snapshot.Stage("report").Outputs["value"])
	assert.NotEmpty(t, exporter.GetSpans())

	listed, err := runtime.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, listed, 1)
	assert.NoError(t, runtime.Delete(ctx, aRun.ID))
	_, err = runtime.Status(ctx, aRun.ID)
	assert.Error(t, err)
}

func TestRuntime_Start(t *testing.T) {
	srv := newService(t)
	runtime := srv.Runtime()
	ctx := context.Background()
	workflow, err := runtime.LoadWorkflow(ctx, "pipeline")
	if !assert.NoError(t, err) {
		return
	}
	aRun, err := runtime.Submit(ctx, workflow, map[string]interface{}{"x": 7})
	if !assert.NoError(t, err) {
		return
	}
	assert.NoError(t, runtime.Start(ctx))
	assert.Eventually(t, func() bool {
		snapshot, err := runtime.Status(ctx, aRun.ID)
		return err == nil && snapshot.State == execution.RunStateComplete
	}, 5*time.Second, 5*time.Millisecond)
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, runtime.Shutdown(shutdownCtx))
	snapshot, err := runtime.Status(ctx, aRun.ID)
	assert.NoError(t, err)
	assert.EqualValues(t, 7, snapshot.Stage("report").Outputs["value"])
}

func TestRuntime_UpsertDefinition(t *testing.T) {
	srv := newService(t)
	runtime := srv.Runtime()
	ctx := context.Background()

	testCases := []struct {
		description string
		data        []byte
		expectErr   bool
		expectName  string
	}{
		{
			description: "inline definition",
			data:        []byte("name: inline\nstages:\n  a: {engine: echo, params: {value: 1}, outputs: [value]}\n"),
			expectName:  "inline",
		},
		{
			description: "invalid definition",
			data:        []byte("stages:\n  a: {engine: echo, dependsOn: a}\n"),
			expectErr:   true,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			err := runtime.UpsertDefinition("inline.yaml", testCase.data)
			if testCase.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			workflow, err := runtime.LoadWorkflow(ctx, "inline.yaml")
			assert.NoError(t, err)
			assert.Equal(t, testCase.expectName, workflow.Name)
			assert.Equal(t, "inline.yaml", workflow.Source.URL)
		})
	}
	assert.NoError(t, runtime.RefreshWorkflow("inline.yaml"))
	_, err := runtime.LoadWorkflow(ctx, "inline.yaml")
	assert.Error(t, err)
}

func TestNew_InvalidConfig(t *testing.T) {
	config := chemflow.DefaultConfig()
	config.Store.Kind = "redis"
	_, err := chemflow.New(context.Background(), chemflow.WithConfig(config), chemflow.WithLogger(logging.Discard()))
	assert.ErrorContains(t, err, "unsupported store kind")
}

func TestLoadConfig(t *testing.T) {
	assert.NoError(t, os.Setenv("CHEMFLOW_TEST_ROOT", "/tmp/chemflow-test"))
	defer os.Unsetenv("CHEMFLOW_TEST_ROOT")
	config, err := chemflow.LoadConfig(context.Background(), "testdata/config.yaml")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "/tmp/chemflow-test", config.WorkRoot)
	assert.Equal(t, 5, config.Retry.MaxAttempts)
	assert.Equal(t, "1s", config.Retry.Delay)
	assert.Equal(t, 3*time.Second, config.PollTimeoutDuration())
	assert.Equal(t, 10*time.Millisecond, config.StepIntervalDuration())
	assert.Equal(t, "octopus", config.Engines.Octopus)
	if assert.Len(t, config.Hosts, 1) {
		assert.Equal(t, "login.example.org:22", config.Hosts[0].Address)
		assert.Equal(t, transport.SchedulerPBS, config.Hosts[0].Scheduler)
	}
	assert.Equal(t, "json", config.Log.Format)
}
