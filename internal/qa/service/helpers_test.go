package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/metrics"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/repository"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	svc    *Services
	repos  *repository.Repositories
	clock  *testutil.Clock
	events *recordingNotifier
	store  *memoryStore
	ctx    context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	clock := testutil.NewClock(testEpoch)
	events := &recordingNotifier{}
	store := newMemoryStore()

	svc := NewServices(Deps{
		Repos:    repos,
		Storage:  store,
		Notifier: events,
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Clock:    clock.Now,
	})
	return &testEnv{
		svc:    svc,
		repos:  repos,
		clock:  clock,
		events: events,
		store:  store,
		ctx:    context.Background(),
	}
}

// fabric 创建并审批一个100%棉的面料
func (e *testEnv) fabric(t *testing.T, name string) *entity.Component {
	t.Helper()
	c, err := e.svc.Component.Create(e.ctx, "ft-001", &CreateComponentRequest{
		Variant:     entity.ComponentVariantFabric,
		Name:        name,
		Composition: []FibreInput{{FibreType: "Cotton", Percentage: 100}},
	})
	require.NoError(t, err)
	c, err = e.svc.Component.Approve(e.ctx, c.ID, "ft-001")
	require.NoError(t, err)
	return c
}

func (e *testEnv) trim(t *testing.T, name string) *entity.Component {
	t.Helper()
	c, err := e.svc.Component.Create(e.ctx, "ft-001", &CreateComponentRequest{
		Variant:  entity.ComponentVariantTrim,
		Name:     name,
		TrimType: "button",
		Material: "corozo",
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) style(t *testing.T, name string, componentIDs ...string) *entity.Style {
	t.Helper()
	s, err := e.svc.Style.Create(e.ctx, "gt-001", &CreateStyleRequest{
		Name:         name,
		ComponentIDs: componentIDs,
	})
	require.NoError(t, err)
	return s
}

// recordTest 申请并录入一次测试
func (e *testEnv) recordTest(t *testing.T, componentID, styleID, level string, pass bool) *entity.ComponentTest {
	t.Helper()
	test, err := e.svc.Test.RequestTest(e.ctx, &RequestTestRequest{
		ComponentID: componentID,
		StyleID:     styleID,
		Level:       level,
		RequestedBy: "ft-001",
	})
	require.NoError(t, err)

	status := entity.ParameterStatusPass
	if !pass {
		status = entity.ParameterStatusFail
	}
	test, err = e.svc.Test.RecordResult(e.ctx, test.ID, &RecordResultRequest{
		Parameters: []ParameterInput{
			{Name: "Colour fastness to washing", Specification: ">= 4", Result: "4-5", Status: entity.ParameterStatusPass},
			{Name: "Dimensional stability", Specification: "+/- 3%", Result: "-2%", Status: status},
		},
		LabReference: "LAB-" + level,
		RecordedBy:   "lab-001",
	})
	require.NoError(t, err)
	return test
}

func (e *testEnv) link(t *testing.T, styleID, componentID string) *entity.StyleComponentLink {
	t.Helper()
	l, err := e.repos.Link.FindByPair(e.ctx, styleID, componentID)
	require.NoError(t, err)
	return l
}

func (e *testEnv) stage(t *testing.T, styleID string) string {
	t.Helper()
	stage, err := e.svc.Lifecycle.GetStage(e.ctx, styleID)
	require.NoError(t, err)
	return stage
}

type recordedEvent struct {
	Type    string
	Payload map[string]interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Publish(eventType string, payload map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Type: eventType, Payload: payload})
}

func (n *recordingNotifier) count(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Type == eventType {
			c++
		}
	}
	return c
}

// memoryStore 内存对象存储
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Put(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
