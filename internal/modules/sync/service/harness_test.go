package service_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	activitydto "tether/internal/modules/activity/dto"
	connectivitydto "tether/internal/modules/connectivity/dto"
	storeadapter "tether/internal/modules/localstore/adapter/out"
	storedto "tether/internal/modules/localstore/dto"
	storein "tether/internal/modules/localstore/port/in"
	storeservice "tether/internal/modules/localstore/service"
	storeusecase "tether/internal/modules/localstore/usecase"
	sessionadapter "tether/internal/modules/session/adapter/out"
	sessiondomain "tether/internal/modules/session/domain"
	sessionin "tether/internal/modules/session/port/in"
	sessionservice "tether/internal/modules/session/service"
	sessionusecase "tether/internal/modules/session/usecase"
	syncadapter "tether/internal/modules/sync/adapter/out"
	"tether/internal/modules/sync/domain"
	syncout "tether/internal/modules/sync/port/out"
	"tether/internal/modules/sync/service"
	"tether/internal/platform/clock"
	"tether/internal/platform/id"
	"tether/internal/platform/sqlitedb"
	"tether/internal/platform/tx"
)

const owner = "owner-x"

var t0 = time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)

// memoryRemote behaves like the remote document service: it stamps a
// strictly increasing lastModified and rejects writes against a stale base.
type memoryRemote struct {
	clock clock.Clock

	mu          sync.Mutex
	docs        map[string]domain.Document
	last        time.Time
	unavailable bool
	puts        int
	beforePull  func()
}

func newMemoryRemote(clk clock.Clock) *memoryRemote {
	return &memoryRemote{clock: clk, docs: map[string]domain.Document{}}
}

func (r *memoryRemote) setUnavailable(v bool) {
	r.mu.Lock()
	r.unavailable = v
	r.mu.Unlock()
}

func (r *memoryRemote) Get(_ context.Context, ownerID, collection, docID string) (domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unavailable {
		return domain.Document{}, domain.ErrRemoteUnavailable
	}
	doc, ok := r.docs[domain.ConflictID(ownerID, collection, docID)]
	if !ok {
		return domain.Document{}, domain.ErrRemoteNotFound
	}
	return doc, nil
}

func (r *memoryRemote) Put(_ context.Context, doc domain.Document, opts syncout.PutOptions) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unavailable {
		return time.Time{}, domain.ErrRemoteUnavailable
	}
	key := domain.ConflictID(doc.OwnerID, doc.Collection, doc.ID)
	if existing, ok := r.docs[key]; ok && !opts.Force && !existing.LastModified.Equal(opts.BaseLastModified) {
		return time.Time{}, domain.ErrStale
	}
	stamp := r.clock.Now()
	if !stamp.After(r.last) {
		stamp = r.last.Add(time.Microsecond)
	}
	r.last = stamp
	doc.LastModified = stamp
	r.docs[key] = doc
	r.puts++
	return stamp, nil
}

func (r *memoryRemote) Delete(_ context.Context, ownerID, collection, docID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unavailable {
		return domain.ErrRemoteUnavailable
	}
	key := domain.ConflictID(ownerID, collection, docID)
	if _, ok := r.docs[key]; !ok {
		return domain.ErrRemoteNotFound
	}
	delete(r.docs, key)
	return nil
}

// setBeforePull installs a hook that runs at the start of every pull.
func (r *memoryRemote) setBeforePull(hook func()) {
	r.mu.Lock()
	r.beforePull = hook
	r.mu.Unlock()
}

func (r *memoryRemote) ChangedSince(_ context.Context, ownerID, collection string, since time.Time) ([]domain.Document, error) {
	r.mu.Lock()
	hook := r.beforePull
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unavailable {
		return nil, domain.ErrRemoteUnavailable
	}
	out := make([]domain.Document, 0)
	for _, doc := range r.docs {
		if doc.OwnerID == ownerID && doc.Collection == collection && doc.LastModified.After(since) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastModified.Before(out[j].LastModified) })
	return out, nil
}

// forceWrite changes a remote document the way another device would.
func (r *memoryRemote) forceWrite(t *testing.T, collection, docID, data string) time.Time {
	t.Helper()
	lm, err := r.Put(context.Background(), domain.Document{OwnerID: owner, Collection: collection, ID: docID, Data: json.RawMessage(data)}, syncout.PutOptions{Force: true})
	if err != nil {
		t.Fatalf("remote write: %v", err)
	}
	return lm
}

func (r *memoryRemote) data(t *testing.T, collection, docID string) string {
	t.Helper()
	doc, err := r.Get(context.Background(), owner, collection, docID)
	if err != nil {
		t.Fatalf("remote get %s/%s: %v", collection, docID, err)
	}
	return string(doc.Data)
}

type activityLog struct {
	mu    sync.Mutex
	types []string
}

func (a *activityLog) Record(_ context.Context, input activitydto.RecordInput) error {
	a.mu.Lock()
	a.types = append(a.types, input.Type)
	a.mu.Unlock()
	return nil
}

func (a *activityLog) count(eventType string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, candidate := range a.types {
		if candidate == eventType {
			n++
		}
	}
	return n
}

type fakeMonitor struct {
	mu          sync.Mutex
	status      connectivitydto.Status
	transitions chan connectivitydto.Transition
}

func newFakeMonitor(online bool) *fakeMonitor {
	return &fakeMonitor{
		status:      connectivitydto.Status{Online: online, Quality: connectivitydto.QualityGood},
		transitions: make(chan connectivitydto.Transition, 4),
	}
}

func (m *fakeMonitor) Check(context.Context) connectivitydto.Status { return m.Current() }

func (m *fakeMonitor) Current() connectivitydto.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *fakeMonitor) Subscribe() (<-chan connectivitydto.Transition, func()) {
	return m.transitions, func() {}
}

func (m *fakeMonitor) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (m *fakeMonitor) set(online bool) {
	m.mu.Lock()
	from := m.status
	m.status.Online = online
	to := m.status
	m.mu.Unlock()
	m.transitions <- connectivitydto.Transition{From: from, To: to}
}

type device struct {
	store    storein.Store
	queue    *service.Queue
	resolver *service.Resolver
	engine   *service.Engine
	metrics  *service.Metrics
	activity *activityLog
	monitor  *fakeMonitor
	dbPath   string
}

func newDevice(t *testing.T, clk *clock.Manual, remote *memoryRemote) *device {
	t.Helper()
	return openDevice(t, clk, remote, filepath.Join(t.TempDir(), "tether.db"))
}

// openDevice builds a device over dbPath, so reopening the same path
// simulates a process restart.
func openDevice(t *testing.T, clk *clock.Manual, remote *memoryRemote, dbPath string) *device {
	t.Helper()
	db, err := sqlitedb.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	queueRepo, err := syncadapter.NewSQLiteQueueStore(db)
	if err != nil {
		t.Fatalf("queue store: %v", err)
	}
	checkpoints, err := syncadapter.NewSQLiteCheckpointStore(db)
	if err != nil {
		t.Fatalf("checkpoint store: %v", err)
	}
	records, err := storeadapter.NewSQLiteRecordStore(db)
	if err != nil {
		t.Fatalf("record store: %v", err)
	}
	txm := tx.NewSQLManager(db)
	metrics := service.NewMetrics(nil)
	activity := &activityLog{}
	policy := domain.RetryPolicy{MaxRetries: 3, BaseBackoff: time.Second, MaxBackoff: time.Minute}
	queue := service.NewQueue(clk, &id.Sequence{Prefix: "op"}, queueRepo, txm, policy, activity, metrics, nil)
	store := storeusecase.NewInteractor(storeservice.NewStoreService(clk, records, queue, txm, nil))
	resolver := service.NewResolver(clk, store, remote, queue, activity, metrics, nil)
	monitor := newFakeMonitor(true)
	engine := service.NewEngine(clk, store, remote, checkpoints, queue, resolver, monitor, activity, metrics, service.EngineOptions{Interval: time.Hour}, nil)
	return &device{
		store:    store,
		queue:    queue,
		resolver: resolver,
		engine:   engine,
		metrics:  metrics,
		activity: activity,
		monitor:  monitor,
		dbPath:   dbPath,
	}
}

func (d *device) put(t *testing.T, collection, docID, data string) storedto.Record {
	t.Helper()
	record, err := d.store.Put(context.Background(), storedto.PutInput{
		Key:  storedto.Key{OwnerID: owner, Collection: collection, ID: docID},
		Data: json.RawMessage(data),
	})
	if err != nil {
		t.Fatalf("put %s/%s: %v", collection, docID, err)
	}
	return record
}

func (d *device) get(t *testing.T, collection, docID string) storedto.Record {
	t.Helper()
	record, err := d.store.Get(context.Background(), storedto.Key{OwnerID: owner, Collection: collection, ID: docID})
	if err != nil {
		t.Fatalf("get %s/%s: %v", collection, docID, err)
	}
	return record
}

func (d *device) sync(t *testing.T) domain.Report {
	t.Helper()
	report, err := d.engine.SyncOwner(context.Background(), owner)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	return report
}

// sessionsOn runs a session service on top of the device's local store.
func sessionsOn(t *testing.T, d *device, clk *clock.Manual, prefix string) sessionin.Usecase {
	t.Helper()
	svc := sessionservice.NewSessionService(
		clk,
		&id.Sequence{Prefix: prefix},
		sessionadapter.NewRecordSessionStore(d.store),
		nil,
		nil,
		sessiondomain.DefaultCooldownPolicy(),
		nil,
	)
	t.Cleanup(svc.Close)
	return sessionusecase.NewInteractor(svc)
}
