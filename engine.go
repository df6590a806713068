// Package coredoc implements an embedded, schema-validated document engine:
// write-ahead logging for durability, multi-version concurrency control for
// snapshot-isolated reads, a deterministic query planner, and an explicit,
// operator-driven authority/follower replication and promotion protocol.
//
// Architecture:
//  1. Engine: the coordinator opening and wiring every subsystem below.
//  2. schema.Registry: the process-wide, load-once catalogue of collection
//     schemas every operation validates against.
//  3. wal.WAL: the durable, totally ordered log every write goes through
//     before it is visible.
//  4. mvcc.Store: version chains, snapshot isolation, and secondary indexes.
//  5. planner + executor: turns a filter into a deterministic access path
//     and runs it against a pinned snapshot.
//  6. replication.Node: this process's authority/follower role and the
//     promotion protocol that changes it.
package coredoc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kartikbazzad/coredoc/executor"
	"github.com/kartikbazzad/coredoc/internal/admission"
	"github.com/kartikbazzad/coredoc/internal/util"
	"github.com/kartikbazzad/coredoc/internal/wal"
	"github.com/kartikbazzad/coredoc/logging"
	"github.com/kartikbazzad/coredoc/mvcc"
	"github.com/kartikbazzad/coredoc/planner"
	"github.com/kartikbazzad/coredoc/replication"
	"github.com/kartikbazzad/coredoc/rls"
	"github.com/kartikbazzad/coredoc/schema"
)

// Engine is the central coordinator for a coredoc node: schema registry,
// WAL, MVCC store, writer, and replication identity.
type Engine struct {
	opts     Options
	registry *schema.Registry
	wal      *wal.WAL
	store    *mvcc.Store
	catalog  *mvcc.IndexCatalog
	writer   *executor.Writer
	node     *replication.Node
	audit    *replication.AuditLogger
	admit    *admission.Controller

	mu       sync.RWMutex
	closed   atomic.Bool
	draining atomic.Bool
}

// Open opens (or, with Options.Bootstrap, initializes) a coredoc engine.
// It loads the schema registry, opens the WAL and every collection's
// secondary indexes, replays the WAL into the MVCC store, and boots the
// node's replication role from its authority marker. A missing or invalid
// schema directory is a fatal configuration error; the caller should treat
// it as such (coredoc.ExitCode maps it to exit code 2) rather than retry.
func Open(opts Options) (*Engine, error) {
	registry, err := schema.Load(opts.SchemaDir)
	if err != nil {
		return nil, New(KindConfig, "load schema registry", err)
	}

	w, err := wal.Open(opts.DataDir)
	if err != nil {
		return nil, New(KindIOTransient, "open wal", err)
	}

	catalog, err := mvcc.OpenIndexCatalog(opts.DataDir)
	if err != nil {
		w.Close()
		return nil, New(KindIOTransient, "open index catalog", err)
	}

	store := mvcc.NewStore()
	for _, name := range registry.Collections() {
		sc, _ := registry.Get(name)
		if err := store.OpenCollection(opts.DataDir, sc, catalog, opts.EncryptionKey); err != nil {
			w.Close()
			return nil, New(KindIOTransient, fmt.Sprintf("open collection %s", name), err)
		}
	}

	if err := recover_(w, store); err != nil {
		w.Close()
		return nil, Classify(err)
	}

	audit := replication.DiscardAuditLogger()
	if opts.AuditLogPath != "" {
		a, err := replication.NewAuditLogger(opts.AuditLogPath)
		if err != nil {
			w.Close()
			return nil, New(KindIOTransient, "open audit log", err)
		}
		audit = a
	}

	nodeCfg := replication.Config{NodeID: opts.NodeID, DataDir: opts.DataDir}
	var node *replication.Node
	if opts.Bootstrap {
		node, err = replication.Bootstrap(nodeCfg, audit)
	} else {
		node, err = replication.Boot(nodeCfg, audit)
	}
	if err != nil {
		w.Close()
		return nil, Classify(err)
	}

	return &Engine{
		opts:     opts,
		registry: registry,
		wal:      w,
		store:    store,
		catalog:  catalog,
		writer:   executor.NewWriter(w, store),
		node:     node,
		audit:    audit,
		admit:    admission.New(opts.Admission),
	}, nil
}

// recover_ replays every WAL record into store from the beginning. The
// store's Apply is idempotent past its own high-water mark, so replaying
// from lsn 1 on every boot is simple and correct, if not the cheapest
// possible recovery; checkpoint/truncation (TruncatePrefix) bounds how much
// there ever is to replay.
func recover_(w *wal.WAL, store *mvcc.Store) error {
	return w.Iterate(1, func(lsn wal.LSN, kind wal.Kind, payload []byte) error {
		return store.Apply(lsn, kind, payload)
	})
}

func (e *Engine) requireOpen() error {
	if e.closed.Load() {
		return util.ErrEngineClosed
	}
	return nil
}

func (e *Engine) requireAuthority() error {
	if !e.node.IsAuthority() {
		return fmt.Errorf("%w: node %s is not authority", util.ErrAuthorityConflict, e.node.ID())
	}
	if e.draining.Load() {
		return fmt.Errorf("%w: node %s", util.ErrEngineDraining, e.node.ID())
	}
	return nil
}

func (e *Engine) requireWriteAdmission() error {
	if !e.admit.AllowWrite() {
		return fmt.Errorf("%w: write rate limit exceeded", util.ErrAdmissionRejected)
	}
	return nil
}

// logSlowOp emits the opt-in per-operation structured log spec.md §9
// describes, naming the fields an operator would need to find the one
// slow call in a sea of fast ones. It is a no-op unless Options.SlowOpThreshold
// is set and this call met or exceeded it.
func (e *Engine) logSlowOp(collection, kind string, lsn wal.LSN, explainClass string, start time.Time) {
	if e.opts.SlowOpThreshold <= 0 {
		return
	}
	if d := time.Since(start); d >= e.opts.SlowOpThreshold {
		logging.Warn("slow operation",
			"collection", collection, "kind", kind, "lsn", lsn,
			"explain_class", explainClass, "duration_ms", d.Milliseconds())
	}
}

func (e *Engine) schemaFor(collection string) (*schema.Schema, error) {
	sc, ok := e.registry.Get(collection)
	if !ok {
		return nil, fmt.Errorf("%w: %s", util.ErrCollectionNotFound, collection)
	}
	return sc, nil
}

// Insert validates and inserts a new document, returning the lsn it was
// committed at. Only an authority accepts writes.
func (e *Engine) Insert(collection string, body map[string]any) (wal.LSN, error) {
	start := time.Now()
	if err := e.requireOpen(); err != nil {
		return 0, Classify(err)
	}
	if err := e.requireAuthority(); err != nil {
		return 0, Classify(err)
	}
	if err := e.requireWriteAdmission(); err != nil {
		return 0, Classify(err)
	}
	sc, err := e.schemaFor(collection)
	if err != nil {
		return 0, Classify(err)
	}
	lsn, err := e.writer.Insert(sc, body)
	if err != nil {
		return 0, Classify(err)
	}
	e.logSlowOp(collection, "insert", lsn, "", start)
	return lsn, nil
}

// Update validates and replaces an existing document's body.
func (e *Engine) Update(collection, id string, body map[string]any) (wal.LSN, error) {
	start := time.Now()
	if err := e.requireOpen(); err != nil {
		return 0, Classify(err)
	}
	if err := e.requireAuthority(); err != nil {
		return 0, Classify(err)
	}
	if err := e.requireWriteAdmission(); err != nil {
		return 0, Classify(err)
	}
	sc, err := e.schemaFor(collection)
	if err != nil {
		return 0, Classify(err)
	}
	lsn, err := e.writer.Update(sc, id, body)
	if err != nil {
		return 0, Classify(err)
	}
	e.logSlowOp(collection, "update", lsn, "", start)
	return lsn, nil
}

// Delete tombstones an existing document.
func (e *Engine) Delete(collection, id string) (wal.LSN, error) {
	start := time.Now()
	if err := e.requireOpen(); err != nil {
		return 0, Classify(err)
	}
	if err := e.requireAuthority(); err != nil {
		return 0, Classify(err)
	}
	if err := e.requireWriteAdmission(); err != nil {
		return 0, Classify(err)
	}
	if _, err := e.schemaFor(collection); err != nil {
		return 0, Classify(err)
	}
	lsn, err := e.writer.Delete(collection, id)
	if err != nil {
		return 0, Classify(err)
	}
	e.logSlowOp(collection, "delete", lsn, "", start)
	return lsn, nil
}

// FindOptions bundles a read's snapshot and row-level-security predicate.
// A zero Snapshot means "begin one for this call and release it before
// returning."
type FindOptions struct {
	Snapshot mvcc.CommitTS
	RLS      rls.Predicate
	OrderBy  *executor.OrderSpec
}

// Find runs filter against collection and returns every visible document
// the planner's selected access path and the RLS predicate both admit.
func (e *Engine) Find(collection string, filter planner.Node, limit *int, opts FindOptions) ([]map[string]any, error) {
	start := time.Now()
	if err := e.requireOpen(); err != nil {
		return nil, Classify(err)
	}

	release, ok := e.admit.AcquireQuery()
	if !ok {
		return nil, Classify(fmt.Errorf("%w: concurrent query limit reached", util.ErrAdmissionRejected))
	}
	defer release()

	sc, err := e.schemaFor(collection)
	if err != nil {
		return nil, Classify(err)
	}
	plan, err := planner.Select(sc, filter, e.admit.ClampLimit(limit))
	if err != nil {
		return nil, Classify(err)
	}

	predicate := opts.RLS
	if predicate == nil {
		predicate = rls.AllowAll
	}

	snap := opts.Snapshot
	owned := snap == 0
	if owned {
		snap = e.store.Snapshots().Begin()
		defer e.store.Snapshots().Release(snap)
	}

	ctx, cancel := e.admit.QueryContext(context.Background())
	defer cancel()

	docs, err := executor.Execute(e.store, plan, executor.Options{Ctx: ctx, Snapshot: snap, RLS: predicate, OrderBy: opts.OrderBy})
	if err != nil {
		if ctx.Err() != nil {
			return nil, Classify(fmt.Errorf("%w: %v", util.ErrQueryTimeout, err))
		}
		return nil, Classify(err)
	}
	e.logSlowOp(collection, "find", 0, plan.Access.String(), start)
	return docs, nil
}

// FindByID is the primary-lookup special case of Find.
func (e *Engine) FindByID(collection, id string, opts FindOptions) (map[string]any, bool, error) {
	docs, err := e.Find(collection, &planner.Leaf{FieldPath: "_id", Op: planner.OpEq, Literal: id}, intPtr(1), opts)
	if err != nil {
		return nil, false, err
	}
	if len(docs) == 0 {
		return nil, false, nil
	}
	return docs[0], true, nil
}

// Explain returns the stable, pure-text rendering of the plan filter would
// select against collection, without executing it.
func (e *Engine) Explain(collection string, filter planner.Node, limit *int) (string, error) {
	sc, err := e.schemaFor(collection)
	if err != nil {
		return "", Classify(err)
	}
	plan, err := planner.Select(sc, filter, limit)
	if err != nil {
		return "", Classify(err)
	}
	return plan.Explain(), nil
}

// BeginSnapshot pins the current committed watermark for a caller that
// wants to hold a read-stable view across multiple Find calls. The caller
// must ReleaseSnapshot when done.
func (e *Engine) BeginSnapshot() mvcc.CommitTS {
	return e.store.Snapshots().Begin()
}

// ReleaseSnapshot unpins a snapshot obtained from BeginSnapshot.
func (e *Engine) ReleaseSnapshot(ts mvcc.CommitTS) {
	e.store.Snapshots().Release(ts)
}

// ApplyWAL applies an already-framed WAL record directly to the MVCC
// store, bypassing Insert/Update/Delete's validation and precondition
// checks. It is the same apply step replication.Follower performs on its
// store after appending a shipped record: the record was already accepted
// and durably appended upstream, so only the apply step remains. No CLI
// subcommand calls it.
func (e *Engine) ApplyWAL(lsn wal.LSN, kind wal.Kind, payload []byte) error {
	if err := e.requireOpen(); err != nil {
		return Classify(err)
	}
	if err := e.store.Apply(lsn, kind, payload); err != nil {
		return Classify(err)
	}
	return nil
}

// MarkerStatus reports this node's current replication role, generation,
// believed authority, and durable lsn.
type MarkerStatus struct {
	Role            replication.Role
	Generation      uint64
	AuthorityNodeID string
	DurableLSN      wal.LSN
}

// MarkerStatus implements the operator surface's marker_status operation.
func (e *Engine) MarkerStatus() MarkerStatus {
	return MarkerStatus{
		Role:            e.node.Role(),
		Generation:      e.node.Generation(),
		AuthorityNodeID: e.node.AuthorityNodeID(),
		DurableLSN:      e.wal.CurrentLSN(),
	}
}

// RequestPromotion drives the five-state promotion protocol against a
// remote authority and target over plain TCP, implementing the operator
// surface's request_promotion operation. It does not touch this engine's
// own state unless this engine's own admin listener is one of the two
// addresses.
func (e *Engine) RequestPromotion(authorityAddr, targetAddr string, onState func(replication.PromotionState)) (replication.PromotionState, error) {
	transport := replication.NewTCPTransport(0)
	promoter := replication.NewPromoter(transport, e.audit, onState)
	return promoter.Promote(authorityAddr, targetAddr)
}

// Node exposes the engine's replication node for callers (the admin RPC
// listener, the replication shipper/follower loops) that need direct
// access to role transitions.
func (e *Engine) Node() *replication.Node { return e.node }

// WAL exposes the engine's WAL for callers that need to ship or tail it
// directly (the replication shipper/follower loops).
func (e *Engine) WAL() *wal.WAL { return e.wal }

// Store exposes the engine's MVCC store for callers that apply shipped
// records directly (replication.Follower).
func (e *Engine) Store() *mvcc.Store { return e.store }

// Audit exposes the engine's audit logger for callers (the admin RPC
// listener) that need to log replication/promotion events through the same
// sink the engine itself writes its boot event to.
func (e *Engine) Audit() *replication.AuditLogger { return e.audit }

// Drain pauses the write path and reports the durable lsn at the moment it
// stopped accepting new writes. It matches replication.DrainFunc's shape so
// it can be passed directly to replication.NewAdminServer. Resume undoes it.
// It does not wait for a write already past the requireAuthority check to
// finish; the promotion driver's own validate step against the returned lsn
// is what makes that race harmless.
func (e *Engine) Drain() wal.LSN {
	e.draining.Store(true)
	return e.wal.CurrentLSN()
}

// Resume reverses a Drain that did not end in a completed promotion, so the
// still-authority node can accept writes again.
func (e *Engine) Resume() {
	e.draining.Store(false)
}

// Close releases every subsystem the engine opened. It is safe to call
// once; a second call is a no-op.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for _, name := range e.registry.Collections() {
		if err := e.store.CloseCollection(name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := e.wal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.audit.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func intPtr(n int) *int { return &n }
