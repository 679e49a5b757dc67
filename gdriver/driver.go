package gdriver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/trace"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gstore"
	"github.com/gordian-engine/glight/gtrie"
	"github.com/gordian-engine/glight/internal/gchan"
	"github.com/gordian-engine/glight/internal/glog"
	"github.com/gordian-engine/glight/storagesync"
)

// Config is the configuration for a [*Driver].
type Config struct {
	Mode Mode

	Validator storagesync.BlockValidator
	BridgeID  uint64

	// The parachain whose heads are proven in relaychain state.
	// Only used in parachain mode.
	ParaID gchain.ParaID

	// Initial synchronizer counters.
	// NextParaHeaderNumber is ignored in solochain mode.
	Counters storagesync.Counters

	// The storage image that blocks are applied to.
	// A new empty image is used if nil.
	// When StateStore is set, the image must match the stored state.
	Storage *gtrie.Storage

	// Optional persistence.
	StateStore    gstore.StateStore
	ProgressStore gstore.ProgressStore
}

// Driver serializes all access to one storage synchronizer.
//
// Methods on Driver are safe for concurrent use.
type Driver struct {
	log *slog.Logger

	mode          Mode
	parasHeadsKey []byte

	sync    storagesync.StorageSynchronizer
	storage *gtrie.Storage

	stateStore    gstore.StateStore
	progressStore gstore.ProgressStore

	syncHeaderRequests     chan syncHeaderRequest
	syncParaHeaderRequests chan syncParaHeaderRequest
	syncCombinedRequests   chan syncCombinedRequest
	dispatchRequests       chan dispatchRequest
	statusRequests         chan chan Status

	done chan struct{}
}

type syncHeaderRequest struct {
	Headers []gchain.HeaderToSync
	Change  *gchain.AuthoritySetChange
	Resp    chan syncResponse
}

type syncParaHeaderRequest struct {
	Headers []gchain.Header
	Proof   gchain.StorageProof
	Resp    chan syncResponse
}

type syncResponse struct {
	SyncedTo gchain.BlockNumber
	Err      error
}

type syncCombinedRequest struct {
	Req  gchain.SyncCombinedHeadersReq
	Resp chan combinedResponse
}

type combinedResponse struct {
	Result CombinedResult
	Err    error
}

type dispatchRequest struct {
	Blocks []gchain.BlockHeaderWithChanges
	Resp   chan dispatchResponse
}

type dispatchResponse struct {
	Applied int
	Err     error
}

// CombinedResult is the outcome of [*Driver.SyncCombinedHeaders].
type CombinedResult struct {
	RelaychainSyncedTo gchain.BlockNumber

	// The last parachain header number,
	// or the last previously accepted one when the request carried no parachain headers.
	// Always zero in solochain mode.
	ParachainSyncedTo gchain.BlockNumber
}

// Status is a point-in-time view of a [*Driver].
type Status struct {
	Mode             Mode
	Counters         storagesync.Counters
	QueuedStateRoots []gchain.Hash
	StateRoot        gchain.Hash
}

// NewDriver returns a new Driver whose kernel runs until ctx is canceled.
func NewDriver(ctx context.Context, log *slog.Logger, cfg Config) (*Driver, error) {
	if cfg.Validator == nil {
		return nil, errors.New("validator is required")
	}

	d := &Driver{
		log: log,

		mode: cfg.Mode,

		storage: cfg.Storage,

		stateStore:    cfg.StateStore,
		progressStore: cfg.ProgressStore,

		syncHeaderRequests:     make(chan syncHeaderRequest),
		syncParaHeaderRequests: make(chan syncParaHeaderRequest),
		syncCombinedRequests:   make(chan syncCombinedRequest),
		dispatchRequests:       make(chan dispatchRequest),
		statusRequests:         make(chan chan Status),

		done: make(chan struct{}),
	}

	if d.storage == nil {
		d.storage = gtrie.New()
	}

	c := cfg.Counters
	switch cfg.Mode {
	case ModeSolochain:
		d.sync = storagesync.NewSolochainSynchronizer(
			log.With("sys", "solochain"),
			cfg.Validator, cfg.BridgeID,
			c.NextHeaderNumber, c.NextBlockNumber,
		)
	case ModeParachain:
		d.parasHeadsKey = gchain.ParasHeadsKey(cfg.ParaID)
		d.sync = storagesync.NewParachainSynchronizer(
			log.With("sys", "parachain"),
			cfg.Validator, cfg.BridgeID,
			c.NextHeaderNumber, c.NextParaHeaderNumber, c.NextBlockNumber,
		)
	default:
		return nil, fmt.Errorf("invalid mode %s", cfg.Mode)
	}

	go d.kernel(ctx)

	return d, nil
}

// Wait blocks until all background work for d is finished.
// Initiate a clean shutdown by canceling the context passed to [NewDriver].
func (d *Driver) Wait() {
	<-d.done
}

func (d *Driver) kernel(ctx context.Context) {
	defer close(d.done)

	ctx, task := trace.NewTask(ctx, "gdriver.Driver.kernel")
	defer task.End()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("Shutting down due to context cancellation", "cause", context.Cause(ctx))
			return

		case req := <-d.syncHeaderRequests:
			d.handleSyncHeader(ctx, req)

		case req := <-d.syncParaHeaderRequests:
			d.handleSyncParaHeader(ctx, req)

		case req := <-d.syncCombinedRequests:
			d.handleSyncCombined(ctx, req)

		case req := <-d.dispatchRequests:
			d.handleDispatch(ctx, req)

		case resp := <-d.statusRequests:
			d.handleStatus(ctx, resp)
		}
	}
}

func (d *Driver) handleSyncHeader(ctx context.Context, req syncHeaderRequest) {
	defer trace.StartRegion(ctx, "handleSyncHeader").End()

	before := d.sync.Counters()
	n, err := d.syncHeader(req.Headers, req.Change)
	if err == nil {
		err = d.saveCounters(ctx, before)
	}

	// Response channel is one-buffered, so don't select here.
	req.Resp <- syncResponse{SyncedTo: n, Err: err}
}

func (d *Driver) syncHeader(headers []gchain.HeaderToSync, change *gchain.AuthoritySetChange) (gchain.BlockNumber, error) {
	n, err := d.sync.SyncHeader(headers, change)
	if err != nil {
		d.log.Info(
			"Rejected header sync",
			"n_headers", len(headers),
			"next_header", d.sync.Counters().NextHeaderNumber,
			"err", err,
		)
		return 0, err
	}

	glog.N(d.log, n).Info("Synced headers", "n_headers", len(headers))
	return n, nil
}

func (d *Driver) handleSyncParaHeader(ctx context.Context, req syncParaHeaderRequest) {
	defer trace.StartRegion(ctx, "handleSyncParaHeader").End()

	before := d.sync.Counters()
	n, err := d.syncParaHeader(req.Headers, req.Proof)
	if err == nil {
		err = d.saveCounters(ctx, before)
	}

	req.Resp <- syncResponse{SyncedTo: n, Err: err}
}

func (d *Driver) syncParaHeader(headers []gchain.Header, proof gchain.StorageProof) (gchain.BlockNumber, error) {
	// In solochain mode the key is nil,
	// and the synchronizer rejects the request regardless.
	n, err := d.sync.SyncParachainHeader(headers, proof, d.parasHeadsKey)
	if err != nil {
		d.log.Info(
			"Rejected parachain header sync",
			"n_headers", len(headers),
			"next_para_header", d.sync.Counters().NextParaHeaderNumber,
			"err", err,
		)
		return 0, err
	}

	glog.N(d.log, n).Info("Synced parachain headers", "n_headers", len(headers))
	return n, nil
}

func (d *Driver) handleSyncCombined(ctx context.Context, req syncCombinedRequest) {
	defer trace.StartRegion(ctx, "handleSyncCombined").End()

	before := d.sync.Counters()
	var resp combinedResponse
	resp.Result, resp.Err = d.syncCombined(req.Req)

	if err := d.saveCounters(ctx, before); err != nil {
		resp.Err = errors.Join(resp.Err, err)
	}

	req.Resp <- resp
}

func (d *Driver) syncCombined(req gchain.SyncCombinedHeadersReq) (CombinedResult, error) {
	var res CombinedResult

	n, err := d.syncHeader(req.RelaychainHeaders, req.AuthoritySetChange)
	if err != nil {
		return res, fmt.Errorf("relaychain headers: %w", err)
	}
	res.RelaychainSyncedTo = n

	if len(req.ParachainHeaders) == 0 {
		if next := d.sync.Counters().NextParaHeaderNumber; next > 0 {
			res.ParachainSyncedTo = next - 1
		}
		return res, nil
	}

	// The relaychain headers stay accepted even if this fails.
	n, err = d.syncParaHeader(req.ParachainHeaders, req.Proof)
	if err != nil {
		return res, fmt.Errorf("parachain headers: %w", err)
	}
	res.ParachainSyncedTo = n

	return res, nil
}

func (d *Driver) handleDispatch(ctx context.Context, req dispatchRequest) {
	defer trace.StartRegion(ctx, "handleDispatch").End()

	before := d.sync.Counters()
	var resp dispatchResponse
	for i := range req.Blocks {
		b := &req.Blocks[i]
		log := glog.N(d.log, b.BlockHeader.Number)

		if err := d.sync.FeedBlock(b, d.storage); err != nil {
			glog.NE(d.log, b.BlockHeader.Number, err).Info("Rejected block")
			resp.Err = err
			break
		}
		resp.Applied++

		if d.stateStore != nil {
			if err := d.stateStore.SaveStateChanges(
				ctx, b.BlockHeader.Number, d.storage.Root(), b.StorageChanges,
			); err != nil {
				log.Warn("Failed to persist applied block", "err", err)
				resp.Err = PersistError{Number: b.BlockHeader.Number, Err: err}
				break
			}
		}

		log.Debug("Applied block", "state_root", d.storage.Root())
	}

	if resp.Applied > 0 {
		d.log.Info(
			"Dispatched blocks",
			"applied", resp.Applied, "requested", len(req.Blocks),
			"next_block", d.sync.Counters().NextBlockNumber,
		)
	}

	if err := d.saveCounters(ctx, before); err != nil {
		resp.Err = errors.Join(resp.Err, err)
	}

	req.Resp <- resp
}

func (d *Driver) handleStatus(ctx context.Context, resp chan Status) {
	defer trace.StartRegion(ctx, "handleStatus").End()

	resp <- Status{
		Mode:             d.mode,
		Counters:         d.sync.Counters(),
		QueuedStateRoots: d.sync.QueuedStateRoots(),
		StateRoot:        d.storage.Root(),
	}
}

// saveCounters persists the current counters if they differ from before.
func (d *Driver) saveCounters(ctx context.Context, before storagesync.Counters) error {
	if d.progressStore == nil {
		return nil
	}

	c := d.sync.Counters()
	if c == before {
		return nil
	}

	if err := d.progressStore.SaveCounters(ctx, gstore.Counters{
		NextHeaderNumber:     c.NextHeaderNumber,
		NextParaHeaderNumber: c.NextParaHeaderNumber,
		NextBlockNumber:      c.NextBlockNumber,
	}); err != nil {
		d.log.Warn("Failed to save counters", "err", err)
		return fmt.Errorf("failed to save counters: %w", err)
	}
	return nil
}

// SyncHeader validates and accepts a batch of relaychain (or solochain) headers.
func (d *Driver) SyncHeader(
	ctx context.Context, headers []gchain.HeaderToSync, change *gchain.AuthoritySetChange,
) (gchain.BlockNumber, error) {
	req := syncHeaderRequest{
		Headers: headers,
		Change:  change,
		Resp:    make(chan syncResponse, 1),
	}

	resp, ok := gchan.ReqResp(
		ctx, d.log,
		d.syncHeaderRequests, req,
		req.Resp,
		"SyncHeader",
	)
	if !ok {
		return 0, context.Cause(ctx)
	}
	return resp.SyncedTo, resp.Err
}

// SyncParachainHeader validates and accepts a batch of parachain headers,
// proven under the configured parachain's heads key.
func (d *Driver) SyncParachainHeader(
	ctx context.Context, headers []gchain.Header, proof gchain.StorageProof,
) (gchain.BlockNumber, error) {
	req := syncParaHeaderRequest{
		Headers: headers,
		Proof:   proof,
		Resp:    make(chan syncResponse, 1),
	}

	resp, ok := gchan.ReqResp(
		ctx, d.log,
		d.syncParaHeaderRequests, req,
		req.Resp,
		"SyncParachainHeader",
	)
	if !ok {
		return 0, context.Cause(ctx)
	}
	return resp.SyncedTo, resp.Err
}

// SyncCombinedHeaders syncs the relaychain headers of r,
// and then its parachain headers if it has any.
// Both steps run without any other request in between.
//
// If the parachain step fails, the returned result still reports
// the accepted relaychain headers alongside the error.
func (d *Driver) SyncCombinedHeaders(
	ctx context.Context, r gchain.SyncCombinedHeadersReq,
) (CombinedResult, error) {
	req := syncCombinedRequest{
		Req:  r,
		Resp: make(chan combinedResponse, 1),
	}

	resp, ok := gchan.ReqResp(
		ctx, d.log,
		d.syncCombinedRequests, req,
		req.Resp,
		"SyncCombinedHeaders",
	)
	if !ok {
		return CombinedResult{}, context.Cause(ctx)
	}
	return resp.Result, resp.Err
}

// DispatchBlocks feeds blocks in order, stopping at the first failure.
// It returns how many blocks were applied to the storage image;
// with a [PersistError], that count includes the block that failed to persist.
func (d *Driver) DispatchBlocks(
	ctx context.Context, blocks []gchain.BlockHeaderWithChanges,
) (applied int, err error) {
	req := dispatchRequest{
		Blocks: blocks,
		Resp:   make(chan dispatchResponse, 1),
	}

	resp, ok := gchan.ReqResp(
		ctx, d.log,
		d.dispatchRequests, req,
		req.Resp,
		"DispatchBlocks",
	)
	if !ok {
		return 0, context.Cause(ctx)
	}
	return resp.Applied, resp.Err
}

// Status returns a snapshot of d's progress.
// The second result is false if ctx was canceled first.
func (d *Driver) Status(ctx context.Context) (Status, bool) {
	resp := make(chan Status, 1)
	return gchan.ReqResp(
		ctx, d.log,
		d.statusRequests, resp,
		resp,
		"Status",
	)
}

// Counters returns the synchronizer's counters.
// The second result is false if ctx was canceled first.
func (d *Driver) Counters(ctx context.Context) (storagesync.Counters, bool) {
	s, ok := d.Status(ctx)
	return s.Counters, ok
}
