// Package ghttp serves a read-only JSON view of a synchronized state store.
package ghttp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gdriver"
	"github.com/gordian-engine/glight/gstore"
	"github.com/gordian-engine/glight/gtrie"
	"github.com/gordian-engine/glight/internal/glog"
	"github.com/gorilla/mux"
)

type HTTPServer struct {
	done chan struct{}
}

type HTTPServerConfig struct {
	Listener net.Listener

	StateStore    gstore.StateStore
	ProgressStore gstore.ProgressStore
}

func NewHTTPServer(ctx context.Context, log *slog.Logger, cfg HTTPServerConfig) *HTTPServer {
	srv := &http.Server{
		Handler: newMux(log, cfg),

		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	h := &HTTPServer{
		done: make(chan struct{}),
	}
	go h.serve(log, cfg.Listener, srv)
	go h.waitForShutdown(ctx, srv)

	return h
}

func (h *HTTPServer) Wait() {
	<-h.done
}

func (h *HTTPServer) waitForShutdown(ctx context.Context, srv *http.Server) {
	select {
	case <-h.done:
		return
	case <-ctx.Done():
		_ = srv.Close()
	}
}

func (h *HTTPServer) serve(log *slog.Logger, ln net.Listener, srv *http.Server) {
	defer close(h.done)

	if err := srv.Serve(ln); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
			log.Info("HTTP server shutting down")
		} else {
			log.Info("HTTP server shutting down due to error", "err", err)
		}
	}
}

func newMux(log *slog.Logger, cfg HTTPServerConfig) http.Handler {
	r := mux.NewRouter()

	img := &imageCache{store: cfg.StateStore}

	r.HandleFunc("/v1/counters", handleCounters(log, cfg)).Methods("GET")
	r.HandleFunc("/v1/state", handleState(log, img)).Methods("GET")

	r.HandleFunc("/v1/storage/{key:[0-9a-fA-F]*}", handleStorageGet(log, img)).Methods("GET")
	r.HandleFunc("/v1/storage/child/{child:[0-9a-fA-F]+}/{key:[0-9a-fA-F]*}", handleChildStorageGet(log, img)).Methods("GET")

	return r
}

// imageCache holds the storage image rebuilt from a state store,
// rebuilding it only when the store's last block or root changes.
//
// The cached image is shared by concurrent handlers,
// which must only read from it.
type imageCache struct {
	store gstore.StateStore

	mu      sync.Mutex
	storage *gtrie.Storage
	n       gchain.BlockNumber
}

func (c *imageCache) Load(ctx context.Context) (*gtrie.Storage, gchain.BlockNumber, error) {
	n, root, err := c.store.LoadStateRoot(ctx)
	if err != nil {
		return nil, 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.storage != nil && c.n == n && c.storage.Root() == root {
		return c.storage, c.n, nil
	}

	storage, loadedN, err := gdriver.LoadStorage(ctx, c.store)
	if err != nil {
		return nil, 0, err
	}
	c.storage, c.n = storage, loadedN
	return storage, loadedN, nil
}

// Counters is the JSON body of GET /v1/counters.
type Counters struct {
	NextHeaderNumber     gchain.BlockNumber
	NextParaHeaderNumber gchain.BlockNumber
	NextBlockNumber      gchain.BlockNumber
}

// State is the JSON body of GET /v1/state.
type State struct {
	BlockNumber gchain.BlockNumber
	StateRoot   string

	MainPairs  int
	ChildTries int
}

// StorageValue is the JSON body of the storage lookup routes.
type StorageValue struct {
	BlockNumber gchain.BlockNumber

	// Hex-encoded.
	Value string
}

func handleCounters(log *slog.Logger, cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	ps := cfg.ProgressStore
	return func(w http.ResponseWriter, req *http.Request) {
		c, err := ps.LoadCounters(req.Context())
		if err != nil {
			writeLoadError(w, "failed to load counters", err)
			return
		}

		resp := Counters{
			NextHeaderNumber:     c.NextHeaderNumber,
			NextParaHeaderNumber: c.NextParaHeaderNumber,
			NextBlockNumber:      c.NextBlockNumber,
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warn("Failed to marshal counters", "err", err)
			return
		}
	}
}

func handleState(log *slog.Logger, img *imageCache) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		storage, n, err := img.Load(req.Context())
		if err != nil {
			writeLoadError(w, "failed to load state", err)
			return
		}

		resp := State{
			BlockNumber: n,
			StateRoot:   storage.Root().String(),

			MainPairs:  len(storage.Pairs()),
			ChildTries: len(storage.ChildKeys()),
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warn("Failed to marshal state", "err", err)
			return
		}
	}
}

func handleStorageGet(log *slog.Logger, img *imageCache) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		key, err := hex.DecodeString(mux.Vars(req)["key"])
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid key: %v", err), http.StatusBadRequest)
			return
		}

		storage, n, err := img.Load(req.Context())
		if err != nil {
			writeLoadError(w, "failed to load state", err)
			return
		}

		val, ok := storage.Get(key)
		if !ok {
			log.Debug("Storage key not found", "key", glog.Hex(key))
			http.Error(w, "key not found", http.StatusNotFound)
			return
		}

		writeStorageValue(log, w, n, val)
	}
}

func handleChildStorageGet(log *slog.Logger, img *imageCache) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		vars := mux.Vars(req)
		child, err := hex.DecodeString(vars["child"])
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid child storage key: %v", err), http.StatusBadRequest)
			return
		}
		key, err := hex.DecodeString(vars["key"])
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid key: %v", err), http.StatusBadRequest)
			return
		}

		storage, n, err := img.Load(req.Context())
		if err != nil {
			writeLoadError(w, "failed to load state", err)
			return
		}

		val, ok := storage.ChildGet(child, key)
		if !ok {
			log.Debug(
				"Child storage key not found",
				"child", glog.Hex(child), "key", glog.Hex(key),
			)
			http.Error(w, "key not found", http.StatusNotFound)
			return
		}

		writeStorageValue(log, w, n, val)
	}
}

func writeStorageValue(log *slog.Logger, w http.ResponseWriter, n gchain.BlockNumber, val []byte) {
	resp := StorageValue{
		BlockNumber: n,
		Value:       hex.EncodeToString(val),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Warn("Failed to marshal storage value", "err", err)
	}
}

// writeLoadError reports an empty store as not found
// and any other failure as an internal error.
func writeLoadError(w http.ResponseWriter, msg string, err error) {
	code := http.StatusInternalServerError
	if gstore.IsUninitialized(err) {
		code = http.StatusNotFound
	}
	http.Error(w, fmt.Sprintf("%s: %v", msg, err), code)
}
