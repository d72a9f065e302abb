// Package api serves the batch ledger over HTTP and accepts new batches and
// verification requests.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/fatih/color"
	"github.com/gorilla/mux"
	"github.com/liamzebedee/noirbatch-go/core"
	"github.com/liamzebedee/noirbatch-go/core/batching"
	"github.com/liamzebedee/noirbatch-go/core/semaphore"
	"github.com/liamzebedee/noirbatch-go/core/store"
)

type Server struct {
	router *mux.Router
	log    *log.Logger

	host        string
	port        int
	environment string

	db       *sql.DB
	batcher  *batching.Batcher
	verifier batching.Verifier

	// Batches are run one at a time; each is a long chain of prover calls.
	batchMu sync.Mutex
}

type BatchRequest struct {
	Proofs []semaphore.Proof `json:"proofs"`
	Keccak bool              `json:"keccak"`
}

type VerifyRequest struct {
	ProofPath string `json:"proof_path"`
	VKPath    string `json:"vk_path"`
	Keccak    bool   `json:"keccak"`
}

type VerifyResponse struct {
	Valid bool `json:"valid"`
}

// NewServer picks the listen host from ENV (dev, test or live), defaulting to
// dev which only listens on localhost.
func NewServer(db *sql.DB, batcher *batching.Batcher, verifier batching.Verifier, port int) (*Server, error) {
	logger := core.NewLogger("api", "")
	environment := os.Getenv("ENV")
	if environment == "" {
		environment = "dev"
	}
	host, ok := map[string]string{
		"dev":  "127.0.0.1",
		"test": "0.0.0.0",
		"live": "0.0.0.0",
	}[environment]
	if !ok {
		return nil, fmt.Errorf("invalid environment %s, must be one of (dev, test, live)", environment)
	}
	logger.Println("Environment:", environment)

	s := &Server{
		router:      mux.NewRouter(),
		log:         logger,
		host:        host,
		port:        port,
		environment: environment,
		db:          db,
		batcher:     batcher,
		verifier:    verifier,
	}

	s.router.Use(LoggingMiddleware(logger))
	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	s.router.HandleFunc("/batches/", s.getBatches).Methods(http.MethodGet)
	s.router.HandleFunc("/batches/{id}", s.getBatch).Methods(http.MethodGet)
	s.router.HandleFunc("/batches", s.createBatch).Methods(http.MethodPost)
	s.router.HandleFunc("/verify", s.verify).Methods(http.MethodPost)
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	listenAddr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.log.Printf("Listening on http://%s", listenAddr)
	return http.ListenAndServe(listenAddr, s.router)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		ReturnErrorJSON(w, "database unavailable", http.StatusInternalServerError)
		return
	}
	ReturnJSON(w, "OK", http.StatusOK)
}

func (s *Server) getBatches(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			ReturnErrorJSON(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	batches, err := store.ListBatches(s.db, limit)
	if err != nil {
		s.log.Printf("listing batches: %s\n", err)
		ReturnErrorJSON(w, "listing batches", http.StatusInternalServerError)
		return
	}
	ReturnJSON(w, batches, http.StatusOK)
}

func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	batch, err := store.GetBatch(s.db, id)
	if errors.Is(err, store.ErrBatchNotFound) {
		ReturnErrorJSON(w, "batch not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Printf("loading batch %s: %s\n", id, err)
		ReturnErrorJSON(w, "loading batch", http.StatusInternalServerError)
		return
	}
	ReturnJSON(w, batch, http.StatusOK)
}

// createBatch runs a batch synchronously. Resubmitting a batch that already
// completed returns the recorded result, unless its root proof has since been
// removed from disk.
func (s *Server) createBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ReturnErrorJSON(w, "decoding request", http.StatusBadRequest)
		return
	}

	batcher := s.batcher.WithKeccak(req.Keccak)
	id, err := batching.BatchID(req.Proofs, batcher.Config().Keys, req.Keccak)
	if err != nil {
		ReturnErrorJSON(w, "hashing batch", http.StatusInternalServerError)
		return
	}

	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	if existing, err := store.GetBatch(s.db, id); err == nil && existing.Status == store.StatusComplete {
		if _, err := os.Stat(existing.ProofPath); err == nil {
			ReturnJSON(w, existing, http.StatusOK)
			return
		}
		s.log.Printf("batch %s root proof is gone, proving again\n", color.HiYellowString(store.ShortID(id)))
	}

	s.log.Printf("running batch %s of %d proofs\n", color.HiYellowString(store.ShortID(id)), len(req.Proofs))
	result, err := batcher.Batch(r.Context(), req.Proofs)
	if err != nil {
		var cfgErr *batching.ConfigurationError
		if errors.As(err, &cfgErr) {
			ReturnErrorJSON(w, cfgErr.Error(), http.StatusBadRequest)
			return
		}
		depth := 0
		if len(req.Proofs) > 0 {
			depth = req.Proofs[0].MerkleTreeDepth
		}
		if markErr := store.MarkBatchFailed(s.db, id, len(req.Proofs), depth, req.Keccak, err); markErr != nil {
			s.log.Printf("recording failed batch: %s\n", markErr)
		}
		ReturnErrorJSON(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := store.SaveBatch(s.db, id, result); err != nil {
		s.log.Printf("saving batch: %s\n", err)
		ReturnErrorJSON(w, "saving batch", http.StatusInternalServerError)
		return
	}
	batch, err := store.GetBatch(s.db, id)
	if err != nil {
		ReturnErrorJSON(w, "loading batch", http.StatusInternalServerError)
		return
	}
	ReturnJSON(w, batch, http.StatusCreated)
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ReturnErrorJSON(w, "decoding request", http.StatusBadRequest)
		return
	}
	if req.ProofPath == "" || req.VKPath == "" {
		ReturnErrorJSON(w, "proof_path and vk_path are required", http.StatusBadRequest)
		return
	}

	valid, err := batching.Verify(r.Context(), s.verifier, req.ProofPath, req.VKPath, req.Keccak)
	if err != nil {
		s.log.Printf("verifier: %s\n", err)
		ReturnErrorJSON(w, err.Error(), http.StatusInternalServerError)
		return
	}
	ReturnJSON(w, VerifyResponse{Valid: valid}, http.StatusOK)
}
