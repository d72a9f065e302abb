package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/liamzebedee/noirbatch-go/core"
	"github.com/liamzebedee/noirbatch-go/core/batching"
	"github.com/liamzebedee/noirbatch-go/core/bb"
	"github.com/liamzebedee/noirbatch-go/core/nargo"
	"github.com/liamzebedee/noirbatch-go/core/semaphore"
	"github.com/liamzebedee/noirbatch-go/core/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWitness struct{}

func (stubWitness) GenerateWitness(ctx context.Context, c nargo.Circuit, inputs any, witnessPath string) error {
	return os.WriteFile(witnessPath, []byte("w"), 0644)
}

type stubProver struct {
	calls int
	fail  bool
}

func (p *stubProver) Prove(ctx context.Context, args bb.ProveArgs) error {
	p.calls++
	if p.fail {
		return &bb.ProverInvocationError{Args: args.Args(), ExitCode: 1, Stderr: "out of memory"}
	}
	fields, _ := json.Marshal([]core.Field{core.NewField(uint64(p.calls)), core.NewField(9)})
	if err := os.WriteFile(filepath.Join(args.OutDir, bb.ProofFieldsFile), fields, 0644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(args.OutDir, bb.ProofFile), []byte("ok"), 0644)
}

type stubVerifier struct{}

func (stubVerifier) Verify(ctx context.Context, args bb.VerifyArgs) (bool, error) {
	data, err := os.ReadFile(args.Proof)
	if err != nil {
		return false, &bb.VerifierInvocationError{Args: args.Args(), Err: err}
	}
	return string(data) == "ok", nil
}

func testProofs(n int) []semaphore.Proof {
	proofs := make([]semaphore.Proof, n)
	for i := range proofs {
		proofs[i] = semaphore.Proof{
			MerkleTreeDepth: 4,
			MerkleTreeRoot:  "1",
			Nullifier:       fmt.Sprintf("%d", i+10),
			Message:         "2",
			Scope:           "3",
			ProofBytes:      make([]byte, 64),
		}
	}
	return proofs
}

func newTestServer(t *testing.T) (*Server, *stubProver) {
	db, err := store.OpenDB(filepath.Join(t.TempDir(), "api.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	leaves, nodes := batching.CircuitsFromDir("/circuits")
	cfg := batching.DefaultConfig()
	cfg.LeavesCircuit = leaves
	cfg.NodesCircuit = nodes
	cfg.WorkDir = t.TempDir()
	cfg.Keys = batching.Keys{
		Semaphore: []core.Field{core.NewField(1)},
		Leaves:    []core.Field{core.NewField(2)},
		Nodes:     []core.Field{core.NewField(3)},
	}

	prover := &stubProver{}
	t.Setenv("ENV", "test")
	s, err := NewServer(db, batching.NewBatcher(cfg, stubWitness{}, prover), stubVerifier{}, 0)
	require.NoError(t, err)
	return s, prover
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidEnvironment(t *testing.T) {
	t.Setenv("ENV", "staging")
	_, err := NewServer(nil, nil, nil, 0)
	assert.Error(t, err)
}

func TestCreateAndGetBatch(t *testing.T) {
	assert := assert.New(t)
	s, prover := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/batches", BatchRequest{Proofs: testProofs(3), Keccak: true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created store.Batch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(3, created.NumProofs)
	assert.Equal(2, created.Layers)
	assert.True(created.Keccak)
	assert.True(created.SelfPaired)
	assert.Len(created.Units, 3)
	assert.Equal(3, prover.calls)

	rec = do(t, s, http.MethodGet, "/batches/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched store.Batch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(created.ID, fetched.ID)
	assert.Equal(created.ProofPath, fetched.ProofPath)

	// Resubmitting is served from the ledger.
	rec = do(t, s, http.MethodPost, "/batches", BatchRequest{Proofs: testProofs(3), Keccak: true})
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal(3, prover.calls)

	rec = do(t, s, http.MethodGet, "/batches/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.Batch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(list, 1)

	rec = do(t, s, http.MethodPost, "/verify", VerifyRequest{ProofPath: created.ProofPath, VKPath: "/keys/nodes/vk", Keccak: true})
	require.Equal(t, http.StatusOK, rec.Code)
	var verified VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verified))
	assert.True(verified.Valid)
}

func TestCreateBatchReprovesWhenRootProofIsGone(t *testing.T) {
	assert := assert.New(t)
	s, prover := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/batches", BatchRequest{Proofs: testProofs(4)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first store.Batch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(3, prover.calls)

	require.NoError(t, os.Remove(first.ProofPath))

	rec = do(t, s, http.MethodPost, "/batches", BatchRequest{Proofs: testProofs(4)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var second store.Batch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(first.ID, second.ID)
	assert.Equal(6, prover.calls)
	assert.FileExists(second.ProofPath)
}

func TestCreateBatchConfigurationError(t *testing.T) {
	s, prover := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/batches", BatchRequest{Proofs: testProofs(2)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least three")
	assert.Zero(t, prover.calls)
}

func TestCreateBatchProverFailureIsRecorded(t *testing.T) {
	s, prover := newTestServer(t)
	prover.fail = true

	rec := do(t, s, http.MethodPost, "/batches", BatchRequest{Proofs: testProofs(4)})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "out of memory")

	batches, err := store.ListBatches(s.db, 10)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, store.StatusFailed, batches[0].Status)
}

func TestGetBatchNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/batches/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBatchesInvalidLimit(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/batches/?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyRequest(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/verify", VerifyRequest{ProofPath: "/p"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad := filepath.Join(t.TempDir(), "proof")
	require.NoError(t, os.WriteFile(bad, []byte("tampered"), 0644))
	rec = do(t, s, http.MethodPost, "/verify", VerifyRequest{ProofPath: bad, VKPath: "/vk"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid": false}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/verify", VerifyRequest{ProofPath: "/does/not/exist", VKPath: "/vk"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
