package store

import (
	"database/sql"
	"time"

	"github.com/fatih/color"
	"github.com/liamzebedee/noirbatch-go/core/batching"
	"github.com/pkg/errors"
)

var ErrBatchNotFound = errors.New("batch not found")

const (
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Batch is a ledger record of one batch run.
type Batch struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	NumProofs       int       `json:"numProofs"`
	MerkleTreeDepth int       `json:"merkleTreeDepth"`
	Keccak          bool      `json:"keccak"`
	SelfPaired      bool      `json:"selfPaired"`
	Layers          int       `json:"layers"`
	Status          string    `json:"status"`
	ProofPath       string    `json:"proofPath,omitempty"`
	PublicInput     string    `json:"publicInput,omitempty"`
	Error           string    `json:"error,omitempty"`
	Units           []Unit    `json:"units,omitempty"`
}

// Unit is one entry of one layer. Index is the position within the layer.
type Unit struct {
	Layer       int    `json:"layer"`
	Index       int    `json:"index"`
	Kind        string `json:"kind"`
	Origin      string `json:"origin"`
	PublicInput string `json:"publicInput"`
	ProofDir    string `json:"proofDir"`
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SaveBatch records a completed batch and all of its layers. Saving the same
// id again replaces the record.
func SaveBatch(db *sql.DB, id string, r *batching.Result) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO batches (id, created_at, num_proofs, merkle_tree_depth, keccak, self_paired, layers, status, proof_path, public_input, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '')
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at, num_proofs = excluded.num_proofs,
			merkle_tree_depth = excluded.merkle_tree_depth, keccak = excluded.keccak,
			self_paired = excluded.self_paired, layers = excluded.layers, status = excluded.status,
			proof_path = excluded.proof_path, public_input = excluded.public_input, error = ''`,
		id, time.Now().Unix(), r.LeafCount, r.MerkleTreeDepth, boolInt(r.Keccak), boolInt(r.SelfPaired),
		len(r.Layers), StatusComplete, r.ProofPath, r.Root.Proof.PublicInputs[0].Hex(),
	)
	if err != nil {
		return errors.Wrap(err, "inserting batch")
	}

	if _, err := tx.Exec("DELETE FROM batch_units WHERE batch_id = ?", id); err != nil {
		return errors.Wrap(err, "clearing batch units")
	}
	for layer, entries := range r.Layers {
		for i, e := range entries {
			_, err := tx.Exec(
				"INSERT INTO batch_units (batch_id, layer, idx, kind, origin, public_input, proof_dir) VALUES (?, ?, ?, ?, ?, ?, ?)",
				id, layer, i, e.Kind.String(), e.Unit.Origin.String(), e.Unit.Proof.PublicInputs[0].Hex(), e.Unit.Dir,
			)
			if err != nil {
				return errors.Wrap(err, "inserting batch unit")
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	dbLog.Printf("batch id=%s saved\n", color.HiYellowString(ShortID(id)))
	return nil
}

// MarkBatchFailed records a batch that did not produce a root proof.
func MarkBatchFailed(db *sql.DB, id string, numProofs, depth int, keccak bool, cause error) error {
	_, err := db.Exec(`
		INSERT INTO batches (id, created_at, num_proofs, merkle_tree_depth, keccak, self_paired, layers, status, proof_path, public_input, error)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?, '', '', ?)
		ON CONFLICT(id) DO UPDATE SET created_at = excluded.created_at, status = excluded.status, error = excluded.error`,
		id, time.Now().Unix(), numProofs, depth, boolInt(keccak), StatusFailed, cause.Error(),
	)
	return errors.Wrap(err, "marking batch failed")
}

const batchColumns = "id, created_at, num_proofs, merkle_tree_depth, keccak, self_paired, layers, status, proof_path, public_input, error"

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(row scanner) (Batch, error) {
	var b Batch
	var createdAt int64
	var keccak, selfPaired int
	err := row.Scan(&b.ID, &createdAt, &b.NumProofs, &b.MerkleTreeDepth, &keccak, &selfPaired, &b.Layers, &b.Status, &b.ProofPath, &b.PublicInput, &b.Error)
	if err != nil {
		return Batch{}, err
	}
	b.CreatedAt = time.Unix(createdAt, 0)
	b.Keccak = keccak == 1
	b.SelfPaired = selfPaired == 1
	return b, nil
}

// GetBatch loads a batch with its units ordered by layer and position.
func GetBatch(db *sql.DB, id string) (*Batch, error) {
	b, err := scanBatch(db.QueryRow("SELECT "+batchColumns+" FROM batches WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading batch")
	}

	rows, err := db.Query("SELECT layer, idx, kind, origin, public_input, proof_dir FROM batch_units WHERE batch_id = ? ORDER BY layer, idx", id)
	if err != nil {
		return nil, errors.Wrap(err, "loading batch units")
	}
	defer rows.Close()
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.Layer, &u.Index, &u.Kind, &u.Origin, &u.PublicInput, &u.ProofDir); err != nil {
			return nil, err
		}
		b.Units = append(b.Units, u)
	}
	return &b, rows.Err()
}

// ListBatches returns the most recent batches first, without units.
func ListBatches(db *sql.DB, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query("SELECT "+batchColumns+" FROM batches ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, errors.Wrap(err, "listing batches")
	}
	defer rows.Close()

	batches := []Batch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// ShortID abbreviates a batch id for display.
func ShortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
