// Package store is the sqlite ledger of batch runs, plus small JSON
// datastores for cached verification keys and CLI defaults.
package store

import (
	"database/sql"
	"encoding/json"

	"github.com/fatih/color"
	"github.com/liamzebedee/noirbatch-go/core"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

var dbLog = core.NewLogger("db", "")

func dbGetVersion(db *sql.DB) (int, error) {
	row := db.QueryRow("SELECT version FROM noirbatch_version ORDER BY version DESC LIMIT 1")
	databaseVersion := -1
	if err := row.Scan(&databaseVersion); err != nil && err != sql.ErrNoRows {
		return -1, errors.Wrap(err, "error checking database version")
	}
	return databaseVersion, nil
}

func dbMigrate(db *sql.DB, migrationIndex int, migrateFn func(tx *sql.Tx) error) error {
	version, err := dbGetVersion(db)
	if err != nil {
		return err
	}

	// Skip migration if the database is already at the target version.
	if migrationIndex <= version {
		return nil
	}

	dbLog.Printf("Running migration: %d\n", migrationIndex)
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := migrateFn(tx); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "migration %d", migrationIndex)
	}

	if _, err := tx.Exec("insert into noirbatch_version (version) values (?)", migrationIndex); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func OpenDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer, and ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("create table if not exists noirbatch_version (version int)"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error checking database version")
	}
	databaseVersion, err := dbGetVersion(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	dbLog.Printf("Database version: %d\n", databaseVersion)

	migrations := []func(tx *sql.Tx) error{
		// v0: batch ledger.
		func(tx *sql.Tx) error {
			_, err := tx.Exec(`create table batches (
				id TEXT PRIMARY KEY,
				created_at integer,
				num_proofs integer,
				merkle_tree_depth integer,
				keccak integer,
				self_paired integer,
				layers integer,
				status TEXT,
				proof_path TEXT,
				public_input TEXT,
				error TEXT
			)`)
			if err != nil {
				return errors.Wrap(err, "error creating 'batches' table")
			}

			_, err = tx.Exec(`create table batch_units (
				batch_id TEXT,
				layer integer,
				idx integer,
				kind TEXT,
				origin TEXT,
				public_input TEXT,
				proof_dir TEXT,

				primary key (batch_id, layer, idx),
				foreign key (batch_id) references batches (id)
			)`)
			if err != nil {
				return errors.Wrap(err, "error creating 'batch_units' table")
			}
			return nil
		},
		// v1: indexes.
		func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE INDEX idx_batches_created_at ON batches (created_at);
				CREATE INDEX idx_batch_units_batch_id ON batch_units (batch_id);
			`)
			return errors.Wrap(err, "error creating indexes")
		},
		// v2: datastores.
		func(tx *sql.Tx) error {
			_, err := tx.Exec(`create table datastores (
				-- use k,v instead of key,value to avoid reserved word conflicts
				k TEXT PRIMARY KEY,
				v blob
			)`)
			return errors.Wrap(err, "error creating 'datastores' table")
		},
	}
	for i, migrate := range migrations {
		if err := dbMigrate(db, i, migrate); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

// DataStore is a value kept in the datastores table under a unique key,
// serialised as JSON.
type DataStore interface {
	VKStore | DefaultsStore
}

// VKStore is a cached verification key.
type VKStore struct {
	Fields []core.Field `json:"fields"`
}

// DefaultsStore holds CLI defaults saved with `noirbatch config`.
type DefaultsStore struct {
	CircuitsDir string `json:"circuitsDir"`
	SemaphoreVK string `json:"semaphoreVk"`
	LeavesVK    string `json:"leavesVk"`
	NodesVK     string `json:"nodesVk"`
	// Nodes circuit vk written with --keccak, which keccak root proofs verify against.
	VerifyVK string `json:"verifyVk"`
	Keccak   bool   `json:"keccak"`
}

// LoadDataStore loads a data store by key. A missing key yields the zero value.
func LoadDataStore[T DataStore](db *sql.DB, key string) (*T, error) {
	buf := []byte("{}")
	err := db.QueryRow("SELECT v FROM datastores WHERE k = ?", key).Scan(&buf)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.Wrapf(err, "loading store %s", key)
	}

	var store T
	if err := json.Unmarshal(buf, &store); err != nil {
		return nil, errors.Wrapf(err, "decoding store %s", key)
	}
	dbLog.Printf("store name=%s loaded\n", color.HiYellowString(key))
	return &store, nil
}

func SaveDataStore[T DataStore](db *sql.DB, key string, value T) error {
	buf, err := json.Marshal(value)
	if err != nil {
		return err
	}

	// Upsert.
	_, err = db.Exec("INSERT INTO datastores (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v", key, buf)
	if err != nil {
		return errors.Wrapf(err, "saving store %s", key)
	}
	dbLog.Printf("store name=%s saved\n", color.HiYellowString(key))
	return nil
}
