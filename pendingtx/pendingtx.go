package pendingtx

import (
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/TEENet-io/bridge-verifier/database"
)

var pendingTable = `CREATE TABLE IF NOT EXISTS pending_tx (
	chain VARCHAR(16) PRIMARY KEY NOT NULL,
	request TEXT NOT NULL
);`

// Tracker keeps, per destination chain, the last request this node signed.
// Each Set overwrites the previous entry of the chain.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]json.RawMessage

	// optional, survives restarts
	stmtCache *database.StmtCache
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]json.RawMessage)}
}

// NewPersistentTracker loads previously stored entries from db and writes
// every later update through to it.
func NewPersistentTracker(db *sql.DB) (*Tracker, error) {
	if _, err := db.Exec(pendingTable); err != nil {
		return nil, err
	}
	t := NewTracker()
	t.stmtCache = database.NewStmtCache(db)

	rows, err := db.Query(`SELECT chain, request FROM pending_tx`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var chain, request string
		if err := rows.Scan(&chain, &request); err != nil {
			return nil, err
		}
		t.entries[chain] = json.RawMessage(request)
	}
	return t, rows.Err()
}

func (t *Tracker) Close() {
	if t.stmtCache != nil {
		t.stmtCache.Clear()
	}
}

// Set records req as the pending request of chain.
func (t *Tracker) Set(chain string, req interface{}) error {
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stmtCache != nil {
		stmt, err := t.stmtCache.Prepare(`INSERT OR REPLACE INTO pending_tx (chain, request) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(chain, string(b)); err != nil {
			return err
		}
	}
	t.entries[chain] = b
	return nil
}

// Get returns the JSON of the last request set for chain.
func (t *Tracker) Get(chain string) (json.RawMessage, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b, ok := t.entries[chain]
	return b, ok
}
