package state

import (
	"database/sql"
	"strings"

	"github.com/TEENet-io/bridge-verifier/database"
)

// StateDB is the Record Store: source events written by the chain watchers
// and finalized mint/unlock records, read by the signature server.
type StateDB struct {
	stmtCache *database.StmtCache
}

func NewStateDB(db *sql.DB) (*StateDB, error) {
	// 1. Create the tables.
	if _, err := db.Exec(lockTable + burnTable + mintTable + unlockTable + handledBlockTable); err != nil {
		return nil, err
	}

	// 2. A stmt cache + db.
	return &StateDB{
		stmtCache: database.NewStmtCache(db),
	}, nil
}

func (st *StateDB) Close() {
	st.stmtCache.Clear()
}

// inClause returns "(?, ?, ...)" and the lower cased ids as query args,
// preceded by the leading args.
func inClause(ids []string, leading ...interface{}) (string, []interface{}) {
	args := append([]interface{}{}, leading...)
	marks := make([]string, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args = append(args, strings.ToLower(id))
	}
	return "(" + strings.Join(marks, ", ") + ")", args
}

func (st *StateDB) InsertLock(r *LockRecord) error {
	s, err := new(sqlLock).encode(r)
	if err != nil {
		return err
	}
	stmt, err := st.stmtCache.Prepare(`INSERT INTO lock_record (` + lockColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(s.Id, s.Chain, s.Asset, s.Amount, s.BridgeFee, s.Sender, s.Recipient, s.BlockNumber, s.ConfirmStatus)
	return err
}

func (st *StateDB) SetLockConfirmed(chain, id string) error {
	return st.setConfirmed("lock_record", chain, id)
}

func (st *StateDB) SetBurnConfirmed(chain, id string) error {
	return st.setConfirmed("burn_record", chain, id)
}

func (st *StateDB) setConfirmed(table, chain, id string) error {
	stmt, err := st.stmtCache.Prepare(`UPDATE ` + table + ` SET confirmStatus = 'confirmed' WHERE chain = ? AND id = ?`)
	if err != nil {
		return err
	}
	res, err := stmt.Exec(chain, strings.ToLower(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordMissing
	}
	return nil
}

// GetLocksByIds returns the lock records of chain among ids. Missing ids are
// simply absent from the result.
func (st *StateDB) GetLocksByIds(chain string, ids []string) ([]*LockRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids, chain)
	stmt, err := st.stmtCache.Prepare(`SELECT` + lockColumns + `FROM lock_record WHERE chain = ? AND id IN ` + in)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locks []*LockRecord
	for rows.Next() {
		var s sqlLock
		if err := rows.Scan(&s.Id, &s.Chain, &s.Asset, &s.Amount, &s.BridgeFee, &s.Sender, &s.Recipient, &s.BlockNumber, &s.ConfirmStatus); err != nil {
			return nil, err
		}
		r, err := s.decode()
		if err != nil {
			return nil, err
		}
		locks = append(locks, r)
	}
	return locks, rows.Err()
}

func (st *StateDB) InsertBurn(r *BurnRecord) error {
	s, err := new(sqlBurn).encode(r)
	if err != nil {
		return err
	}
	stmt, err := st.stmtCache.Prepare(`INSERT INTO burn_record (` + burnColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(s.Id, s.Chain, s.XChain, s.Asset, s.Amount, s.BridgeFee, s.Sender, s.Recipient, s.BlockNumber, s.ConfirmStatus)
	return err
}

func (st *StateDB) GetBurnsByIds(chain string, ids []string) ([]*BurnRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids, chain)
	stmt, err := st.stmtCache.Prepare(`SELECT` + burnColumns + `FROM burn_record WHERE chain = ? AND id IN ` + in)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var burns []*BurnRecord
	for rows.Next() {
		var s sqlBurn
		if err := rows.Scan(&s.Id, &s.Chain, &s.XChain, &s.Asset, &s.Amount, &s.BridgeFee, &s.Sender, &s.Recipient, &s.BlockNumber, &s.ConfirmStatus); err != nil {
			return nil, err
		}
		r, err := s.decode()
		if err != nil {
			return nil, err
		}
		burns = append(burns, r)
	}
	return burns, rows.Err()
}

func (st *StateDB) InsertMint(r *MintRecord) error {
	if r == nil {
		return ErrNilRecord
	}
	return st.insertFinal("mint_record", r.Id, r.Chain, r.Asset, amountText(r.Amount), r.Recipient, r.TxHash)
}

func (st *StateDB) InsertUnlock(r *UnlockRecord) error {
	if r == nil {
		return ErrNilRecord
	}
	return st.insertFinal("unlock_record", r.Id, r.Chain, r.Asset, amountText(r.Amount), r.Recipient, r.TxHash)
}

func (st *StateDB) insertFinal(table, id, chain, asset, amount, recipient, txHash string) error {
	if id == "" {
		return ErrEmptyId
	}
	stmt, err := st.stmtCache.Prepare(`INSERT OR REPLACE INTO ` + table + ` (` + finalColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(strings.ToLower(id), chain, asset, amount, recipient, txHash)
	return err
}

func (st *StateDB) getFinals(table, chain string, ids []string) ([]*sqlFinal, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids, chain)
	stmt, err := st.stmtCache.Prepare(`SELECT` + finalColumns + `FROM ` + table + ` WHERE chain = ? AND id IN ` + in)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var finals []*sqlFinal
	for rows.Next() {
		var s sqlFinal
		if err := rows.Scan(&s.Id, &s.Chain, &s.Asset, &s.Amount, &s.Recipient, &s.TxHash); err != nil {
			return nil, err
		}
		finals = append(finals, &s)
	}
	return finals, rows.Err()
}

// GetMintsByIds returns the mints finalized on chain for the given lock ids.
func (st *StateDB) GetMintsByIds(chain string, ids []string) ([]*MintRecord, error) {
	finals, err := st.getFinals("mint_record", chain, ids)
	if err != nil {
		return nil, err
	}
	mints := make([]*MintRecord, 0, len(finals))
	for _, f := range finals {
		m, err := f.decode()
		if err != nil {
			return nil, err
		}
		mints = append(mints, m)
	}
	return mints, nil
}

// GetUnlocksByIds returns the unlocks finalized on chain for the given burn
// ids.
func (st *StateDB) GetUnlocksByIds(chain string, ids []string) ([]*UnlockRecord, error) {
	finals, err := st.getFinals("unlock_record", chain, ids)
	if err != nil {
		return nil, err
	}
	unlocks := make([]*UnlockRecord, 0, len(finals))
	for _, f := range finals {
		m, err := f.decode()
		if err != nil {
			return nil, err
		}
		unlocks = append(unlocks, (*UnlockRecord)(m))
	}
	return unlocks, nil
}

func (st *StateDB) SetHandledBlock(chain string, height uint64, hash string) error {
	stmt, err := st.stmtCache.Prepare(`INSERT OR REPLACE INTO handled_block (chain, height, hash) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(chain, height, hash)
	return err
}

func (st *StateDB) GetHandledBlock(chain string) (*HandledBlock, bool, error) {
	stmt, err := st.stmtCache.Prepare(`SELECT height, hash FROM handled_block WHERE chain = ?`)
	if err != nil {
		return nil, false, err
	}
	var hb HandledBlock
	if err := stmt.QueryRow(chain).Scan(&hb.Height, &hb.Hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &hb, true, nil
}
