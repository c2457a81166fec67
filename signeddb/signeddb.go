package signeddb

import (
	"context"
	"database/sql"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/TEENet-io/bridge-verifier/database"
	"github.com/ethereum/go-ethereum/common/lru"
	logger "github.com/sirupsen/logrus"
)

const signatureCacheSize = 1024

type cacheKey struct {
	pubKey  string
	rawData string
}

// SignedDB remembers every signature this node produced so that a rawData is
// signed at most once per key.
type SignedDB struct {
	db        *sql.DB
	stmtCache *database.StmtCache
	cache     *lru.Cache[cacheKey, string]

	// serialises SaveSigned per rawData inside this process; the sqlite
	// transaction covers other processes sharing the file.
	rawDataLocks [rawDataLockStripes]sync.Mutex
}

const rawDataLockStripes = 64

// rawDataLock picks the stripe guarding key. Unrelated rawData may share a
// stripe and wait on each other.
func (sdb *SignedDB) rawDataLock(key cacheKey) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key.pubKey))
	h.Write([]byte(key.rawData))
	return &sdb.rawDataLocks[h.Sum32()%rawDataLockStripes]
}

func NewSignedDB(db *sql.DB) (*SignedDB, error) {
	if _, err := db.Exec(signedTable); err != nil {
		return nil, err
	}

	return &SignedDB{
		db:        db,
		stmtCache: database.NewStmtCache(db),
		cache:     lru.NewCache[cacheKey, string](signatureCacheSize),
	}, nil
}

func (sdb *SignedDB) Close() {
	sdb.stmtCache.Clear()
}

// GetSignatureByRawData returns the signature pubKey produced for rawData.
func (sdb *SignedDB) GetSignatureByRawData(pubKey, rawData string) (string, bool, error) {
	key := cacheKey{strings.ToLower(pubKey), strings.ToLower(rawData)}
	if sig, ok := sdb.cache.Get(key); ok {
		return sig, true, nil
	}

	stmt, err := sdb.stmtCache.Prepare(`SELECT signature FROM signed WHERE pubKey = ? AND rawData = ? LIMIT 1`)
	if err != nil {
		return "", false, err
	}
	var sig string
	if err := stmt.QueryRow(key.pubKey, key.rawData).Scan(&sig); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}

	sdb.cache.Add(key, sig)
	return sig, true, nil
}

// GetSignedByRawData returns every record saved with rawData.
func (sdb *SignedDB) GetSignedByRawData(pubKey, rawData string) ([]*SignedRecord, error) {
	stmt, err := sdb.stmtCache.Prepare(`SELECT` + signedColumns + `FROM signed WHERE pubKey = ? AND rawData = ? ORDER BY id`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(strings.ToLower(pubKey), strings.ToLower(rawData))
	if err != nil {
		return nil, err
	}
	return scanSigned(rows)
}

// GetSignedByRefTxHashes returns the records of sigType on chain signed by
// pubKey for any of the given source event ids.
func (sdb *SignedDB) GetSignedByRefTxHashes(pubKey, chain, sigType string, refTxHashes []string) ([]*SignedRecord, error) {
	if len(refTxHashes) == 0 {
		return nil, nil
	}
	in, args := inClause(refTxHashes, strings.ToLower(pubKey), chain, sigType)
	stmt, err := sdb.stmtCache.Prepare(`SELECT` + signedColumns + `FROM signed WHERE pubKey = ? AND chain = ? AND sigType = ? AND refTxHash IN ` + in + ` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	return scanSigned(rows)
}

// GetMaxNonceByRefTxHashes returns the highest nonce signed by pubKey for
// any of refTxHashes. ok is false when none was signed with a nonce.
func (sdb *SignedDB) GetMaxNonceByRefTxHashes(pubKey, chain string, refTxHashes []string) (uint64, bool, error) {
	if len(refTxHashes) == 0 {
		return 0, false, nil
	}
	in, args := inClause(refTxHashes, strings.ToLower(pubKey), chain)
	stmt, err := sdb.stmtCache.Prepare(`SELECT MAX(nonce) FROM signed WHERE pubKey = ? AND chain = ? AND nonce IS NOT NULL AND refTxHash IN ` + in)
	if err != nil {
		return 0, false, err
	}
	var nonce sql.NullInt64
	if err := stmt.QueryRow(args...).Scan(&nonce); err != nil {
		return 0, false, err
	}
	if !nonce.Valid {
		return 0, false, nil
	}
	return uint64(nonce.Int64), true, nil
}

// SaveSigned persists the records of one signed request atomically. When a
// signature for the same pubKey and rawData already exists nothing is written
// and the existing signature is returned with inserted == false.
func (sdb *SignedDB) SaveSigned(ctx context.Context, records []*SignedRecord) (string, bool, error) {
	if len(records) == 0 {
		return "", false, ErrNoRecords
	}
	encoded := make([]*sqlSigned, len(records))
	for i, r := range records {
		s, err := new(sqlSigned).encode(r)
		if err != nil {
			return "", false, err
		}
		if i > 0 && (s.RawData != encoded[0].RawData || s.PubKey != encoded[0].PubKey) {
			return "", false, ErrMixedRawData
		}
		encoded[i] = s
	}
	key := cacheKey{encoded[0].PubKey, encoded[0].RawData}

	mu := sdb.rawDataLock(key)
	mu.Lock()
	defer mu.Unlock()

	var (
		signature = encoded[0].Signature
		inserted  bool
	)
	err := database.WithTx(ctx, sdb.db, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx, `SELECT signature FROM signed WHERE pubKey = ? AND rawData = ? LIMIT 1`, key.pubKey, key.rawData).Scan(&existing)
		if err == nil {
			signature = existing
			return nil
		}
		if err != sql.ErrNoRows {
			return err
		}

		for _, s := range encoded {
			if _, err := tx.ExecContext(ctx, `INSERT INTO signed (`+signedColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.execArgs()...); err != nil {
				return err
			}
		}
		inserted = true
		return nil
	})
	if err != nil {
		return "", false, err
	}

	if !inserted {
		logger.WithField("rawData", key.rawData).Debug("rawData already signed, keeping the first signature")
	}
	sdb.cache.Add(key, signature)
	return signature, inserted, nil
}

func inClause(ids []string, leading ...interface{}) (string, []interface{}) {
	args := append([]interface{}{}, leading...)
	marks := make([]string, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args = append(args, strings.ToLower(id))
	}
	return "(" + strings.Join(marks, ", ") + ")", args
}

func scanSigned(rows *sql.Rows) ([]*SignedRecord, error) {
	defer rows.Close()
	var records []*SignedRecord
	for rows.Next() {
		var s sqlSigned
		if err := rows.Scan(s.scanArgs()...); err != nil {
			return nil, err
		}
		records = append(records, s.decode())
	}
	return records, rows.Err()
}
