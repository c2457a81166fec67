package signeddb

var (
	// one row per (signed rawData, referenced source event). Rows are never
	// updated.
	signedTable = `CREATE TABLE IF NOT EXISTS signed (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sigType VARCHAR(16) NOT NULL,
		chain VARCHAR(16) NOT NULL,
		amount VARCHAR(80) NOT NULL,
		receiver VARCHAR(1024) NOT NULL,
		asset VARCHAR(256) NOT NULL,
		refTxHash VARCHAR(132) NOT NULL,
		nonce BIGINT,
		pubKey VARCHAR(132) NOT NULL,
		rawData VARCHAR(66) NOT NULL,
		signature TEXT NOT NULL,
		inputOutPoints TEXT NOT NULL DEFAULT '',
		createdAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT chk_sigType CHECK (sigType IN ('mint', 'unlock', 'create_cell')),
		CONSTRAINT chk_refTxHash CHECK (refTxHash != ''),
		CONSTRAINT chk_rawData CHECK (rawData != '')
	);
	CREATE INDEX IF NOT EXISTS idx_signed_rawData ON signed (rawData);
	CREATE INDEX IF NOT EXISTS idx_signed_refTxHash ON signed (refTxHash);`

	signedColumns = " sigType, chain, amount, receiver, asset, refTxHash, nonce, pubKey, rawData, signature, inputOutPoints "
)
