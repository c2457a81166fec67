package state

var (
	// events observed on the chain named by `chain`. id is the event id
	// (tx hash or contract unique id).
	lockTable = `CREATE TABLE IF NOT EXISTS lock_record (
		id VARCHAR(132) NOT NULL,
		chain VARCHAR(16) NOT NULL,
		asset VARCHAR(256) NOT NULL,
		amount VARCHAR(80) NOT NULL,
		bridgeFee VARCHAR(80) NOT NULL DEFAULT '0',
		sender VARCHAR(256) NOT NULL DEFAULT '',
		recipient VARCHAR(1024) NOT NULL,
		blockNumber BIGINT UNSIGNED NOT NULL DEFAULT 0,
		confirmStatus VARCHAR(10) NOT NULL,
		PRIMARY KEY (chain, id),
		CONSTRAINT chk_confirm CHECK (confirmStatus IN ('pending', 'confirmed')),
		CONSTRAINT chk_id CHECK (id != '')
	);`

	// xchain is the chain the burned asset is unlocked on.
	burnTable = `CREATE TABLE IF NOT EXISTS burn_record (
		id VARCHAR(132) NOT NULL,
		chain VARCHAR(16) NOT NULL,
		xchain VARCHAR(16) NOT NULL,
		asset VARCHAR(256) NOT NULL,
		amount VARCHAR(80) NOT NULL,
		bridgeFee VARCHAR(80) NOT NULL DEFAULT '0',
		sender VARCHAR(256) NOT NULL DEFAULT '',
		recipient VARCHAR(1024) NOT NULL,
		blockNumber BIGINT UNSIGNED NOT NULL DEFAULT 0,
		confirmStatus VARCHAR(10) NOT NULL,
		PRIMARY KEY (chain, id),
		CONSTRAINT chk_confirm CHECK (confirmStatus IN ('pending', 'confirmed')),
		CONSTRAINT chk_id CHECK (id != '')
	);`

	// finalized mints on `chain`, keyed by the id of the lock they serve.
	mintTable = `CREATE TABLE IF NOT EXISTS mint_record (
		id VARCHAR(132) NOT NULL,
		chain VARCHAR(16) NOT NULL,
		asset VARCHAR(256) NOT NULL,
		amount VARCHAR(80) NOT NULL,
		recipient VARCHAR(1024) NOT NULL,
		txHash VARCHAR(66) NOT NULL DEFAULT '',
		PRIMARY KEY (chain, id),
		CONSTRAINT chk_id CHECK (id != '')
	);`

	// finalized unlocks on `chain`, keyed by the id of the burn they serve.
	unlockTable = `CREATE TABLE IF NOT EXISTS unlock_record (
		id VARCHAR(132) NOT NULL,
		chain VARCHAR(16) NOT NULL,
		asset VARCHAR(256) NOT NULL,
		amount VARCHAR(80) NOT NULL,
		recipient VARCHAR(1024) NOT NULL,
		txHash VARCHAR(66) NOT NULL DEFAULT '',
		PRIMARY KEY (chain, id),
		CONSTRAINT chk_id CHECK (id != '')
	);`

	// last block each chain watcher has fully handled
	handledBlockTable = `CREATE TABLE IF NOT EXISTS handled_block (
		chain VARCHAR(16) PRIMARY KEY NOT NULL,
		height BIGINT UNSIGNED NOT NULL,
		hash VARCHAR(66) NOT NULL
	);`

	lockColumns  = " id, chain, asset, amount, bridgeFee, sender, recipient, blockNumber, confirmStatus "
	burnColumns  = " id, chain, xchain, asset, amount, bridgeFee, sender, recipient, blockNumber, confirmStatus "
	finalColumns = " id, chain, asset, amount, recipient, txHash "
)
