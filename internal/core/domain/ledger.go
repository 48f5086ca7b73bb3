package domain

// LamportsPerSOL is the number of minor units in one unit of the native asset.
const LamportsPerSOL = 1_000_000_000

// NativeDecimals is the decimal scale of the native asset.
const NativeDecimals = 9

// AccountInfo is the ledger's view of a single account.
type AccountInfo struct {
	Address    string `json:"address"`
	Owner      string `json:"owner"`
	Lamports   uint64 `json:"lamports"`
	Executable bool   `json:"executable"`
	DataSize   int    `json:"data_size"`
}

// TransactionInfo is the ledger's view of a landed transaction.
type TransactionInfo struct {
	Signature string         `json:"signature"`
	Status    TransferStatus `json:"status"` // confirmed or failed
	Slot      uint64         `json:"slot"`
	BlockTime *int64         `json:"block_time,omitempty"`
	Fee       uint64         `json:"fee"`
	Logs      []string       `json:"logs,omitempty"`
	Err       string         `json:"err,omitempty"`
}
