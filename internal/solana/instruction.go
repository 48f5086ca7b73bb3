package solana

import "encoding/binary"

// AccountMeta describes how an instruction uses an account.
type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation prior to message compilation.
type Instruction struct {
	ProgramID PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// System program instruction indices (u32 LE).
const systemTransfer uint32 = 2

// SPL Token instruction opcodes (u8).
const (
	tokenTransfer        byte = 3
	tokenTransferChecked byte = 12
)

// SystemTransfer moves lamports between two system-owned accounts.
// Accounts: [from (signer, writable), to (writable)].
func SystemTransfer(from, to PublicKey, lamports uint64) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransfer)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	return Instruction{
		ProgramID: SystemProgramID,
		Accounts: []AccountMeta{
			{PublicKey: from, IsSigner: true, IsWritable: true},
			{PublicKey: to, IsWritable: true},
		},
		Data: data,
	}
}

// TokenTransfer is the unchecked SPL Token transfer.
// Accounts: [source (writable), destination (writable), owner (signer)].
func TokenTransfer(source, destination, owner PublicKey, amount uint64) Instruction {
	data := make([]byte, 9)
	data[0] = tokenTransfer
	binary.LittleEndian.PutUint64(data[1:9], amount)

	return Instruction{
		ProgramID: TokenProgramID,
		Accounts: []AccountMeta{
			{PublicKey: source, IsWritable: true},
			{PublicKey: destination, IsWritable: true},
			{PublicKey: owner, IsSigner: true},
		},
		Data: data,
	}
}

// TokenTransferChecked is the SPL Token transfer that also asserts the mint and
// its decimals, so a wrong scale is rejected on-chain.
// Accounts: [source (writable), mint, destination (writable), owner (signer)].
func TokenTransferChecked(source, mint, destination, owner PublicKey, amount uint64, decimals uint8) Instruction {
	data := make([]byte, 10)
	data[0] = tokenTransferChecked
	binary.LittleEndian.PutUint64(data[1:9], amount)
	data[9] = decimals

	return Instruction{
		ProgramID: TokenProgramID,
		Accounts: []AccountMeta{
			{PublicKey: source, IsWritable: true},
			{PublicKey: mint},
			{PublicKey: destination, IsWritable: true},
			{PublicKey: owner, IsSigner: true},
		},
		Data: data,
	}
}
