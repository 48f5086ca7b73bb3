package solana

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

var (
	ErrNoInstructions   = errors.New("transaction has no instructions")
	ErrNotASigner       = errors.New("key is not a required signer of this transaction")
	ErrMissingSignature = errors.New("transaction is missing a required signature")
)

// MessageHeader counts the signer and read-only sections of AccountKeys.
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction references accounts by index into Message.AccountKeys.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

// Message is a legacy (unversioned) transaction message.
type Message struct {
	Header          MessageHeader
	AccountKeys     []PublicKey
	RecentBlockhash Hash
	Instructions    []CompiledInstruction
}

// Transaction is a message plus one signature slot per required signer.
type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles instructions into a legacy message paid for by
// feePayer. Account keys are ordered writable signers (fee payer first),
// read-only signers, writable non-signers, then read-only non-signers.
func NewTransaction(instructions []Instruction, blockhash Hash, feePayer PublicKey) (*Transaction, error) {
	if len(instructions) == 0 {
		return nil, ErrNoInstructions
	}

	type entry struct {
		key      PublicKey
		signer   bool
		writable bool
	}
	var order []*entry
	index := make(map[PublicKey]*entry)
	add := func(key PublicKey, signer, writable bool) {
		if e, ok := index[key]; ok {
			e.signer = e.signer || signer
			e.writable = e.writable || writable
			return
		}
		e := &entry{key: key, signer: signer, writable: writable}
		index[key] = e
		order = append(order, e)
	}

	add(feePayer, true, true)
	for _, ix := range instructions {
		for _, meta := range ix.Accounts {
			add(meta.PublicKey, meta.IsSigner, meta.IsWritable)
		}
	}
	for _, ix := range instructions {
		add(ix.ProgramID, false, false)
	}

	if len(order) > 256 {
		return nil, fmt.Errorf("too many accounts: %d", len(order))
	}

	var header MessageHeader
	keys := make([]PublicKey, 0, len(order))
	for _, section := range []struct{ signer, writable bool }{
		{true, true}, {true, false}, {false, true}, {false, false},
	} {
		for _, e := range order {
			if e.signer != section.signer || e.writable != section.writable {
				continue
			}
			keys = append(keys, e.key)
			switch {
			case e.signer && e.writable:
				header.NumRequiredSignatures++
			case e.signer:
				header.NumRequiredSignatures++
				header.NumReadonlySignedAccounts++
			case !e.writable:
				header.NumReadonlyUnsignedAccounts++
			}
		}
	}

	position := make(map[PublicKey]uint8, len(keys))
	for i, k := range keys {
		position[k] = uint8(i)
	}

	compiled := make([]CompiledInstruction, 0, len(instructions))
	for _, ix := range instructions {
		accounts := make([]uint8, len(ix.Accounts))
		for i, meta := range ix.Accounts {
			accounts[i] = position[meta.PublicKey]
		}
		compiled = append(compiled, CompiledInstruction{
			ProgramIDIndex: position[ix.ProgramID],
			Accounts:       accounts,
			Data:           ix.Data,
		})
	}

	return &Transaction{
		Signatures: make([]Signature, header.NumRequiredSignatures),
		Message: Message{
			Header:          header,
			AccountKeys:     keys,
			RecentBlockhash: blockhash,
			Instructions:    compiled,
		},
	}, nil
}

// FeePayer is the first account key.
func (m *Message) FeePayer() PublicKey {
	if len(m.AccountKeys) == 0 {
		return PublicKey{}
	}
	return m.AccountKeys[0]
}

// Signers returns the keys whose signatures the message requires.
func (m *Message) Signers() []PublicKey {
	return m.AccountKeys[:m.Header.NumRequiredSignatures]
}

// MarshalBinary returns the wire encoding that signers sign over.
func (m *Message) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 3+1+len(m.AccountKeys)*PublicKeySize+32+64)
	buf = append(buf,
		m.Header.NumRequiredSignatures,
		m.Header.NumReadonlySignedAccounts,
		m.Header.NumReadonlyUnsignedAccounts,
	)

	buf = appendCompactU16(buf, len(m.AccountKeys))
	for _, k := range m.AccountKeys {
		buf = append(buf, k[:]...)
	}
	buf = append(buf, m.RecentBlockhash[:]...)

	buf = appendCompactU16(buf, len(m.Instructions))
	for _, ix := range m.Instructions {
		if int(ix.ProgramIDIndex) >= len(m.AccountKeys) {
			return nil, fmt.Errorf("program index %d out of range", ix.ProgramIDIndex)
		}
		buf = append(buf, ix.ProgramIDIndex)
		buf = appendCompactU16(buf, len(ix.Accounts))
		buf = append(buf, ix.Accounts...)
		buf = appendCompactU16(buf, len(ix.Data))
		buf = append(buf, ix.Data...)
	}
	return buf, nil
}

// Sign signs the message with key and stores the signature in the slot of
// key's public key. Keys that are not required signers are rejected.
func (tx *Transaction) Sign(key ed25519.PrivateKey) error {
	pub := PublicKeyOf(key)
	slot := -1
	for i, signer := range tx.Message.Signers() {
		if signer == pub {
			slot = i
			break
		}
	}
	if slot < 0 {
		return fmt.Errorf("%w: %s", ErrNotASigner, pub)
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return err
	}
	copy(tx.Signatures[slot][:], ed25519.Sign(key, msg))
	return nil
}

// Verify checks every signature against the message.
func (tx *Transaction) Verify() error {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return err
	}
	signers := tx.Message.Signers()
	if len(tx.Signatures) != len(signers) {
		return ErrMissingSignature
	}
	for i, signer := range signers {
		if !ed25519.Verify(signer[:], msg, tx.Signatures[i][:]) {
			return fmt.Errorf("%w: %s", ErrInvalidSignature, signer)
		}
	}
	return nil
}

// Signature returns the transaction id (the fee payer's signature).
func (tx *Transaction) Signature() Signature {
	if len(tx.Signatures) == 0 {
		return Signature{}
	}
	return tx.Signatures[0]
}

// MarshalBinary encodes a fully signed transaction for submission.
func (tx *Transaction) MarshalBinary() ([]byte, error) {
	for _, s := range tx.Signatures {
		if s.IsZero() {
			return nil, ErrMissingSignature
		}
	}
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, err
	}

	buf := appendCompactU16(make([]byte, 0, 1+len(tx.Signatures)*SignatureSize+len(msg)), len(tx.Signatures))
	for _, s := range tx.Signatures {
		buf = append(buf, s[:]...)
	}
	return append(buf, msg...), nil
}

// appendCompactU16 writes n as a shortvec: 7 bits per byte, high bit set on
// every byte but the last.
func appendCompactU16(buf []byte, n int) []byte {
	rem := uint16(n)
	for {
		b := byte(rem & 0x7f)
		rem >>= 7
		if rem == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}
