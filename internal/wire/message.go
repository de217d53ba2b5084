package wire

import (
	"bytes"
	"fmt"
)

// MessageHeader carries the signer/read-only counts the runtime uses to
// interpret the account table.
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction references its program and accounts by index into the
// message account table.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []uint8
	Data           []byte
}

// Message is the signed portion of a transaction. The signature covers
// exactly the bytes produced by Serialize, so assembly must be deterministic.
type Message struct {
	Header          MessageHeader
	AccountKeys     []Pubkey
	RecentBlockhash Hash
	Instructions    []CompiledInstruction
}

// accountEntry accumulates privileges for one key during compilation.
type accountEntry struct {
	pubkey   Pubkey
	signer   bool
	writable bool
}

// NewMessage assembles a message with the canonical account ordering:
// fee payer first, then writable signers, read-only signers, writable
// non-signers and read-only non-signers, each group in first-reference
// order with duplicates merged. Identical inputs produce byte-identical
// serialized messages.
func NewMessage(feePayer Pubkey, instructions []Instruction, recent Hash) Message {
	var entries []*accountEntry
	index := make(map[Pubkey]*accountEntry)

	upsert := func(pk Pubkey, signer, writable bool) {
		if e, ok := index[pk]; ok {
			e.signer = e.signer || signer
			e.writable = e.writable || writable
			return
		}
		e := &accountEntry{pubkey: pk, signer: signer, writable: writable}
		index[pk] = e
		entries = append(entries, e)
	}

	upsert(feePayer, true, true)
	for _, in := range instructions {
		for _, acc := range in.Accounts {
			upsert(acc.Pubkey, acc.IsSigner, acc.IsWritable)
		}
	}
	for _, in := range instructions {
		upsert(in.ProgramID, false, false)
	}

	// Stable partition into the four privilege groups. The fee payer is a
	// writable signer and was inserted first, so it stays at index 0.
	var keys []Pubkey
	var header MessageHeader
	for _, group := range []struct{ signer, writable bool }{
		{true, true}, {true, false}, {false, true}, {false, false},
	} {
		for _, e := range entries {
			if e.signer != group.signer || e.writable != group.writable {
				continue
			}
			keys = append(keys, e.pubkey)
			if e.signer {
				header.NumRequiredSignatures++
				if !e.writable {
					header.NumReadonlySignedAccounts++
				}
			} else if !e.writable {
				header.NumReadonlyUnsignedAccounts++
			}
		}
	}

	keyIndex := make(map[Pubkey]uint8, len(keys))
	for i, k := range keys {
		keyIndex[k] = uint8(i)
	}

	compiled := make([]CompiledInstruction, len(instructions))
	for i, in := range instructions {
		ci := CompiledInstruction{
			ProgramIDIndex: keyIndex[in.ProgramID],
			AccountIndexes: make([]uint8, len(in.Accounts)),
			Data:           in.Data,
		}
		for j, acc := range in.Accounts {
			ci.AccountIndexes[j] = keyIndex[acc.Pubkey]
		}
		compiled[i] = ci
	}

	return Message{
		Header:          header,
		AccountKeys:     keys,
		RecentBlockhash: recent,
		Instructions:    compiled,
	}
}

// Serialize renders the message in the canonical binary layout.
func (m *Message) Serialize() []byte {
	var buf bytes.Buffer
	buf.WriteByte(m.Header.NumRequiredSignatures)
	buf.WriteByte(m.Header.NumReadonlySignedAccounts)
	buf.WriteByte(m.Header.NumReadonlyUnsignedAccounts)

	encodeCompactU16(&buf, len(m.AccountKeys))
	for _, k := range m.AccountKeys {
		buf.Write(k[:])
	}

	buf.Write(m.RecentBlockhash[:])

	encodeCompactU16(&buf, len(m.Instructions))
	for _, in := range m.Instructions {
		buf.WriteByte(in.ProgramIDIndex)
		encodeCompactU16(&buf, len(in.AccountIndexes))
		buf.Write(in.AccountIndexes)
		encodeCompactU16(&buf, len(in.Data))
		buf.Write(in.Data)
	}

	return buf.Bytes()
}

// DeserializeMessage parses the binary layout produced by Serialize.
func DeserializeMessage(data []byte) (Message, error) {
	r := bytes.NewReader(data)
	m, err := readMessage(r)
	if err != nil {
		return Message{}, err
	}
	if r.Len() != 0 {
		return Message{}, serErr("decode message", "%d trailing bytes", r.Len())
	}
	return m, nil
}

func readMessage(r *bytes.Reader) (Message, error) {
	const op = "decode message"
	var m Message

	header := make([]byte, 3)
	if _, err := readFull(r, header); err != nil {
		return m, serErr(op, "header: %v", err)
	}
	m.Header = MessageHeader{
		NumRequiredSignatures:       header[0],
		NumReadonlySignedAccounts:   header[1],
		NumReadonlyUnsignedAccounts: header[2],
	}

	nKeys, err := decodeCompactU16(r)
	if err != nil {
		return m, serErr(op, "account count: %v", err)
	}
	if int(m.Header.NumRequiredSignatures) > nKeys {
		return m, serErr(op, "%d signers exceed %d accounts",
			m.Header.NumRequiredSignatures, nKeys)
	}
	m.AccountKeys = make([]Pubkey, nKeys)
	for i := range m.AccountKeys {
		if _, err := readFull(r, m.AccountKeys[i][:]); err != nil {
			return m, serErr(op, "account %d: %v", i, err)
		}
	}

	if _, err := readFull(r, m.RecentBlockhash[:]); err != nil {
		return m, serErr(op, "blockhash: %v", err)
	}

	nIns, err := decodeCompactU16(r)
	if err != nil {
		return m, serErr(op, "instruction count: %v", err)
	}
	m.Instructions = make([]CompiledInstruction, nIns)
	for i := range m.Instructions {
		in, err := readInstruction(r, nKeys)
		if err != nil {
			return m, serErr(op, "instruction %d: %v", i, err)
		}
		m.Instructions[i] = in
	}

	return m, nil
}

func readInstruction(r *bytes.Reader, nKeys int) (CompiledInstruction, error) {
	var in CompiledInstruction

	pi, err := r.ReadByte()
	if err != nil {
		return in, fmt.Errorf("program index: %w", err)
	}
	if int(pi) >= nKeys {
		return in, fmt.Errorf("program index %d out of range", pi)
	}
	in.ProgramIDIndex = pi

	nAcc, err := decodeCompactU16(r)
	if err != nil {
		return in, fmt.Errorf("account count: %w", err)
	}
	if nAcc > 0 {
		in.AccountIndexes = make([]uint8, nAcc)
		if _, err := readFull(r, in.AccountIndexes); err != nil {
			return in, fmt.Errorf("account indexes: %w", err)
		}
		for _, idx := range in.AccountIndexes {
			if int(idx) >= nKeys {
				return in, fmt.Errorf("account index %d out of range", idx)
			}
		}
	}

	nData, err := decodeCompactU16(r)
	if err != nil {
		return in, fmt.Errorf("data length: %w", err)
	}
	if nData > r.Len() {
		return in, fmt.Errorf("data length %d exceeds remaining %d", nData, r.Len())
	}
	if nData > 0 {
		in.Data = make([]byte, nData)
		if _, err := readFull(r, in.Data); err != nil {
			return in, fmt.Errorf("data: %w", err)
		}
	}

	return in, nil
}

func readFull(r *bytes.Reader, dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	n, err := r.Read(dst)
	if err != nil || n != len(dst) {
		return n, fmt.Errorf("need %d bytes, got %d", len(dst), n)
	}
	return n, nil
}
