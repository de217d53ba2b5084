package wire

import (
	"bytes"
	"encoding/base64"
)

// Transaction pairs a message with the signatures covering its serialized
// bytes. The network requires exactly Header.NumRequiredSignatures entries,
// fee payer's first.
type Transaction struct {
	Signatures []Signature
	Message    Message
}

// Serialize renders the transaction: compact-u16 signature count, the
// signatures, then the message bytes.
func (t *Transaction) Serialize() []byte {
	var buf bytes.Buffer
	encodeCompactU16(&buf, len(t.Signatures))
	for _, s := range t.Signatures {
		buf.Write(s[:])
	}
	buf.Write(t.Message.Serialize())
	return buf.Bytes()
}

// DeserializeTransaction parses the layout produced by Serialize.
// decode(encode(t)) == t for every valid t.
func DeserializeTransaction(data []byte) (Transaction, error) {
	const op = "decode transaction"
	var t Transaction

	r := bytes.NewReader(data)
	nSigs, err := decodeCompactU16(r)
	if err != nil {
		return t, serErr(op, "signature count: %v", err)
	}
	if nSigs*64 > r.Len() {
		return t, serErr(op, "%d signatures exceed remaining %d bytes", nSigs, r.Len())
	}
	if nSigs > 0 {
		t.Signatures = make([]Signature, nSigs)
		for i := range t.Signatures {
			if _, err := readFull(r, t.Signatures[i][:]); err != nil {
				return t, serErr(op, "signature %d: %v", i, err)
			}
		}
	}

	m, err := readMessage(r)
	if err != nil {
		return t, err
	}
	if r.Len() != 0 {
		return t, serErr(op, "%d trailing bytes", r.Len())
	}
	if int(m.Header.NumRequiredSignatures) != nSigs {
		return t, serErr(op, "message requires %d signatures, transaction carries %d",
			m.Header.NumRequiredSignatures, nSigs)
	}
	t.Message = m

	return t, nil
}

// ToBase64 produces the transport encoding submitted over sendTransaction.
func (t *Transaction) ToBase64() string {
	return base64.StdEncoding.EncodeToString(t.Serialize())
}

// TransactionFromBase64 decodes the transport encoding.
func TransactionFromBase64(s string) (Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Transaction{}, serErr("decode transaction", "base64: %v", err)
	}
	return DeserializeTransaction(raw)
}
