package wire

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func testTransaction() Transaction {
	payer := pk(1)
	in := NewTransferInstruction(1_000_000_000, payer, pk(2))
	msg := NewMessage(payer, []Instruction{in}, Hash{3})

	var sig Signature
	for i := range sig {
		sig[i] = byte(i)
	}
	return Transaction{
		Signatures: []Signature{sig},
		Message:    msg,
	}
}

func TestTransaction_RoundTrip(t *testing.T) {
	tx := testTransaction()

	decoded, err := DeserializeTransaction(tx.Serialize())
	if err != nil {
		t.Fatalf("DeserializeTransaction: %v", err)
	}

	if !reflect.DeepEqual(decoded, tx) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, tx)
	}
}

func TestTransaction_Base64RoundTrip(t *testing.T) {
	tx := testTransaction()

	decoded, err := TransactionFromBase64(tx.ToBase64())
	if err != nil {
		t.Fatalf("TransactionFromBase64: %v", err)
	}

	if !bytes.Equal(decoded.Serialize(), tx.Serialize()) {
		t.Error("base64 round trip changed transaction bytes")
	}
}

func TestTransactionFromBase64_Invalid(t *testing.T) {
	_, err := TransactionFromBase64("not!base64!!")
	var serr *SerializationError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SerializationError, got %v", err)
	}
}

func TestDeserializeTransaction_Malformed(t *testing.T) {
	tx := testTransaction()
	data := tx.Serialize()

	for _, tc := range []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated signature", data[:10]},
		{"truncated message", data[:70]},
		{"trailing bytes", append(append([]byte{}, data...), 1, 2)},
	} {
		_, err := DeserializeTransaction(tc.data)
		var serr *SerializationError
		if !errors.As(err, &serr) {
			t.Errorf("%s: expected SerializationError, got %v", tc.name, err)
		}
	}
}

func TestDeserializeTransaction_SignatureCountMismatch(t *testing.T) {
	tx := testTransaction()
	// A second signature the message header does not account for.
	tx.Signatures = append(tx.Signatures, Signature{})

	var buf bytes.Buffer
	encodeCompactU16(&buf, len(tx.Signatures))
	for _, s := range tx.Signatures {
		buf.Write(s[:])
	}
	buf.Write(tx.Message.Serialize())

	if _, err := DeserializeTransaction(buf.Bytes()); err == nil {
		t.Error("expected error for signature count mismatch")
	}
}
