package wire

import "encoding/binary"

// System program instruction discriminants. Only Transfer is submitted by
// the agent; the constant block mirrors the program's ABI ordering.
const (
	systemCreateAccount uint32 = iota
	systemAssign
	systemTransfer
)

// NewTransferInstruction builds a System program lamport transfer from the
// funding account to the recipient. Layout: u32 LE discriminant, u64 LE
// lamports.
func NewTransferInstruction(lamports uint64, from, to Pubkey) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransfer)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	return Instruction{
		ProgramID: SystemProgramID,
		Accounts: []AccountMeta{
			{Pubkey: from, IsSigner: true, IsWritable: true},
			{Pubkey: to, IsSigner: false, IsWritable: true},
		},
		Data: data,
	}
}
