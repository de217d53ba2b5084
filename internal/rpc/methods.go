package rpc

// Method is one of the closed set of RPC operations the agent issues. Each
// variant carries its wire method name and fully built params, so adding an
// operation means adding a constructor here, not ad hoc string matching at
// call sites.
type Method struct {
	name   string
	params []interface{}
}

// Name returns the wire method name.
func (m Method) Name() string { return m.name }

// SendOptions configure transaction submission preflight behavior.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment string
	MaxRetries          int
}

// MethodGetLatestBlockhash fetches the most recent blockhash at the given
// commitment level.
func MethodGetLatestBlockhash(commitment string) Method {
	return Method{
		name:   "getLatestBlockhash",
		params: []interface{}{map[string]string{"commitment": commitment}},
	}
}

// MethodSendTransaction submits a base64-encoded signed transaction.
func MethodSendTransaction(txBase64 string, opts SendOptions) Method {
	return Method{
		name: "sendTransaction",
		params: []interface{}{txBase64, map[string]interface{}{
			"encoding":            "base64",
			"skipPreflight":       opts.SkipPreflight,
			"preflightCommitment": opts.PreflightCommitment,
			"maxRetries":          opts.MaxRetries,
		}},
	}
}

// MethodGetBalance fetches the lamport balance of an account.
func MethodGetBalance(pubkey, commitment string) Method {
	return Method{
		name:   "getBalance",
		params: []interface{}{pubkey, map[string]string{"commitment": commitment}},
	}
}

// MethodGetVersion fetches the node software version.
func MethodGetVersion() Method {
	return Method{name: "getVersion"}
}

// MethodGetSlot fetches the current slot.
func MethodGetSlot(commitment string) Method {
	return Method{
		name:   "getSlot",
		params: []interface{}{map[string]string{"commitment": commitment}},
	}
}

// MethodGetSignatureStatuses fetches processing status for submitted
// transaction signatures.
func MethodGetSignatureStatuses(signatures []string) Method {
	return Method{
		name:   "getSignatureStatuses",
		params: []interface{}{signatures},
	}
}
