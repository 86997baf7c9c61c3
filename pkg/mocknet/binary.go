// Package mocknet is an in-process CosmWasm-ABI executor: a Chain+Agent
// pair with mode=Mocknet, grounded on spec.md §4.4. It trades a real chain
// for a wazero-hosted WASM guest, giving deterministic, networkless
// contract execution.
package mocknet

import (
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"
)

// Utf8ToB64 base64-encodes a UTF-8 string, matching cosmwasm-std's
// to_binary for a JSON-string-typed Binary field.
func Utf8ToB64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// B64ToUtf8 inverts Utf8ToB64. Test vector (spec.md §8):
// B64ToUtf8("IkVjaG8i") == "\"Echo\"".
func B64ToUtf8(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.Wrap(err, "mocknet: decoding base64 Binary")
	}
	return string(raw), nil
}

// GenericErr is the one error shape the mocknet host itself ever produces
// (guest traps, malformed regions). Contract-raised errors pass through
// whatever shape the guest wrote.
type GenericErr struct {
	Msg string `json:"msg"`
}

// ContractError is the `Err` arm of a ContractResult.
type ContractError struct {
	GenericErr *GenericErr `json:"generic_err,omitempty"`
}

// ContractResult is the Go counterpart of CosmWasm's
// `ContractResult<T>` / `ContractResult<QueryResponse>` Rust enum: exactly
// one of Ok/Err is populated.
type ContractResult struct {
	Ok  json.RawMessage `json:"Ok,omitempty"`
	Err *ContractError  `json:"Err,omitempty"`
}

// IsOk reports whether the result is the Ok arm.
func (r ContractResult) IsOk() bool { return r.Err == nil }

// ErrMsg returns the generic_err message, or "" if this is an Ok result or
// an error shape the host doesn't recognize.
func (r ContractResult) ErrMsg() string {
	if r.Err == nil || r.Err.GenericErr == nil {
		return ""
	}
	return r.Err.GenericErr.Msg
}

// TrapResult builds the canonical Err envelope the host raises when the
// guest traps mid-call (spec.md §4.4's "state machine per call").
func TrapResult(msg string) ContractResult {
	return ContractResult{Err: &ContractError{GenericErr: &GenericErr{Msg: msg}}}
}

// ParseContractResult unmarshals a guest-returned Region payload into a
// ContractResult.
func ParseContractResult(raw []byte) (ContractResult, error) {
	var result ContractResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return ContractResult{}, errors.Wrap(err, "mocknet: parsing contract result")
	}
	return result, nil
}
