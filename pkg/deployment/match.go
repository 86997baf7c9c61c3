package deployment

import "github.com/luca992/fadroma/pkg/receipt"

// Matches implements the spec.md §9 resolution of the source's ambiguous
// matches(): "all provided keys equal". The empty predicate matches
// everything. Unknown keys never match (a typo'd field name should not
// silently match every instance).
func Matches(inst receipt.ContractInstance, predicate map[string]string) bool {
	for key, want := range predicate {
		got, ok := field(inst, key)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func field(inst receipt.ContractInstance, key string) (string, bool) {
	switch key {
	case "name":
		return inst.Name, true
	case "prefix":
		return inst.Prefix, true
	case "suffix":
		return inst.Suffix, true
	case "crate":
		return inst.Crate, true
	case "chainId":
		return inst.ChainID, true
	case "codeHash":
		return inst.CodeHash, true
	case "address":
		return inst.Address, true
	case "label":
		return inst.Label, true
	default:
		return "", false
	}
}
