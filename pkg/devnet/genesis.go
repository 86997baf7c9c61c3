package devnet

import (
	"crypto/sha256"

	cosmossecp256k1 "github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/pkg/errors"

	fadromachain "github.com/luca992/fadroma/pkg/chain"
)

// wellKnownMnemonics mirrors infra/apps/cored/wallets.go's predictable
// test wallets, generalized from the teacher's fixed alice/bob/charlie
// set to an arbitrary-name deterministic scheme below — kept here so the
// three conventional names still read as identities, not hashes.
var wellKnownMnemonics = map[string]string{
	"alice":   "mandate canyon major bargain bamboo soft fetch aisle extra confirm monster jazz atom ball summer solar tell glimpse square uniform situate body ginger protect",
	"bob":     "move equip digital assault wrong speed border multiply knife steel trash donor isolate remember lucky moon cupboard achieve canyon smooth pulp chief hold symptom",
	"charlie": "announce already cherry rotate pull apology banana dignity region horse aspect august country exit connect unit agent curious violin tide town link unable whip",
}

// GenesisAccount derives an AgentOpts deterministically from (chainID,
// name): the same pair always yields the same address across reruns
// (spec.md §4.5's "getGenesisAccount" requirement), without depending on
// a BIP39 wordlist generator — the private key scalar is derived directly
// from a SHA-256 digest instead of through mnemonic→HD-path derivation
// (infra/apps/cored/key.go's PrivateKeyFromMnemonic does the latter for a
// fixed mnemonic; genesis accounts here need one for *any* name).
func GenesisAccount(chainID, name string) (fadromachain.AgentOpts, error) {
	digest := sha256.Sum256([]byte(chainID + "/" + name))
	privKey := &cosmossecp256k1.PrivKey{Key: digest[:]}
	address := sdk.AccAddress(privKey.PubKey().Address())

	opts := fadromachain.AgentOpts{
		Name:    name,
		Address: address.String(),
	}
	if mnemonic, ok := wellKnownMnemonics[name]; ok {
		opts.Mnemonic = mnemonic
	}
	return opts, nil
}

// ValidateName rejects an empty genesis account name; any other name is
// accepted.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("devnet: genesis account name must not be empty")
	}
	return nil
}
