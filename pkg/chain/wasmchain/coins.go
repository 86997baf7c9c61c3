package wasmchain

import (
	sdk "github.com/cosmos/cosmos-sdk/types"

	fadromachain "github.com/luca992/fadroma/pkg/chain"
)

func toSDKCoins(coins []fadromachain.Coin) sdk.Coins {
	out := make(sdk.Coins, 0, len(coins))
	for _, c := range coins {
		amount, ok := sdk.NewIntFromString(c.Amount)
		if !ok {
			continue
		}
		out = append(out, sdk.NewCoin(c.Denom, amount))
	}
	return out.Sort()
}
