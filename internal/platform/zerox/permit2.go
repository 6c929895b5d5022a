package zerox

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// SignPermit2 signs the quote's permit2 typed data and appends the
// signature to the settlement calldata the way the 0x settler expects:
// calldata || len(sig) as uint256 || sig.
func SignPermit2(quote Quote, calldata []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	if quote.Permit2 == nil {
		// Native-ETH sells settle without a permit.
		return calldata, nil
	}

	var typed apitypes.TypedData
	if err := json.Unmarshal(quote.Permit2.EIP712, &typed); err != nil {
		return nil, fmt.Errorf("zerox: parse permit2 typed data: %w", err)
	}

	digest, _, err := apitypes.TypedDataAndHash(typed)
	if err != nil {
		return nil, fmt.Errorf("zerox: hash permit2 typed data: %w", err)
	}

	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("zerox: sign permit2: %w", err)
	}
	// crypto.Sign yields v in {0,1}; contracts expect {27,28}.
	sig[64] += 27

	sigLen := make([]byte, 32)
	big.NewInt(int64(len(sig))).FillBytes(sigLen)

	out := make([]byte, 0, len(calldata)+32+len(sig))
	out = append(out, calldata...)
	out = append(out, sigLen...)
	out = append(out, sig...)
	return out, nil
}
