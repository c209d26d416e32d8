package types

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Method names the contract operation a call invokes.
type Method string

const (
	MethodCreate           Method = "create"
	MethodSetRewardConfig  Method = "set_reward_config"
	MethodSetStation       Method = "set_station"
	MethodOptInRewardAsset Method = "opt_in_reward_asset"
	MethodAddBottle        Method = "add_bottle"
	MethodAddBottles       Method = "add_bottles"
	MethodAddBottlesFor    Method = "add_bottles_for"
	MethodGetBottleCount   Method = "get_bottle_count"
	MethodGetUserCount     Method = "get_user_count"
)

// ReadOnly reports whether the method never mutates state.
func (m Method) ReadOnly() bool {
	return m == MethodGetBottleCount || m == MethodGetUserCount
}

var ErrUnsigned = errors.New("types: call is not signed")

// Call is the signed envelope submitted by a caller. The caller identity is
// never part of the payload; it is recovered from the signature.
type Call struct {
	Network string          `json:"network"`
	Method  Method          `json:"method"`
	Nonce   uint64          `json:"nonce"`
	Args    json.RawMessage `json:"args,omitempty"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from *common.Address
}

// Hash covers everything except the signature.
func (c *Call) Hash() ([]byte, error) {
	payload := struct {
		Network string
		Method  Method
		Nonce   uint64
		Args    json.RawMessage
	}{c.Network, c.Method, c.Nonce, c.Args}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(b)
	return hash[:], nil
}

func (c *Call) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := c.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	c.R = new(big.Int).SetBytes(sig[:32])
	c.S = new(big.Int).SetBytes(sig[32:64])
	c.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	c.from = nil
	return nil
}

// From recovers the caller identity from the signature.
func (c *Call) From() (common.Address, error) {
	if c.from != nil {
		return *c.from, nil
	}
	if c.R == nil || c.S == nil || c.V == nil {
		return common.Address{}, ErrUnsigned
	}
	hash, err := c.Hash()
	if err != nil {
		return common.Address{}, err
	}
	r, s := c.R.Bytes(), c.S.Bytes()
	if len(r) > 32 || len(s) > 32 || c.V.Uint64() < 27 {
		return common.Address{}, errors.New("types: malformed signature")
	}
	sig := make([]byte, 65)
	copy(sig[32-len(r):32], r)
	copy(sig[64-len(s):64], s)
	sig[64] = byte(c.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, err
	}
	from := crypto.PubkeyToAddress(*pubKey)
	c.from = &from
	return from, nil
}
