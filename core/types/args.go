package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// U64 decodes an unsigned 64-bit integer from either a JSON number or a
// decimal string. Negative, fractional and exponent forms are rejected.
type U64 uint64

func (u *U64) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	v, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid unsigned 64-bit integer %s", b)
	}
	*u = U64(v)
	return nil
}

// MarshalJSON renders the value as a decimal string so JavaScript clients do
// not lose precision.
func (u U64) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(u), 10))), nil
}

type SetRewardConfigArgs struct {
	AssetID   U64 `json:"assetId"`
	PerBottle U64 `json:"perBottle"`
}

type SetStationArgs struct {
	Account string `json:"account"`
	Station bool   `json:"station"`
}

type AddBottlesArgs struct {
	Amount U64 `json:"amount"`
}

type AddBottlesForArgs struct {
	User   string `json:"user"`
	Amount U64    `json:"amount"`
}

// DecodeArgs strictly decodes raw into out. Empty input decodes to the zero
// value.
func DecodeArgs(raw json.RawMessage, out interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
