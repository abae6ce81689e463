package modules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"vaultix/crypto"
)

func decodeParams(raw json.RawMessage, out interface{}) *ModuleError {
	if len(bytes.TrimSpace(raw)) == 0 {
		return invalidParams("parameter object required", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

func parseIdentity(field, value string) ([20]byte, *ModuleError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return [20]byte{}, invalidParams(fmt.Sprintf("%s is required", field), nil)
	}
	id, err := crypto.ParseIdentity(trimmed)
	if err != nil {
		return [20]byte{}, invalidParams(fmt.Sprintf("invalid %s", field), err.Error())
	}
	return id, nil
}

// parseAmount accepts base-10 integers. Range and sign checks are left to the
// escrow engine so clients see the coded error.
func parseAmount(field, value string) (*big.Int, *ModuleError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, invalidParams(fmt.Sprintf("%s is required", field), nil)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidParams(fmt.Sprintf("%s must be a base-10 integer", field), value)
	}
	return amount, nil
}

// parseFeeBps accepts any integral JSON number. Values beyond int64 are
// clamped so the engine still rejects them with its coded fee error after
// the proof check.
func parseFeeBps(value json.Number) (int64, *ModuleError) {
	text := strings.TrimSpace(value.String())
	if fee, err := strconv.ParseInt(text, 10, 64); err == nil {
		return fee, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, invalidParams("feeBps must be an integer", text)
	}
	if !math.IsInf(f, 0) && f != math.Trunc(f) {
		return 0, invalidParams("feeBps must be an integer", text)
	}
	switch {
	case math.Abs(f) < math.MaxInt64:
		return int64(f), nil
	case f > 0:
		return math.MaxInt64, nil
	default:
		return math.MinInt64, nil
	}
}

func requireUint64(field string, value *uint64) (uint64, *ModuleError) {
	if value == nil {
		return 0, invalidParams(fmt.Sprintf("%s is required", field), nil)
	}
	return *value, nil
}

func requireUint32(field string, value *uint32) (uint32, *ModuleError) {
	if value == nil {
		return 0, invalidParams(fmt.Sprintf("%s is required", field), nil)
	}
	return *value, nil
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
