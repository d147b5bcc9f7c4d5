package domain

import (
	"fmt"
	"strconv"
)

// StatusRule recognizes one terminal outcome in an exchange snapshot:
// the snapshot field Key must equal Value. Exchanges disagree about both
// the field name and the value ("status"/"closed" vs "result"/1), so the
// pair is configuration, never hardcoded in the state machine.
type StatusRule struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Matches evaluates the rule against a snapshot. ok is false when the
// mapped key is absent, which signals a mapping/exchange mismatch; the
// caller logs it and treats the order as still open.
func (r StatusRule) Matches(snap Snapshot) (matched, ok bool) {
	v, ok := snap.Field(r.Key)
	if !ok {
		return false, false
	}
	return valueEquals(v, r.Value), true
}

// valueEquals compares a raw snapshot value against the configured
// expected value. Config values are strings; numeric snapshot values
// (e.g. kraken's result: 1) are compared numerically.
func valueEquals(got any, want string) bool {
	switch t := got.(type) {
	case string:
		return t == want
	case float64:
		w, err := strconv.ParseFloat(want, 64)
		return err == nil && t == w
	case bool:
		w, err := strconv.ParseBool(want)
		return err == nil && t == w
	case nil:
		return false
	default:
		return fmt.Sprintf("%v", t) == want
	}
}

// StatusMappings holds the terminal-outcome recognition rules.
type StatusMappings struct {
	ClosedOrder   StatusRule `yaml:"closed_order"`
	CanceledOrder StatusRule `yaml:"canceled_order"`
}

// DefaultStatusMappings matches the unified ccxt status field.
func DefaultStatusMappings() StatusMappings {
	return StatusMappings{
		ClosedOrder:   StatusRule{Key: "status", Value: "closed"},
		CanceledOrder: StatusRule{Key: "status", Value: "canceled"},
	}
}

// OrderTypeTable maps abstract execution types to the exchange-specific
// order-type strings (stop is "stop-loss" on kraken, "stop" on bitmex).
type OrderTypeTable map[ExecType]string

// DefaultOrderTypes covers the common unified names.
func DefaultOrderTypes() OrderTypeTable {
	return OrderTypeTable{
		ExecMarket:    "market",
		ExecLimit:     "limit",
		ExecStop:      "stop",
		ExecStopLimit: "stop limit",
	}
}

// Resolve returns the exchange order-type string for t, defaulting to
// market for unknown execution types.
func (tbl OrderTypeTable) Resolve(t ExecType) string {
	if s, ok := tbl[t]; ok {
		return s
	}
	return "market"
}

// ParseExecType converts a config string into an ExecType.
func ParseExecType(s string) (ExecType, error) {
	switch s {
	case "market":
		return ExecMarket, nil
	case "limit":
		return ExecLimit, nil
	case "stop":
		return ExecStop, nil
	case "stop_limit":
		return ExecStopLimit, nil
	default:
		return ExecMarket, fmt.Errorf("unknown exec type: %q", s)
	}
}
