package domain

import "github.com/yomolify/bt-ccxt-store/pkg/quant"

// Balance is the account-level cash/value pair pulled from the gateway.
// It is never pushed; consumers read the last pull.
type Balance struct {
	CashMicros  quant.PriceMicros
	ValueMicros quant.PriceMicros
}

// WalletBalance is a per-currency free/total pair. Absent currencies are
// zero, since "never funded" is a normal state rather than an error.
type WalletBalance struct {
	FreeSats  quant.QtySats
	TotalSats quant.QtySats
}
