package gateway

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/yomolify/bt-ccxt-store/internal/infra"
)

// Mode represents the trading execution mode.
type Mode string

const (
	ModePaper Mode = "PAPER"
	ModeReal  Mode = "REAL"
)

// NewGateway returns the Gateway implementation for the configured mode.
// Real trading requires an explicit safety latch so a config typo can
// never reach a funded account.
func NewGateway(cfg *infra.Config) (Gateway, error) {
	mode := Mode(strings.ToUpper(cfg.Trading.Mode))

	slog.Info("Initializing gateway", "mode", mode)

	switch mode {
	case ModePaper:
		return NewMockGateway(), nil

	case ModeReal:
		if os.Getenv("CONFIRM_REAL_MONEY") != "true" {
			return nil, fmt.Errorf("SAFETY_GUARD: real trading requires 'CONFIRM_REAL_MONEY=true' environment variable")
		}
		slog.Info("🚨 Connecting to REAL exchange", "url", cfg.Gateway.RestURL)
		return NewClient(cfg), nil

	default:
		return nil, fmt.Errorf("unknown trading mode: %s", cfg.Trading.Mode)
	}
}
