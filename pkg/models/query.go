package models

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects which cache layer handles a submission.
type Mode int

const (
	// ModeClient routes queries through the in-process local cache.
	ModeClient Mode = iota
	// ModeServer routes queries through the remote cache endpoint.
	ModeServer
)

// String returns the mode name as used in config and CLI flags.
func (m Mode) String() string {
	switch m {
	case ModeClient:
		return "client"
	case ModeServer:
		return "server"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeServer {
		return ModeClient
	}
	return ModeServer
}

// ParseMode parses "client" or "server".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client", "client-caching":
		return ModeClient, nil
	case "server", "server-caching":
		return ModeServer, nil
	}
	return 0, fmt.Errorf("unknown mode %q (want client or server)", s)
}

// QueryRecord is a query together with the label its timing is attributed to.
type QueryRecord struct {
	Text      string `json:"text"`
	TypeLabel string `json:"type_label"`
}

// LimitConfig holds the cost options forwarded with every execution.
type LimitConfig struct {
	MaxDepth         int `json:"maxDepth" yaml:"max_depth"`
	MaxCost          int `json:"maxCost" yaml:"max_cost"`
	RequestRateLimit int `json:"requestRateLimit" yaml:"request_rate_limit"`
}

// DefaultLimits returns the limits a fresh session starts with.
func DefaultLimits() LimitConfig {
	return LimitConfig{MaxDepth: 10, MaxCost: 50, RequestRateLimit: 22}
}

// ErrInvalidLimits is returned when a limit is not strictly positive.
var ErrInvalidLimits = errors.New("limits must be positive")

// Validate checks that every limit is strictly positive.
func (l LimitConfig) Validate() error {
	if l.MaxDepth <= 0 {
		return fmt.Errorf("max depth %d: %w", l.MaxDepth, ErrInvalidLimits)
	}
	if l.MaxCost <= 0 {
		return fmt.Errorf("max cost %d: %w", l.MaxCost, ErrInvalidLimits)
	}
	if l.RequestRateLimit <= 0 {
		return fmt.Errorf("request rate limit %d: %w", l.RequestRateLimit, ErrInvalidLimits)
	}
	return nil
}
