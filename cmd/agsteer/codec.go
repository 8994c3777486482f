package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/san-kum/agsteer/internal/config"
	"github.com/san-kum/agsteer/internal/pgn"
)

// parseHex accepts bytes with or without separators, e.g. "80 81 7f fc"
// or "80:81:7f:fc".
func parseHex(args []string) ([]byte, error) {
	s := strings.Join(args, "")
	s = strings.NewReplacer(" ", "", ":", "", "\t", "", "0x", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bad hex: %w", err)
	}
	return b, nil
}

// decodeFrame returns the message name and its decoded body.
func decodeFrame(b []byte) (string, any, error) {
	id, err := pgn.PeekPGN(b)
	if err != nil {
		return "", nil, err
	}
	switch id {
	case pgn.PGNSteerConfig:
		v, err := pgn.DecodeSteerConfig(b)
		return "steer_config", v, err
	case pgn.PGNSteerSettings:
		v, err := pgn.DecodeSteerSettings(b)
		return "steer_settings", v, err
	case pgn.PGNSteerTelemetry:
		v, err := pgn.DecodeSteerTelemetry(b)
		return "steer_telemetry", v, err
	case pgn.PGNSteerData:
		v, err := pgn.DecodeSteerData(b)
		return "steer_data", v, err
	}
	return "", nil, fmt.Errorf("unsupported pgn %d", id)
}

func encodeFrame(cfg *config.Config, what string) ([]byte, error) {
	s := cfg.Snapshot()
	switch what {
	case "settings":
		return pgn.EncodeSteerSettings(s.SteerSettings), nil
	case "config":
		return pgn.EncodeSteerConfig(s.SteerConfig), nil
	}
	return nil, fmt.Errorf("unknown frame %q, want settings or config", what)
}
