// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

package keychain

import (
	"github.com/btcsuite/btclog/v2"
)

// Subsystem defines the logging code for this package.
const Subsystem = "KCHN"

// log is a logger that is initialized with the btclog.Disabled logger.
var log btclog.Logger

// The default amount of logging is none.
func init() {
	DisableLog()
}

// DisableLog disables all logging output.
func DisableLog() {
	UseLogger(btclog.Disabled)
}

// UseLogger uses a specified Logger to output package logging info.
// Secrets are never logged; key records are identified by fingerprint.
func UseLogger(logger btclog.Logger) {
	log = logger
}
