//go:build !debug

package hierarchy

import "log"

// assertInvariants logs violations in release builds. Build with -tags debug
// to panic instead.
func assertInvariants(logger *log.Logger, err error) {
	if err != nil {
		logger.Printf("ERROR: %v", err)
	}
}
