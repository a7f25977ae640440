//go:build debug

package hierarchy

import "log"

// assertInvariants panics: a broken hierarchy is a programming error.
func assertInvariants(logger *log.Logger, err error) {
	if err != nil {
		logger.Printf("ERROR: %v", err)
		panic(err)
	}
}
