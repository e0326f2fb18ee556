//go:build linux

package cmd

import (
	"log"

	perf "github.com/hodgesds/perf-utils"
)

// countInstructions runs f and logs the number of instructions it retired on
// its thread. f still runs when the counter cannot be opened.
func countInstructions(what string, f func() error) error {
	var (
		ran  bool
		ferr error
	)
	pv, err := perf.CPUInstructions(func() error {
		ran = true
		ferr = f()
		return ferr
	})
	if !ran {
		log.Printf("%s: instruction count unavailable: %v", what, err)
		return f()
	}
	if ferr != nil {
		return ferr
	}
	if err != nil {
		log.Printf("%s: instruction count unavailable: %v", what, err)
		return nil
	}
	log.Printf("%s: %d instructions", what, pv.Value)
	return nil
}
