// skejj-engine is the child-process entry point: it reads one JSON request
// from stdin, writes one JSON response to stdout, and exits non-zero when
// the response is not ok.
package main

import (
	"fmt"
	"os"

	"github.com/sa2812/skejj/internal/engine"
)

func main() {
	if err := engine.Run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "skejj-engine: %v\n", err)
		os.Exit(1)
	}
}
