// Command servomux-host drives the servo firmware over a serial link, or
// runs the scheduler on the simulator when no board is attached.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
