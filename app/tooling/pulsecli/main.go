// Pulsecli inspects and verifies a beacon chain stored by beacond.
package main

import (
	"github.com/braidchain/pulse/app/tooling/pulsecli/cmd"
)

func main() {
	cmd.Execute()
}
