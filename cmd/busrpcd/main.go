// Command busrpcd is a demo binary wiring a server engine and a client
// engine together over the in-process loopbus, to exercise busrpc end to
// end without a real message bus deployment.
package main

import (
	"fmt"
	"os"

	"github.com/dittobus/busrpc/cmd/busrpcd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
