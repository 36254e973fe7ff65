// Command halalfinder browses and contributes to a halal-finder server from
// the terminal.
//
//	halalfinder list --group cuisine --sort rating
//	halalfinder login --email me@example.com
//	halalfinder add --name "Kabul Darbar" --cuisine Afghani --cert HMS
//	halalfinder review <id> --rating 5 --comment "Great lamb"
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
