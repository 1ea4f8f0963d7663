// tiltlink: CLI entry point.
//
// A pad samples tilt and pedal input and streams fixed-size control frames
// to any number of receivers over unordered, unreliable WebRTC DataChannels.
// Receivers join through the pad's WebSocket signaling server.
//
// Run without a subcommand for interactive prompts, or use
// `tiltlink pad` / `tiltlink receiver --url ...`.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/1ureka/tiltlink/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := newRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}
