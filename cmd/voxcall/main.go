// voxcall is a headless conversation client. It resolves an assistant by slug
// against a running falavox server, opens the realtime session, and prints
// state transitions until interrupted. Useful for smoke-testing a deployment
// without a browser.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/falavox/falavox/internal/apiclient"
	"github.com/falavox/falavox/internal/convai"
	"github.com/falavox/falavox/internal/sessionctl"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "falavox server base URL")
	slug := flag.String("slug", "", "assistant slug to talk to")
	duration := flag.Duration("duration", 0, "end the session after this long (0 = until interrupted)")
	flag.Parse()

	if *slug == "" {
		log.Fatalf("-slug is required")
	}

	client := apiclient.New(apiclient.Config{BaseURL: *serverURL})

	dialer := func(ctx context.Context, signedURL string, callbacks convai.Callbacks) (sessionctl.Session, error) {
		return convai.Dial(ctx, signedURL, callbacks)
	}

	// Headless runs have no microphone prompt; permission is always granted.
	permission := func(context.Context) (bool, error) { return true, nil }

	observer := func(tr sessionctl.Transition) {
		if tr.Reason != "" {
			log.Printf("state=%s mode=%s attempt=%s (%s)", tr.State, tr.Mode, tr.AttemptID, tr.Reason)
			return
		}
		log.Printf("state=%s mode=%s attempt=%s", tr.State, tr.Mode, tr.AttemptID)
	}

	controller := sessionctl.New(*slug, permission, client, dialer, observer)
	controller.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if *duration > 0 {
		select {
		case <-sigCh:
		case <-time.After(*duration):
			log.Printf("duration elapsed")
		}
	} else {
		<-sigCh
	}

	controller.End()

	// Give the socket teardown a moment before exiting.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if state, _ := controller.State(); state == sessionctl.StateIdle {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	log.Printf("session ended")
}
