// Package main provides the control CLI entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/pano360/internal/api/connect"
	"github.com/osa030/pano360/internal/app/notification"
)

var (
	app    = kingpin.New("pano360-ctl", "pano360 control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set PANO360_ADMIN_TOKEN env)").Envar("PANO360_ADMIN_TOKEN").String()

	// status command
	statusCmd = app.Command("status", "Get playback status")

	// start command
	startCmd   = app.Command("start", "Start a run")
	startIndex = startCmd.Flag("from", "First clip index").Default("0").Int()
	endIndex   = startCmd.Flag("to", "Exclusive end index (default: end of playlist)").Int()

	// stop command
	stopCmd = app.Command("stop", "Stop the run")

	// pause command
	pauseCmd = app.Command("pause", "Pause the live clip")

	// resume command
	resumeCmd = app.Command("resume", "Resume the live clip")

	// next command
	nextCmd = app.Command("next", "Skip to the next clip").Alias("skip")

	// previous command
	prevCmd = app.Command("prev", "Skip to the previous clip").Alias("previous")

	// jump command
	jumpCmd   = app.Command("jump", "Jump to a clip")
	jumpIndex = jumpCmd.Arg("index", "Clip index").Required().Int()

	// watch command
	watchCmd = app.Command("watch", "Watch playback notifications")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Check admin token
	if *token == "" && command != watchCmd.FullCommand() {
		fmt.Println("Error: admin token is required (use --token or PANO360_ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := apiconnect.NewControlClient(http.DefaultClient, *server, *token)
	ctx := context.Background()

	var (
		resp *apiconnect.StatusResponse
		err  error
		done string
	)

	// Execute command
	switch command {
	case statusCmd.FullCommand():
		resp, err = client.Status(ctx)
	case startCmd.FullCommand():
		req := &apiconnect.StartRequest{StartIndex: *startIndex}
		if *endIndex > 0 {
			req.EndIndex = endIndex
		}
		resp, err = client.Start(ctx, req)
		done = "Run started"
	case stopCmd.FullCommand():
		resp, err = client.Stop(ctx)
		done = "Run stopping"
	case pauseCmd.FullCommand():
		resp, err = client.Pause(ctx)
		done = "Clip paused"
	case resumeCmd.FullCommand():
		resp, err = client.Resume(ctx)
		done = "Clip resumed"
	case nextCmd.FullCommand():
		resp, err = client.Next(ctx)
		done = "Skipping to next clip"
	case prevCmd.FullCommand():
		resp, err = client.Previous(ctx)
		done = "Skipping to previous clip"
	case jumpCmd.FullCommand():
		resp, err = client.Jump(ctx, *jumpIndex)
		done = fmt.Sprintf("Jumping to clip %d", *jumpIndex)
	case watchCmd.FullCommand():
		watch(ctx, client)
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if done != "" {
		fmt.Println(done)
	}
	printStatus(os.Stdout, resp)
}

func printStatus(w io.Writer, s *apiconnect.StatusResponse) {
	fmt.Fprintln(w, "\n=== PLAYBACK STATUS ===")
	fmt.Fprintf(w, "Playlist: %s (%d clips)\n", s.Playlist, s.Clips)
	fmt.Fprintf(w, "Phase: %s\n", s.Phase)
	if !s.Running {
		fmt.Fprintln(w, "\nNo run active")
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "Session ID: %s\n", s.SessionID)
	fmt.Fprintf(w, "Loop: %v\n", s.Loop)
	fmt.Fprintf(w, "Transition Running: %v\n", s.TransitionRunning)
	if s.ClipID != "" {
		fmt.Fprintln(w, "\nCurrently Playing:")
		fmt.Fprintf(w, "  Index: %d\n", s.Index)
		fmt.Fprintf(w, "  Clip ID: %s\n", s.ClipID)
		fmt.Fprintf(w, "  Position: %.1f seconds\n", float64(s.PositionMs)/1000)
		fmt.Fprintf(w, "  Paused: %v\n", s.Paused)
	} else {
		fmt.Fprintln(w, "\nNo clip currently live")
	}
	fmt.Fprintln(w)
}

func watch(ctx context.Context, client *apiconnect.ControlClient) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nUnsubscribing...")
		cancel()
	}()

	fmt.Println("Watching notifications. Press Ctrl+C to exit.")
	err := client.Watch(ctx, func(n *notification.Notification) bool {
		printNotification(os.Stdout, n)
		return true
	})
	if err != nil && ctx.Err() == nil {
		fmt.Printf("Stream error: %v\n", err)
		os.Exit(1)
	}
}

func printNotification(w io.Writer, n *notification.Notification) {
	fmt.Fprintf(w, "[Sequence: %d] %s %s", n.SequenceNo, n.At.Format("15:04:05.000"), n.Type)
	if n.ClipID != "" {
		fmt.Fprintf(w, " clip=%s index=%d", n.ClipID, n.Index)
	}
	if n.Command != "" {
		fmt.Fprintf(w, " command=%s", n.Command)
	}
	fmt.Fprintf(w, " phase=%s", n.Phase)
	if n.Error != "" {
		fmt.Fprintf(w, " error=%q", n.Error)
	}
	fmt.Fprintln(w)
}
