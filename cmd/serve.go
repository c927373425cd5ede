package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
)

var (
	// Serve command flags
	serveTransport  string
	serveChannel    int
	serveBaseURL    string
	serveConcurrent bool
)

// serveCmd runs the bridge until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge",
	Long: `Bind the RFCOMM channel, advertise the service and forward requests until
SIGINT or SIGTERM.
Examples:
  bluebridge serve
  bluebridge serve --channel 0 --base-url http://localhost:3000
  bluebridge serve --transport websocket`,
	Run: func(cmd *cobra.Command, args []string) {
		config := Container.Config
		if cmd.Flags().Changed("transport") {
			config.Transport = model.TransportMode(serveTransport)
		}
		if cmd.Flags().Changed("channel") {
			config.Channel = serveChannel
		}
		if cmd.Flags().Changed("base-url") {
			config.BaseURL = serveBaseURL
		}
		if cmd.Flags().Changed("concurrent") {
			config.Concurrent = serveConcurrent
		}

		if err := Container.InitializeBridge(); err != nil {
			Container.Logger.Error("Failed to initialize bridge: %v", err)
			Container.Close()
			os.Exit(1)
		}

		// The signal becomes the cancellation cause so draining can tell a
		// requested shutdown from a failure
		ctx, cancel := context.WithCancelCause(context.Background())
		defer cancel(nil)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			select {
			case sig := <-sigCh:
				Container.Logger.Info("Received %s", sig)
				cancel(model.ErrShutdown)
			case <-ctx.Done():
			}
		}()

		bridge := Container.BridgeService
		handle, err := bridge.Start(ctx)
		if err != nil {
			Container.Logger.Error("Failed to start bridge: %v", err)
			Container.Close()
			os.Exit(1)
		}

		fmt.Fprintf(os.Stderr, "BlueBridge listening on %s\n", handle.Endpoint)
		fmt.Fprintf(os.Stderr, "Forwarding to %s\n", Container.Config.BaseURL)
		fmt.Fprintf(os.Stderr, "Press Ctrl+C to stop\n")

		if err := bridge.Serve(ctx, handle); err != nil {
			Container.Logger.Error("Bridge stopped with error: %v", err)
			Container.Close()
			os.Exit(1)
		}
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)

	// Add flags
	serveCmd.Flags().StringVarP(&serveTransport, "transport", "t", "", "Transport (rfcomm, websocket)")
	serveCmd.Flags().IntVarP(&serveChannel, "channel", "p", 0, "RFCOMM channel (0 for any free channel)")
	serveCmd.Flags().StringVarP(&serveBaseURL, "base-url", "u", "", "Local web application base URL")
	serveCmd.Flags().BoolVar(&serveConcurrent, "concurrent", false, "Serve connections concurrently")
}
