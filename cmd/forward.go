package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bluebridge/bluebridge-go/internal/infrastructure/transport"
)

var (
	// Forward command flags
	forwardVia     string
	forwardTimeout time.Duration
)

// forwardCmd sends one message through the request pipeline
var forwardCmd = &cobra.Command{
	Use:   "forward [message]",
	Short: "Forward one message and print the response",
	Long: `Decode one bridge message and forward it to the local web application, printing
the raw response body. The message is read from stdin when not given.
With --via the message is sent to a running bridge over the websocket transport.
Examples:
  bluebridge forward '{"path":"/games","request":"GET"}'
  echo '{"path":"/info","request":"POST","options":{"x":1}}' | bluebridge forward
  bluebridge forward --via ws://127.0.0.1:8765/ '{"path":"/watch","request":"GET"}'`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var message []byte
		if len(args) == 1 {
			message = []byte(args[0])
		} else {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: Failed to read message: %v\n", err)
				os.Exit(1)
			}
			message = []byte(strings.TrimSpace(string(data)))
		}

		ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
		defer cancel()

		var body []byte
		var err error
		if forwardVia != "" {
			body, err = forwardViaBridge(ctx, forwardVia, message, Container.Config.BufferSize)
		} else {
			body, err = forwardLocal(ctx, message)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			Container.Close()
			os.Exit(1)
		}

		os.Stdout.Write(body)
		if len(body) > 0 && body[len(body)-1] != '\n' {
			fmt.Println()
		}
	},
}

// forwardLocal runs the decode and forward steps in-process
func forwardLocal(ctx context.Context, message []byte) ([]byte, error) {
	request, err := Container.Decoder.Decode(message)
	if err != nil {
		return nil, err
	}
	response, err := Container.Forwarder.Forward(ctx, request)
	if err != nil {
		return nil, err
	}
	Container.Logger.Debug("Local service answered %d", response.StatusCode)
	return response.Body, nil
}

// forwardViaBridge sends message to a running bridge and collects its reply
func forwardViaBridge(ctx context.Context, url string, message []byte, bufferSize int) ([]byte, error) {
	conn, err := transport.DialWebSocket(ctx, url)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.Write(message); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	reply, err := transport.ReadReply(ctx, conn, bufferSize)
	if err != nil {
		return nil, fmt.Errorf("no reply from bridge: %w", err)
	}
	return reply, nil
}

func init() {
	RootCmd.AddCommand(forwardCmd)

	// Add flags
	forwardCmd.Flags().StringVar(&forwardVia, "via", "", "WebSocket URL of a running bridge")
	forwardCmd.Flags().DurationVar(&forwardTimeout, "timeout", 30*time.Second, "Time to wait for the response")
}
