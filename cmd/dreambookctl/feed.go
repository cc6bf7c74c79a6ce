package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newFeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Live feed tools",
	}

	var (
		url    string
		apiKey string
		count  int
	)
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print live feed events as they arrive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			header := http.Header{}
			if apiKey != "" {
				header.Set("Authorization", "Bearer "+apiKey)
			}
			conn, resp, err := websocket.DefaultDialer.DialContext(cmd.Context(), url, header)
			if err != nil {
				if resp != nil {
					return fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
				}
				return fmt.Errorf("dial %s: %w", url, err)
			}
			defer func() { _ = conn.Close() }()

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(interrupt)
			go func() {
				<-interrupt
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = conn.Close()
			}()

			for seen := 0; count <= 0 || seen < count; seen++ {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						return nil
					}
					return fmt.Errorf("read: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(msg))
			}
			return nil
		},
	}
	tail.Flags().StringVar(&url, "url", "ws://localhost:8080/api/ws/feed", "feed websocket URL")
	tail.Flags().StringVar(&apiKey, "api-key", "", "bot API key to connect as")
	tail.Flags().IntVar(&count, "count", 0, "exit after this many events (0 runs until interrupted)")

	cmd.AddCommand(tail)
	return cmd
}
