// focus-watch tails a running focuspet's live streams in the terminal.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-focuspet/pkg/focus"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8790", "focuspet web address")
	stream := flag.String("stream", "focus", "Stream to watch: focus or mood")
	raw := flag.Bool("raw", false, "Print raw JSON")
	flag.Parse()

	if *stream != "focus" && *stream != "mood" {
		fmt.Fprintf(os.Stderr, "❌ unknown stream %q\n", *stream)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/" + *stream}
	if err := watch(ctx, u.String(), *stream, *raw); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func watch(ctx context.Context, endpoint, stream string, raw bool) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", endpoint, err)
	}
	defer conn.Close()

	fmt.Printf("📡 Watching %s\n", endpoint)

	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		if raw {
			fmt.Println(string(data))
			continue
		}
		fmt.Println(format(stream, data))
	}
}

func format(stream string, data []byte) string {
	if stream == "mood" {
		var m struct {
			Mood string `json:"mood"`
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return string(data)
		}
		return fmt.Sprintf("%s  mood=%s", time.Now().Format("15:04:05"), m.Mood)
	}

	var s focus.State
	if err := json.Unmarshal(data, &s); err != nil {
		return string(data)
	}
	if !s.FacePresent {
		return fmt.Sprintf("%s  no face", time.UnixMilli(s.TimestampMs).Format("15:04:05.000"))
	}
	return fmt.Sprintf("%s  score=%.2f conf=%.2f yaw=%+6.1f pitch=%+6.1f roll=%+6.1f",
		time.UnixMilli(s.TimestampMs).Format("15:04:05.000"),
		s.FocusScore, s.FaceConfidence, s.Yaw, s.Pitch, s.Roll)
}
