package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/fizzyhq/fizzy/internal/broadcast"
	"github.com/fizzyhq/fizzy/internal/events"
	"github.com/fizzyhq/fizzy/internal/ui"
	"github.com/spf13/cobra"
)

var streamCmd = &cobra.Command{
	Use:     "stream [patterns...]",
	Short:   "Tail live update instructions",
	GroupID: "inbox",
	Long: `Tail the account's live update stream. Optional patterns narrow the
streams, e.g. "boards/*" or "cards/>". With --nats, subscribe to the raw
event bus instead of the instruction stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if natsURL, _ := cmd.Flags().GetString("nats"); natsURL != "" {
			return tailNATS(ctx, natsURL)
		}
		return tailSSE(ctx, args)
	},
}

// tailSSE connects to the server's SSE endpoint and prints each
// instruction as it arrives.
func tailSSE(ctx context.Context, patterns []string) error {
	url := strings.TrimRight(serverURL, "/") + "/v1/stream"
	if len(patterns) > 0 {
		url += "?streams=" + strings.Join(patterns, ",")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Fizzy-Account", accountID)
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	fmt.Fprintln(os.Stderr, "listening for instructions (ctrl-c to stop)")
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var msg broadcast.Message
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &msg); err != nil {
			continue
		}
		printInstruction(&msg)
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

func printInstruction(msg *broadcast.Message) {
	if jsonOutput {
		data, _ := json.Marshal(msg)
		fmt.Println(string(data))
		return
	}
	line := fmt.Sprintf("%s %s", ui.RenderAccent(msg.Instruction.String()), msg.Stream)
	if msg.Target != "" {
		line += " " + ui.RenderMuted("#"+msg.Target)
	}
	fmt.Println(line)
}

// tailNATS subscribes to the mirrored event bus and prints raw events.
func tailNATS(ctx context.Context, natsURL string) error {
	sub, err := events.NewNATSSubscriber(natsURL)
	if err != nil {
		return err
	}
	defer sub.Close()

	msgs, cancel, err := sub.Subscribe("fizzy.>")
	if err != nil {
		return err
	}
	defer cancel()

	fmt.Fprintln(os.Stderr, "listening on fizzy.> (ctrl-c to stop)")
	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-msgs:
			if !ok {
				return nil
			}
			if jsonOutput {
				fmt.Println(string(data))
				continue
			}
			var m events.Message
			if err := json.Unmarshal(data, &m); err != nil || m.Event == nil {
				fmt.Println(string(data))
				continue
			}
			fmt.Printf("%s %s %s %s by %s\n",
				ui.RenderMuted(m.Event.CreatedAt.Format("15:04:05")),
				ui.RenderAccent(m.Event.Action.String()),
				m.Event.SubjectType,
				m.Event.SubjectID,
				m.Event.ActorID,
			)
		}
	}
}

func init() {
	streamCmd.Flags().String("nats", os.Getenv("FIZZY_NATS_URL"), "subscribe to the NATS event bus at this URL instead of SSE")
}
