package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/painting-generator/internal/events"
	"github.com/jonathan/painting-generator/internal/observability"
	"github.com/jonathan/painting-generator/internal/progress"
)

// maxFrameBytes bounds a single SSE line.
const maxFrameBytes = 1 << 20

var (
	watchFlags clientFlags
	watchUser  string
	watchOnce  bool
)

// errStopWatch ends the stream without reporting an error.
var errStopWatch = errors.New("stop watching")

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow generation progress for a user",
	Long: `Subscribe to the server's event stream and print progress as it arrives.
A summary box is printed whenever a generation finishes or fails.`,
	RunE: runWatch,
}

func init() {
	watchFlags.register(watchCmd.Flags())
	watchCmd.Flags().StringVar(&watchUser, "user", "", "User ID to watch (required, must match the token)")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Exit after the first generation finishes")
	_ = watchCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	serverURL, token, err := watchFlags.resolve()
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(watchUser)
	if err != nil {
		return fmt.Errorf("invalid --user: %w", err)
	}

	return watch(cmd.Context(), http.DefaultClient, serverURL, token, userID, cmd.OutOrStdout(), watchOnce)
}

// watch renders the user's stream until it ends. A stream that closes before
// the server confirmed the connection is an error.
func watch(ctx context.Context, client *http.Client, serverURL, token string, userID uuid.UUID, out io.Writer, once bool) error {
	view := progress.NewView()
	printer := observability.NewPrinter(out)

	err := streamEvents(ctx, client, serverURL, token, userID, func(e events.Event) error {
		return render(view, printer, e, once)
	})
	switch {
	case errors.Is(err, errStopWatch), errors.Is(err, context.Canceled):
		return nil
	case err != nil:
		return err
	case !view.Online():
		return errors.New("event stream closed before the server confirmed the connection")
	}
	printer.PrintDisconnected()
	return nil
}

// render folds e into the view and prints it. Terminal events also print the
// generation summary.
func render(view *progress.View, printer *observability.Printer, e events.Event, once bool) error {
	if err := view.Apply(e); err != nil {
		return err
	}
	printer.PrintEvent(e)

	switch ev := e.(type) {
	case events.GenerationComplete, events.GenerationError:
		titleID, _ := events.TitleOf(ev)
		if g, ok := view.Generation(titleID); ok {
			printer.PrintGeneration(g)
		}
		if once {
			return errStopWatch
		}
	}
	return nil
}

// streamEvents reads the user's event stream and calls handle for each event
// until the stream ends, ctx is cancelled or handle returns an error.
// Frames with unknown types are skipped.
func streamEvents(ctx context.Context, client *http.Client, serverURL, token string, userID uuid.UUID, handle func(events.Event) error) error {
	endpoint := serverURL + "/api/events/" + userID.String() + "?token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to event stream: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	return readFrames(resp.Body, func(data string) error {
		e, err := events.Unmarshal([]byte(data))
		if err != nil {
			var unknown *events.UnknownTypeError
			if errors.As(err, &unknown) {
				return nil
			}
			return err
		}
		return handle(e)
	})
}

// readFrames splits an SSE body into events and passes each event's data to
// handle. Multi-line data is joined with newlines; comments and other fields
// are ignored.
func readFrames(r io.Reader, handle func(data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxFrameBytes)

	var data []string
	flush := func() error {
		if len(data) == 0 {
			return nil
		}
		payload := strings.Join(data, "\n")
		data = data[:0]
		return handle(payload)
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("event stream read failed: %w", err)
	}
	return flush()
}
