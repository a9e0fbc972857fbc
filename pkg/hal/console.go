package hal

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

const (
	clickHold = 200 * time.Millisecond
	longHold  = 3500 * time.Millisecond
)

// DriveFromReader turns console lines into button activity. Recognised
// commands are press, release, click and long.
func DriveFromReader(ctx context.Context, r io.Reader, pin *SimPin, logger *slog.Logger) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cmd := strings.ToLower(strings.TrimSpace(scanner.Text()))
		switch cmd {
		case "":
			continue
		case "press", "p":
			pin.Press()
		case "release", "r":
			pin.Release()
		case "click", "c":
			hold(ctx, pin, clickHold)
		case "long", "l":
			hold(ctx, pin, longHold)
		default:
			logger.Warn("Unknown button command", slog.String("command", cmd))
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return scanner.Err()
}

func hold(ctx context.Context, pin *SimPin, d time.Duration) {
	pin.Press()
	defer pin.Release()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
