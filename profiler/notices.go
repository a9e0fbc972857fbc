package profiler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	BannerStarted    = "\r\n=== System Profiler Started ===\r\n"
	NoticePressed    = "\r\n=== Button Pressed (Hold for deep sleep) ===\r\n"
	NoticeLongPress  = "\r\n=== LONG PRESS DETECTED - Entering Deep Sleep ===\r\n"
	NoticeShortPress = "\r\n=== Short Button Press - Full System Dump ===\r\n"
	NoticeStopMode   = "Entering Stop Mode...\r\n"
	NoticeWoken      = "\r\n=== Woken from Deep Sleep ===\r\n"
	NoticeLowHeap    = "WARNING: Low heap memory!\r\n"
	NoticeMalloc     = "ERROR: Malloc failed!\r\n"
)

func stackOverflowNotice(task string) string {
	return fmt.Sprintf("ERROR: Stack overflow in task: %s\r\n", task)
}

// Notifier sends short operator notices over the snapshot transport.
// Failures are counted and logged, never returned.
type Notifier struct {
	transport Transport
	timeout   time.Duration
	inst      Instruments
	logger    *slog.Logger
}

func NewNotifier(t Transport, timeout time.Duration, inst Instruments, logger *slog.Logger) *Notifier {
	return &Notifier{
		transport: t,
		timeout:   timeout,
		inst:      inst,
		logger:    logger,
	}
}

func (n *Notifier) Notify(ctx context.Context, msg string) {
	if n == nil {
		return
	}
	if err := n.transport.Transmit(ctx, []byte(msg), n.timeout); err != nil {
		n.inst.TransmitFailures.With("stage", "notice").Add(1)
		n.logger.Warn("failed to transmit notice", slog.Any("error", err))
	}
}
