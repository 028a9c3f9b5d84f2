// Package log manages the console's log file and the default slog logger.
package log

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"zwave-console/notify"
)

// LogManager owns the log file, installs the default slog logger on it and
// rotates the file on SIGHUP.
type LogManager struct {
	logger   *Logger
	level    *slog.LevelVar
	signalCh chan os.Signal
	done     chan struct{}
}

// NewLogManager opens logFilename and makes it the destination of slog.
// Records at notifyLevel or above are also passed to notifier.
func NewLogManager(logFilename string, debug bool, notifier notify.Notifier, notifyLevel slog.Level) (*LogManager, error) {
	// ロガーのセットアップ
	logger, err := NewLogger(logFilename)
	if err != nil {
		return nil, err
	}
	SetLogger(logger)

	lm := &LogManager{
		logger:   logger,
		level:    new(slog.LevelVar),
		signalCh: make(chan os.Signal, 1),
		done:     make(chan struct{}),
	}
	lm.SetDebug(debug)

	var handler slog.Handler = slog.NewTextHandler(logger, &slog.HandlerOptions{Level: lm.level})
	if notifier != nil {
		handler = notify.NewHandler(handler, notifier, notifyLevel)
	}
	slog.SetDefault(slog.New(handler))

	// ログローテーション用のシグナルハンドリング (SIGHUP)
	signal.Notify(lm.signalCh, syscall.SIGHUP)
	go lm.rotateLoop()

	return lm, nil
}

// SetDebug switches Debug records on or off
func (lm *LogManager) SetDebug(debug bool) {
	if debug {
		lm.level.Set(slog.LevelDebug)
	} else {
		lm.level.Set(slog.LevelInfo)
	}
}

// Debug reports whether Debug records are written
func (lm *LogManager) Debug() bool {
	return lm.level.Level() <= slog.LevelDebug
}

// Rotate reopens the log file
func (lm *LogManager) Rotate() error {
	lm.logger.Log("ログファイルをローテーションします...")
	if err := lm.logger.Rotate(); err != nil {
		return err
	}
	slog.Info("Log file rotated", "file", lm.logger.Filename())
	return nil
}

func (lm *LogManager) rotateLoop() {
	for {
		select {
		case <-lm.done:
			return
		case <-lm.signalCh:
			fmt.Fprintln(os.Stderr, "SIGHUPを受信しました。ログファイルをローテーションします...")
			if err := lm.Rotate(); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "ログローテーションエラー: %v\n", err)
			}
		}
	}
}

func (lm *LogManager) Close() error {
	signal.Stop(lm.signalCh)
	close(lm.done)
	// ログファイルを閉じる
	SetLogger(nil)
	return nil
}
