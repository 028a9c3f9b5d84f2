package log

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Logger writes to a log file that can be reopened for rotation.
// It implements io.Writer so slog handlers can write through it.
type Logger struct {
	logFile    *os.File
	logMutex   sync.Mutex
	fileLogger *log.Logger
}

var (
	loggerMutex sync.Mutex
	logger      *Logger
)

func GetLogger() *Logger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	return logger
}

func SetLogger(l *Logger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if logger != nil {
		logger.Close()
	}
	logger = l
}

// NewLogger creates a new logger that writes to the specified file
func NewLogger(filename string) (*Logger, error) {
	logFile, err := openLogFile(filename)
	if err != nil {
		return nil, fmt.Errorf("ログファイルを開けませんでした: %w", err)
	}

	return &Logger{
		logFile:    logFile,
		fileLogger: log.New(logFile, "", log.LstdFlags|log.Lmicroseconds),
	}, nil
}

func openLogFile(filename string) (*os.File, error) {
	return os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
}

// Filename returns the path of the current log file
func (l *Logger) Filename() string {
	l.logMutex.Lock()
	defer l.logMutex.Unlock()
	if l.logFile == nil {
		return ""
	}
	return l.logFile.Name()
}

func (l *Logger) Close() {
	l.logMutex.Lock()
	defer l.logMutex.Unlock()

	if l.logFile != nil {
		_ = l.logFile.Close()
		l.logFile = nil
		l.fileLogger = nil
	}
}

// Write appends p to the current log file. Writes after Close are discarded.
func (l *Logger) Write(p []byte) (int, error) {
	l.logMutex.Lock()
	defer l.logMutex.Unlock()
	if l.logFile == nil {
		return len(p), nil
	}
	return l.logFile.Write(p)
}

// Log writes a message to the log file
func (l *Logger) Log(format string, v ...interface{}) {
	l.logMutex.Lock()
	defer l.logMutex.Unlock()
	if l.fileLogger != nil {
		l.fileLogger.Printf(format, v...)
	}
}

// Rotate closes and reopens the log file
func (l *Logger) Rotate() error {
	l.logMutex.Lock()
	defer l.logMutex.Unlock()

	if l.logFile == nil {
		return nil // No log file to rotate
	}
	currentLogPath := l.logFile.Name()
	_ = l.logFile.Close()

	logFile, err := openLogFile(currentLogPath)
	if err != nil {
		l.logFile = nil
		l.fileLogger = nil
		return fmt.Errorf("ログファイルを再オープンできませんでした: %w", err)
	}

	l.fileLogger = log.New(logFile, "", log.LstdFlags|log.Lmicroseconds)
	l.logFile = logFile
	return nil
}
