// Package logging configures the shared logrus logger: a compact line format, optional
// rotating file output and routing of gin's writers into logrus.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/antman-dev/oauth-precommit/internal/config"
	"github.com/antman-dev/oauth-precommit/internal/util"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// MainLogName is the active log file when logging to file.
const MainLogName = "main.log"

var (
	setupOnce      sync.Once
	writerMu       sync.Mutex
	logWriter      *lumberjack.Logger
	ginInfoWriter  *io.PipeWriter
	ginErrorWriter *io.PipeWriter
)

// LogFormatter renders entries as
// [2026-10-19 14:03:11] [info ] [auth0.go:188] login attempt ended state=timed_out error=...
type LogFormatter struct{}

// logFieldOrder lists the fields printed after the message; anything else is dropped.
var logFieldOrder = []string{"state", "port", "mirror", "path", "kind", "status", "error"}

// Format renders a single log entry with custom formatting.
func (m *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	buffer := entry.Buffer
	if buffer == nil {
		buffer = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	message := strings.TrimRight(entry.Message, "\r\n")

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}

	var fieldsStr string
	if len(entry.Data) > 0 {
		var fields []string
		for _, k := range logFieldOrder {
			if v, ok := entry.Data[k]; ok {
				fields = append(fields, fmt.Sprintf("%s=%v", k, v))
			}
		}
		if len(fields) > 0 {
			fieldsStr = " " + strings.Join(fields, " ")
		}
	}

	if entry.Caller != nil {
		_, _ = fmt.Fprintf(buffer, "[%s] [%-5s] [%s:%d] %s%s\n", timestamp, level, filepath.Base(entry.Caller.File), entry.Caller.Line, message, fieldsStr)
	} else {
		_, _ = fmt.Fprintf(buffer, "[%s] [%-5s] %s%s\n", timestamp, level, message, fieldsStr)
	}
	return buffer.Bytes(), nil
}

// SetupBaseLogger configures the shared logrus instance and Gin writers.
// Logs go to stderr so stdout stays free for command output.
// It is safe to call multiple times; initialization happens only once.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stderr)
		log.SetReportCaller(true)
		log.SetFormatter(&LogFormatter{})

		gin.SetMode(gin.ReleaseMode)
		ginInfoWriter = log.StandardLogger().WriterLevel(log.DebugLevel)
		gin.DefaultWriter = ginInfoWriter
		ginErrorWriter = log.StandardLogger().WriterLevel(log.ErrorLevel)
		gin.DefaultErrorWriter = ginErrorWriter

		log.RegisterExitHandler(CloseLogOutputs)
	})
}

// ConfigureLogOutput switches the global log destination between a rotating file and stderr.
// When file logging is on and LogsMaxTotalSizeMB > 0, the oldest rotated files are pruned
// until the directory fits the limit.
func ConfigureLogOutput(cfg *config.Config) error {
	SetupBaseLogger()

	writerMu.Lock()
	defer writerMu.Unlock()

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	if !cfg.LoggingToFile {
		log.SetOutput(os.Stderr)
		return nil
	}

	logDir, err := util.ResolveLogDir(cfg)
	if err != nil {
		return fmt.Errorf("logging: resolve log directory: %w", err)
	}
	if err = os.MkdirAll(logDir, 0o700); err != nil {
		return fmt.Errorf("logging: failed to create log directory: %w", err)
	}

	activePath := filepath.Join(logDir, MainLogName)
	logWriter = &lumberjack.Logger{
		Filename:   activePath,
		MaxSize:    10,
		MaxBackups: 0,
		MaxAge:     0,
		Compress:   false,
	}
	log.SetOutput(logWriter)

	if cfg.LogsMaxTotalSizeMB > 0 {
		maxBytes := int64(cfg.LogsMaxTotalSizeMB) * 1024 * 1024
		removed, errPrune := pruneLogDir(logDir, maxBytes, activePath)
		if errPrune != nil {
			log.Warnf("logging: failed to enforce log directory size limit: %v", errPrune)
		} else if removed > 0 {
			log.Debugf("logging: removed %d old log file(s)", removed)
		}
	}
	return nil
}

// CloseLogOutputs flushes and closes the file writer and gin pipes.
func CloseLogOutputs() {
	writerMu.Lock()
	defer writerMu.Unlock()

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	if ginInfoWriter != nil {
		_ = ginInfoWriter.Close()
		ginInfoWriter = nil
	}
	if ginErrorWriter != nil {
		_ = ginErrorWriter.Close()
		ginErrorWriter = nil
	}
}
