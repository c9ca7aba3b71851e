package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. format is "json" (default) or "text".
func New(level string, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if strings.EqualFold(strings.TrimSpace(format), "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fields(module string, funcName string, context string, data any) logrus.Fields {
	f := logrus.Fields{
		"module":   module,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		f["data"] = data
	}
	return f
}

func LogError(logger logrus.FieldLogger, module string, funcName string, context string, data any, err error) {
	logger.WithFields(fields(module, funcName, context, data)).Error(err.Error())
}

// LogWarn is used for failed secondary effects that the caller does not see.
func LogWarn(logger logrus.FieldLogger, module string, funcName string, context string, data any, err error) {
	entry := logger.WithFields(fields(module, funcName, context, data))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn(context)
}
