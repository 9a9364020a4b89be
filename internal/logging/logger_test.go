package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := NewComponentLogger(ComponentLoggerConfig{
		ComponentName: "TEST",
		Category:      "SERVICE",
		Color:         color.FgRed,
		EnabledLevels: []LogLevel{INFO, ERROR},
		Out:           &buf,
	})

	logger.Info("hello %s", "world")
	out := buf.String()

	assert.Contains(t, out, "[TEST]")
	assert.Contains(t, out, "[SERVICE]")
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "hello world")

	buf.Reset()
	logger.Debug("should not appear")
	assert.Empty(t, buf.String())
}

func TestComponentLogger_LevelMethods(t *testing.T) {
	cases := []struct {
		name  string
		call  func(l *ComponentLogger)
		level string
	}{
		{"debug", func(l *ComponentLogger) { l.Debug("x") }, "DEBUG"},
		{"info", func(l *ComponentLogger) { l.Info("x") }, "INFO"},
		{"warn", func(l *ComponentLogger) { l.Warn("x") }, "WARNING"},
		{"error", func(l *ComponentLogger) { l.Error("x") }, "ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewComponentLogger(ComponentLoggerConfig{ComponentName: "TEST", Out: &buf})
			tc.call(logger)
			assert.Contains(t, buf.String(), "["+tc.level+"]")
		})
	}
}

func TestLoggerFactory_GetLogger(t *testing.T) {
	factory := NewLoggerFactory(DEBUG)

	dispatcherLogger := factory.GetLogger("Dispatcher")
	require.NotNil(t, dispatcherLogger)
	assert.Equal(t, "Dispatcher", dispatcherLogger.name)

	workerLogger := factory.GetLogger("Worker")
	require.NotNil(t, workerLogger)

	unknown := factory.GetLogger("Something-Unrecognized")
	require.NotNil(t, unknown)
	assert.Equal(t, "CORE", unknown.category)
}

func TestConvenienceFunctions(t *testing.T) {
	var buf bytes.Buffer
	defaultFactory = NewLoggerFactory(DEBUG)
	defaultFactory.loggers["TEST"] = NewComponentLogger(ComponentLoggerConfig{ComponentName: "TEST", Out: &buf})

	LogInfo("TEST", "test message")
	assert.True(t, strings.Contains(buf.String(), "test message"))

	buf.Reset()
	LogError("TEST", "error message")
	assert.True(t, strings.Contains(buf.String(), "error message"))
}

func TestComponentLoggerConfig_DefaultLevels(t *testing.T) {
	logger := NewComponentLogger(ComponentLoggerConfig{ComponentName: "TEST"})
	assert.True(t, logger.enabled[DEBUG])
	assert.True(t, logger.enabled[INFO])
	assert.True(t, logger.enabled[WARN])
	assert.True(t, logger.enabled[ERROR])
}
