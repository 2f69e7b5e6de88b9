package logging

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, zerolog.WarnLevel, Level(0, false))
	assert.Equal(t, zerolog.InfoLevel, Level(1, false))
	assert.Equal(t, zerolog.DebugLevel, Level(2, false))
	assert.Equal(t, zerolog.TraceLevel, Level(5, false))
	assert.Equal(t, zerolog.ErrorLevel, Level(3, true))
}

func TestSetupLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	SetupLoggerTo(&buf, 2, false)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.WarnLevel) })

	logger := GetLogger("walk")
	LogDuration(logger, time.Now(), "scan")

	out := buf.String()
	assert.Contains(t, out, `"component":"walk"`)
	assert.Contains(t, out, `"operation":"scan"`)
}
