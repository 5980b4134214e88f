package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
)

func TestMockLoggerCaptures(t *testing.T) {
	ml := NewMockLogger()

	ml.Info("snapshot swapped", logging.String("version", "v2"))
	ml.Warn("endpoint slow")

	assert.True(t, ml.HasMessage("info", "snapshot swapped"))
	assert.True(t, ml.HasMessage("warn", "endpoint slow"))
	assert.False(t, ml.HasMessage("error", "endpoint slow"))
	assert.Len(t, ml.Messages(), 2)
}

func TestMockLoggerChildrenShareRecorder(t *testing.T) {
	ml := NewMockLogger()

	ml.Named("cache").With(logging.String("k", "v")).Info("hit")

	assert.True(t, ml.HasMessage("info", "hit"))
}
