package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLogsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "production", "debug")

	ForService(log, "exchanges").WithField("exchange_id", "abc").Info("Обмен завершён")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "exchanges", entry["service"])
	assert.Equal(t, "abc", entry["exchange_id"])
	assert.Equal(t, "Обмен завершён", entry["msg"])
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestLocalLogsText(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "local", "loud")

	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	log.Debug("скрыто")
	assert.Empty(t, buf.String())

	log.Warn("видно")
	assert.Contains(t, buf.String(), "видно")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}
