package shutdown

import (
	"testing"
	"time"

	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/stretchr/testify/assert"
)

func Test_ListenForShutdown(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)

	notify := CreateGracefulShutdownChannel()
	done := make(chan bool, 1)
	done <- true

	cleanedUp := false
	ListenForShutdown(notify, done, func() {
		cleanedUp = true
	}, time.Millisecond, l)

	assert.True(t, cleanedUp)
}
