package shutdown

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	return gracefulShutdown
}

// ListenForShutdown blocks until a signal arrives on notify or a value arrives on
// done, runs cleanup and then waits timeout before returning so in-flight work can
// drain.
func ListenForShutdown(notify chan os.Signal, done chan bool, cleanup func(), timeout time.Duration, l *zap.Logger) {
	select {
	case sig := <-notify:
		l.Sugar().Infow("Received shutdown signal", zap.String("signal", sig.String()))
	case <-done:
		l.Sugar().Infow("Received done signal")
	}
	cleanup()

	l.Sugar().Infow("Waiting for in-flight work to finish", zap.Duration("timeout", timeout))
	time.Sleep(timeout)
}
