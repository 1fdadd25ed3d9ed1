package node

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

type ShutdownHandler struct {
	Component string
	StopFunc  StopFunc
}

// MonitorShutdown blocks on SIGTERM/SIGINT or the passed trigger channel,
// then runs the handlers in order. The returned channel closes once every
// handler has run, which the caller waits on before exiting.
func MonitorShutdown(triggerCh <-chan struct{}, handlers ...ShutdownHandler) <-chan struct{} {
	sigCh := make(chan os.Signal, 2)
	out := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			log.Warnf("received shutdown signal %s", sig)
		case <-triggerCh:
			log.Warn("received shutdown trigger")
		}

		log.Warn("shutting down...")
		signal.Stop(sigCh)

		for _, h := range handlers {
			if err := h.StopFunc(context.TODO()); err != nil {
				log.Errorf("shutting down %s failed: %s", h.Component, err)
				continue
			}
			log.Infof("%s shut down successfully", h.Component)
		}

		close(out)
	}()

	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	return out
}
