// internal/common/camunda/worker.go
package camunda

import (
	"lending-engine/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler is a worker that opens its own job subscription.
type JobHandler interface {
	Register(client zbc.Client)
	Close()
}

// WorkerSet starts and stops a group of job handlers against one client.
type WorkerSet struct {
	client   *Client
	handlers map[string]JobHandler
	logger   logger.Logger
}

func NewWorkerSet(client *Client, log logger.Logger) *WorkerSet {
	return &WorkerSet{
		client:   client,
		handlers: make(map[string]JobHandler),
		logger:   log.WithFields(map[string]interface{}{"component": "camunda"}),
	}
}

// Add registers handler under taskType and opens it immediately.
func (w *WorkerSet) Add(taskType string, handler JobHandler) {
	handler.Register(w.client.GetClient())
	w.handlers[taskType] = handler
	w.logger.Info("worker started", map[string]interface{}{"taskType": taskType})
}

func (w *WorkerSet) Len() int {
	return len(w.handlers)
}

// Stop closes every handler and then the client.
func (w *WorkerSet) Stop() {
	for taskType, h := range w.handlers {
		h.Close()
		w.logger.Info("worker stopped", map[string]interface{}{"taskType": taskType})
	}
	if err := w.client.Close(); err != nil {
		w.logger.Error("Error closing Zeebe client", map[string]interface{}{"error": err.Error()})
	}
}
