package camunda

import (
	"fmt"
	"time"

	"notification-engine/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// JobHandler completes or fails the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
	GetTaskType() string
	IsEnabled() bool
}

type Worker struct {
	jobWorker worker.JobWorker
	taskType  string
	logger    logger.Logger
}

// OpenWorker subscribes handler to its task type. A disabled handler is not
// opened and nil is returned.
func (c *Client) OpenWorker(handler JobHandler, maxJobsActive int, timeout time.Duration, log logger.Logger) *Worker {
	taskType := handler.GetTaskType()
	log = log.WithFields(map[string]interface{}{"taskType": taskType})

	if !handler.IsEnabled() {
		log.Info("worker disabled, skipping registration", nil)
		return nil
	}

	jobWorker := c.client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(maxJobsActive).
		Timeout(timeout).
		Name(fmt.Sprintf("%s-worker", taskType)).
		Open()

	log.Info("worker registered", map[string]interface{}{
		"maxJobsActive": maxJobsActive,
		"timeout":       timeout.String(),
	})
	return &Worker{jobWorker: jobWorker, taskType: taskType, logger: log}
}

func (w *Worker) Close() {
	if w == nil || w.jobWorker == nil {
		return
	}
	w.logger.Info("stopping worker", nil)
	w.jobWorker.Close()
	w.jobWorker = nil
}
