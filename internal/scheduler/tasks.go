// Package scheduler provides asynq task definitions, the enqueue client, and
// the background worker for workflow housekeeping.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskPortalLinkExpiry = "workflow.portal_link.expiry"

const TaskResyncSweep = "workflow.resync.sweep"

const TaskInsightScan = "workflow.insights.scan"

type PortalLinkExpiryPayload struct {
	RecordID string `json:"recordId"`
}

func NewPortalLinkExpiryTask(payload PortalLinkExpiryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPortalLinkExpiry, data), nil
}

func ParsePortalLinkExpiryPayload(task *asynq.Task) (PortalLinkExpiryPayload, error) {
	var payload PortalLinkExpiryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PortalLinkExpiryPayload{}, err
	}
	return payload, nil
}

func NewResyncSweepTask() *asynq.Task {
	return asynq.NewTask(TaskResyncSweep, nil)
}

func NewInsightScanTask() *asynq.Task {
	return asynq.NewTask(TaskInsightScan, nil)
}
