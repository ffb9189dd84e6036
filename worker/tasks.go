package worker

import (
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
)

const TypeSyncTenant = "sync:tenant"

// SyncTenantPayload identifies which connection to sync.
type SyncTenantPayload struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
}

// NewSyncTenantTask builds the queue task for a full tenant sync pass.
func NewSyncTenantTask(userID, tenantID string) (*asynq.Task, error) {
	payload, err := json.Marshal(SyncTenantPayload{UserID: userID, TenantID: tenantID})
	if err != nil {
		return nil, errors.Wrap(err, "marshalling sync payload")
	}

	return asynq.NewTask(TypeSyncTenant, payload), nil
}
