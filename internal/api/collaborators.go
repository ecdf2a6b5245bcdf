package api

import (
	"go.uber.org/zap"

	"go-dataset-engine/internal/model"
)

// Permission codes checked before job-creating operations.
const (
	PermPipelineCreate  = "pipeline.create"
	PermPipelineExecute = "pipeline.execute"
	PermDatasetImport   = "dataset.import"
	PermJobCancel       = "job.cancel"
)

// PermissionChecker is the external authorization collaborator. The core
// never consults it; the API layer does before invoking any job-creating
// operation.
type PermissionChecker interface {
	HasPermission(userID, permissionCode string) bool
}

// AuditSink receives one record per terminal job transition. Persistence
// is the collaborator's concern.
type AuditSink interface {
	Record(userID, actionType, resourceID, result, errorMessage string)
}

// AllowAll grants every permission. It is the default checker when no
// external authorization service is wired in.
type AllowAll struct{}

func (AllowAll) HasPermission(string, string) bool { return true }

// LogAuditSink writes audit records to the logger. It is the default sink.
type LogAuditSink struct {
	Log *zap.Logger
}

func (s LogAuditSink) Record(userID, actionType, resourceID, result, errorMessage string) {
	s.Log.Info("audit",
		zap.String("user_id", userID),
		zap.String("action", actionType),
		zap.String("resource_id", resourceID),
		zap.String("result", result),
		zap.String("error", errorMessage))
}

// auditTerminal adapts a terminal job transition into an audit record.
func (a *API) auditTerminal(j model.AsyncJob) {
	a.audit.Record(j.UserID, string(j.Type), j.ID, string(j.Status), j.ErrorMessage)
}
