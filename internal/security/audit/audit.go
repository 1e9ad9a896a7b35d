package audit

import (
	"context"
	"log/slog"
	"time"
)

// Logger emits structured audit records for mutations on accounts, folders
// and files. Audit entries go through the normal slog pipeline with a fixed
// "audit" message so they can be filtered downstream.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, actorID int64, actorEmail, action, resource, resourceID, status, details string) {
	requestID := ""
	if reqID := ctx.Value("request_id"); reqID != nil {
		requestID, _ = reqID.(string)
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.Int64("actor_id", actorID),
		slog.String("actor_email", actorEmail),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogFolderMutation(ctx context.Context, actorID int64, actorEmail, action, folderName, status string) {
	al.LogAction(ctx, actorID, actorEmail, action, "folder", folderName, status, "")
}

func (al *Logger) LogUpload(ctx context.Context, actorID int64, actorEmail, filename, status string) {
	al.LogAction(ctx, actorID, actorEmail, "upload", "file", filename, status, "")
}

func (al *Logger) LogDenied(ctx context.Context, actorID int64, actorEmail, reason string) {
	al.LogAction(ctx, actorID, actorEmail, "access_denied", "api", "", "denied", reason)
}
