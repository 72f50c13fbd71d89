package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlesng35/workpass/internal/auditctx"
)

// recordAudit logs the supplied entry while tolerating audit failures. Actor
// IP and client default to the request actor carried in ctx.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	if actor, ok := auditctx.FromContext(ctx); ok {
		if entry.ActorID == nil && actor.UserID != "" {
			id := actor.UserID
			entry.ActorID = &id
		}
		if entry.IPAddress == "" {
			entry.IPAddress = actor.IPAddress
		}
		if entry.Client == "" {
			entry.Client = actor.Client()
		}
	}
	if err := audit.Log(ctx, entry); err != nil {
		audit.log.Warn("audit write failed", zap.String("action", entry.Action), zap.Error(err))
	}
}
