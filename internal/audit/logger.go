// Package audit records operator actions taken through syncctl.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"guild-sync/backend/internal/audit/domain"
	auditrepo "guild-sync/backend/internal/audit/repository"
)

// UnknownActor is recorded when the operator cannot be identified.
const UnknownActor = "unknown"

// Actions recorded by syncctl.
const (
	ActionRequeue = "requeue"
	ActionForget  = "forget"
)

// AuditLogger writes a single audit entry.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, actor, action, resource, target, metadata string)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo auditrepo.Repository
	now  func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo. repo may be nil; then nothing is recorded.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo, now: time.Now}
}

// LogEvent writes one audit entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, actor, action, resource, target, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	if actor == "" {
		actor = UnknownActor
	}
	entry := &domain.Entry{
		ID:        uuid.New().String(),
		Actor:     actor,
		Action:    action,
		Resource:  resource,
		Target:    target,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}
