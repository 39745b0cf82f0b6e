package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const (
	actorContextKey        contextKey = "audit.actor"
	invocationIDContextKey contextKey = "audit.invocation_id"
	defaultSalt                       = "toolbridge"
)

// Event captures the structured details emitted to the audit log.
type Event struct {
	Name       string
	Outcome    string
	Target     string
	Capability string
	ActorID    string
	Details    map[string]any
}

// Logger provides structured helpers for writing audit events.
type Logger struct {
	logger *slog.Logger
	salt   string
}

// Default constructs a Logger backed by the process-wide slog default logger.
// A custom hashing salt may be provided via the TOOLBRIDGE_AUDIT_SALT
// environment variable to ensure hash stability across restarts without
// leaking raw values.
func Default() *Logger {
	salt := strings.TrimSpace(os.Getenv("TOOLBRIDGE_AUDIT_SALT"))
	if salt == "" {
		salt = defaultSalt
	}
	return &Logger{logger: slog.Default(), salt: salt}
}

// WithActor records the hashed actor identifier on the context so loggers can
// include it alongside structured events.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorContextKey, actor)
}

// WithInvocationID stores an invocation identifier on the context. Outbound
// tool calls mirror it on the X-Request-Id header so remote logs correlate.
func WithInvocationID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, invocationIDContextKey, id)
}

// EnsureInvocationID returns the invocation identifier from the context,
// minting a UUIDv4 and storing it when none is present.
func EnsureInvocationID(ctx context.Context) (context.Context, string) {
	if id := InvocationID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return context.WithValue(ctx, invocationIDContextKey, id), id
}

// InvocationID extracts the invocation identifier from the context, returning
// an empty string when none is present.
func InvocationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(invocationIDContextKey).(string); ok {
		return id
	}
	return ""
}

// Info records a successful audit event.
func (l *Logger) Info(ctx context.Context, event Event) {
	l.log(ctx, slog.LevelInfo, "toolbridge.audit.info", event)
}

// Security records a security-relevant audit event.
func (l *Logger) Security(ctx context.Context, event Event) {
	l.log(ctx, slog.LevelWarn, "toolbridge.audit.security", event)
}

// Error records an audit event that resulted in a failure.
func (l *Logger) Error(ctx context.Context, event Event) {
	l.log(ctx, slog.LevelError, "toolbridge.audit.error", event)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, event Event) {
	attrs := []slog.Attr{
		slog.String("event", event.Name),
		slog.String("outcome", event.Outcome),
		slog.String("target", event.Target),
	}
	if event.Capability != "" {
		attrs = append(attrs, slog.String("capability", event.Capability))
	}
	if actor := actorFromContext(ctx, event.ActorID); actor != "" {
		attrs = append(attrs, slog.String("actor_id", actor))
	}
	if id := InvocationID(ctx); id != "" {
		attrs = append(attrs, slog.String("invocation_id", id))
	}
	if len(event.Details) > 0 {
		attrs = append(attrs, slog.Any("details", event.Details))
	}

	l.logger.LogAttrs(ctx, level, msg, attrs...)
}

// HashIdentity hashes the provided identity components using SHA-256 with the
// logger's configured salt. Empty components are ignored to maintain stability.
func (l *Logger) HashIdentity(parts ...string) string {
	h := sha256.New()
	h.Write([]byte(l.salt))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		h.Write([]byte("|"))
		h.Write([]byte(trimmed))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func actorFromContext(ctx context.Context, fallback string) string {
	if actor, ok := ctx.Value(actorContextKey).(string); ok && actor != "" {
		return actor
	}
	return fallback
}

// SanitizeDetails ensures detail values are serialisable and redactable by
// copying the provided map and coercing values into a safe format.
func SanitizeDetails(details map[string]any) map[string]any {
	if len(details) == 0 {
		return nil
	}
	sanitized := make(map[string]any, len(details))
	for key, value := range details {
		switch v := value.(type) {
		case nil:
			sanitized[key] = nil
		case fmt.Stringer:
			sanitized[key] = v.String()
		case error:
			sanitized[key] = v.Error()
		case string, bool, int, int32, int64, uint, uint32, uint64, float32, float64, []string, map[string]any:
			sanitized[key] = v
		default:
			sanitized[key] = fmt.Sprintf("%v", v)
		}
	}
	return sanitized
}
