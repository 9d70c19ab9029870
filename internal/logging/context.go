package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	// Story scope
	if storyID := StoryIDFromContext(ctx); storyID != "" {
		fields = append(fields, zap.String("story.id", storyID))
	}
	if chapter := ChapterFromContext(ctx); chapter > 0 {
		fields = append(fields, zap.Int("chapter", chapter))
	}

	// Request ID
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

// Context key types
type storyCtxKey struct{}
type chapterCtxKey struct{}
type requestCtxKey struct{}

const maxIDLen = 128

// idPattern allows alphanumeric, hyphen, underscore.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateID validates a story or request ID.
func validateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%s contains invalid UTF-8", name)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, hyphen, underscore)", name)
	}
	return nil
}

// StoryIDFromContext extracts the story ID from context.
func StoryIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(storyCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithStoryID adds a story ID to context.
// Panics if storyID is empty or contains invalid characters.
func WithStoryID(ctx context.Context, storyID string) context.Context {
	if err := validateID(storyID, "storyID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, storyCtxKey{}, storyID)
}

// ChapterFromContext extracts the chapter number from context. Returns 0
// when absent.
func ChapterFromContext(ctx context.Context) int {
	if n, ok := ctx.Value(chapterCtxKey{}).(int); ok {
		return n
	}
	return 0
}

// WithChapter adds a chapter number to context.
// Panics if chapter is not positive.
func WithChapter(ctx context.Context, chapter int) context.Context {
	if chapter < 1 {
		panic(fmt.Sprintf("logging: chapter must be positive, got %d", chapter))
	}
	return context.WithValue(ctx, chapterCtxKey{}, chapter)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithRequestID adds a request ID to context.
// Panics if requestID is empty or contains invalid characters.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if err := validateID(requestID, "requestID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// loggerCtxKey is the context key for Logger.
type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a default nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}
