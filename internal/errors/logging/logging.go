// Package logging turns AppError values into structured log fields.
package logging

import (
	"context"
	"sort"
	"strings"
	"time"

	apperrors "CSU/internal/errors"
	"CSU/internal/logger"
)

// stderrTailLines bounds how much captured client output reaches the log.
const stderrTailLines = 5

var reservedMetadataKeys = map[string]struct{}{
	"error_code":     {},
	"error_category": {},
	"error_message":  {},
	"operation":      {},
	"module":         {},
	"recoverable":    {},
	"error_time":     {},
	"error":          {},
	"run_id":         {},
	"step":           {},
}

// Error logs msg at error level. Structured errors contribute their code,
// category and metadata; the run id and step come from ctx.
func Error(ctx context.Context, log logger.Logger, msg string, err error) {
	if log == nil {
		return
	}
	if appErr, ok := apperrors.As(err); ok {
		log.ErrorContext(ctx, msg, Fields(appErr)...)
		return
	}
	if err != nil {
		log.ErrorContext(ctx, msg, logger.Error(err))
		return
	}
	log.ErrorContext(ctx, msg)
}

// Fields converts an AppError into log fields. Metadata keys are emitted in
// sorted order and SQL client stderr is cut to its last lines.
func Fields(appErr *apperrors.AppError) []logger.Field {
	if appErr == nil {
		return nil
	}

	fields := make([]logger.Field, 0, len(appErr.Metadata)+8)

	if appErr.Code != "" {
		fields = append(fields, logger.String("error_code", appErr.Code))
	}
	if appErr.Category != "" {
		fields = append(fields, logger.String("error_category", string(appErr.Category)))
	}
	if appErr.Message != "" {
		fields = append(fields, logger.String("error_message", appErr.Message))
	}
	if appErr.Operation != "" {
		fields = append(fields, logger.String("operation", appErr.Operation))
	}
	if appErr.Module != "" {
		fields = append(fields, logger.String("module", appErr.Module))
	}
	if appErr.Err != nil {
		fields = append(fields, logger.Error(appErr.Err))
	}
	if appErr.Recoverable {
		fields = append(fields, logger.Bool("recoverable", true))
	}
	fields = append(fields, logger.String("error_time", appErr.TimestampOrNow().Format(time.RFC3339Nano)))

	keys := make([]string, 0, len(appErr.Metadata))
	for k := range appErr.Metadata {
		if _, reserved := reservedMetadataKeys[k]; !reserved {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := appErr.Metadata[k]
		if text, ok := v.(string); ok && k == "stderr" {
			v = tail(text, stderrTailLines)
		}
		fields = append(fields, logger.Any(k, v))
	}

	return fields
}

func tail(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
