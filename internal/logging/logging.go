// Package logging builds the zap logger used across the service and provides the shared
// structured field helpers.
package logging

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Structured field keys.
const (
	FieldJobID       = "job_id"
	FieldCandidateID = "candidate_id"
	FieldRunID       = "run_id"
	FieldStage       = "stage"
	FieldAgent       = "agent_name"
	FieldTeamID      = "team_id"
	FieldProvider    = "llm_provider"
	FieldModel       = "llm_model"
)

// New builds a console or JSON logger writing to stdout.
func New(json bool, debug bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	encoding := "console"

	if json {
		encoding = "json"
	}

	if debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "msg",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,
		},
	}
	return cfg.Build()
}

// WithFields safely attaches fields to logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

func JobID(id uuid.UUID) zap.Field       { return zap.String(FieldJobID, id.String()) }
func CandidateID(id uuid.UUID) zap.Field { return zap.String(FieldCandidateID, id.String()) }
func RunID(id uuid.UUID) zap.Field       { return zap.String(FieldRunID, id.String()) }
func TeamID(id uuid.UUID) zap.Field      { return zap.String(FieldTeamID, id.String()) }
func Stage(name string) zap.Field        { return zap.String(FieldStage, name) }
func Agent(name string) zap.Field        { return zap.String(FieldAgent, name) }

// LLM returns provider and model fields, omitting empty values.
func LLM(provider, model string) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if p := strings.TrimSpace(provider); p != "" {
		fields = append(fields, zap.String(FieldProvider, p))
	}
	if m := strings.TrimSpace(model); m != "" {
		fields = append(fields, zap.String(FieldModel, m))
	}
	return fields
}

// TruncateForLog shortens s to limit runes, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
