package logger

import (
	"time"

	"go.uber.org/zap"
)

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

func UserID(v string) zap.Field { return zap.String("user_id", v) }

// Code logs a one-time code with everything past the second character masked.
func Code(key, v string) zap.Field { return zap.String(key, Redact(v)) }

// Redact keeps the first two characters of a secret-bearing value.
func Redact(v string) string {
	if len(v) <= 2 {
		return "****"
	}
	return v[:2] + "****"
}
