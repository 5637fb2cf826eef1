/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package flogging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// DisabledLevel represents a disabled log level. Logs at this level are
// never emitted.
const DisabledLevel = zapcore.FatalLevel + 1

// NameToLevel converts a level name to a zapcore.Level. If the level name is
// unknown, zapcore.InfoLevel is returned.
func NameToLevel(level string) zapcore.Level {
	l, err := nameToLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

func nameToLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "notice":
		return zapcore.InfoLevel, nil
	case "warning", "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "panic":
		return zapcore.PanicLevel, nil
	case "fatal", "critical":
		return zapcore.FatalLevel, nil
	default:
		return DisabledLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// IsValidLevel reports whether level names a known log level.
func IsValidLevel(level string) bool {
	_, err := nameToLevel(level)
	return err == nil
}
