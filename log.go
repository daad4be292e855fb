package storyboard

import "go.uber.org/zap"

// loggerOrNop returns l, or a no-op logger when l is nil.
func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
