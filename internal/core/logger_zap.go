package core

import "go.uber.org/zap"

// ZapLogger adapts a zap logger to the service Logger interface.
type ZapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps l. A nil logger yields a no-op zap logger.
func NewZapLogger(l *zap.Logger) ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return ZapLogger{s: l.Sugar()}
}

func (z ZapLogger) Debug(msg string, args ...any) { z.s.Debugw(msg, args...) }
func (z ZapLogger) Info(msg string, args ...any)  { z.s.Infow(msg, args...) }
func (z ZapLogger) Warn(msg string, args ...any)  { z.s.Warnw(msg, args...) }
func (z ZapLogger) Error(msg string, args ...any) { z.s.Errorw(msg, args...) }
