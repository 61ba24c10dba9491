package billing

import "go.uber.org/zap"

// stageLogger writes one structured line per pipeline stage. Every line of a
// delivery carries the same correlation id once it is known.
type stageLogger struct {
	l *zap.Logger
}

func newStageLogger(base *zap.Logger) stageLogger {
	return stageLogger{l: base.With(zap.String("component", "billing.webhook"))}
}

func (sl stageLogger) with(fields ...zap.Field) stageLogger {
	return stageLogger{l: sl.l.With(fields...)}
}

func (sl stageLogger) ok(stage string, fields ...zap.Field) {
	sl.l.Info("webhook "+stage, append(fields, zap.String("stage", stage))...)
}

func (sl stageLogger) warn(stage, msg string, fields ...zap.Field) {
	sl.l.Warn("webhook "+stage+": "+msg, append(fields, zap.String("stage", stage))...)
}

func (sl stageLogger) fail(stage string, err error, fields ...zap.Field) {
	sl.l.Error("webhook "+stage+" failed", append(fields, zap.String("stage", stage), zap.Error(err))...)
}
