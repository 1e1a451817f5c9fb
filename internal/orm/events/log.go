package events

import (
	"go.uber.org/zap"
)

// LogObserver writes notifications to a zap logger. Operations are logged at
// Info, or Warn when they fail; entity and listing events at Debug.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver creates an observer logging to logger
func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger.Named("events")}
}

func (l *LogObserver) OnOperation(e OperationEvent) {
	fields := []zap.Field{
		zap.String("operation", e.Name),
		zap.Bool("success", e.Success),
		zap.Duration("elapsed", e.Elapsed),
	}
	if e.Err != nil {
		l.logger.Warn("operation failed", append(fields, zap.Error(e.Err))...)
		return
	}
	l.logger.Info("operation completed", fields...)
}

func (l *LogObserver) OnEntityLoaded(e EntityLoadedEvent) {
	l.logger.Debug("entity loaded",
		zap.String("entity", e.Entity),
		zap.Any("id", e.Identifier),
		zap.Bool("cached", e.FromCache),
	)
}

func (l *LogObserver) OnListing(e ListingEvent) {
	l.logger.Debug("listing",
		zap.Stringer("phase", e.Phase),
		zap.String("entity", e.Entity),
		zap.Int("count", e.Count),
	)
}
