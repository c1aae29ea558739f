package storage

import "time"

type Option func(*Engine)

// WithDataFile sets the single-file persistence target. Without it the
// engine is purely in-memory.
func WithDataFile(path string) Option {
	return func(engine *Engine) {
		engine.dataFile = path
	}
}

// WithBackgroundSave enables periodic background saves instead of saving
// after every write transaction.
func WithBackgroundSave(interval time.Duration) Option {
	return func(engine *Engine) {
		engine.backgroundSave = true
		engine.saveInterval = interval
		engine.transactionSave = false
	}
}

// WithTransactionSave enables saving after every write transaction (default: true)
func WithTransactionSave(enabled bool) Option {
	return func(engine *Engine) {
		engine.transactionSave = enabled
	}
}
