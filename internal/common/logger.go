package common

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ServiceIdentifier interface {
	ID() string
}

// ServiceLogger provides structured logging for DI services. Every event
// carries the service id.
type ServiceLogger struct {
	id     string
	logger zerolog.Logger
}

var (
	debugMu       sync.RWMutex
	debugServices map[string]struct{}
)

// NewServiceLogger creates a new logger for a service
func NewServiceLogger(svc ServiceIdentifier) *ServiceLogger {
	return &ServiceLogger{
		id:     svc.ID(),
		logger: log.With().Str("service", svc.ID()).Logger(),
	}
}

// SetupLogging sets the global level and, for dev, human readable output.
// services is a comma separated allow list for debug events; empty allows all.
func SetupLogging(env, level, services string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	EnableDebugFor(services)
}

func EnableDebugFor(services string) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugServices = nil
	for _, s := range strings.Split(services, ",") {
		if s = strings.TrimSpace(s); s != "" {
			if debugServices == nil {
				debugServices = make(map[string]struct{})
			}
			debugServices[s] = struct{}{}
		}
	}
}

func debugEnabled(id string) bool {
	debugMu.RLock()
	defer debugMu.RUnlock()
	if debugServices == nil {
		return true
	}
	_, ok := debugServices[id]
	return ok
}

func (l *ServiceLogger) Info() *zerolog.Event {
	return l.logger.Info()
}

func (l *ServiceLogger) Error() *zerolog.Event {
	return l.logger.Error()
}

func (l *ServiceLogger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Debug returns nil, a no-op event, for services outside the allow list.
func (l *ServiceLogger) Debug() *zerolog.Event {
	if !debugEnabled(l.id) {
		return nil
	}
	return l.logger.Debug()
}
