package scheduler

import (
	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

var _ gocron.Logger = (*gocronLogger)(nil)

// gocronLogger forwards gocron output to the charm logger.
type gocronLogger struct {
	l *log.Logger
}

func newLogger() *gocronLogger {
	return &gocronLogger{l: log.Default().WithPrefix("scheduler")}
}

func (g *gocronLogger) Debug(msg string, args ...any) { g.l.Log(log.DebugLevel, msg, args...) }
func (g *gocronLogger) Info(msg string, args ...any)  { g.l.Log(log.InfoLevel, msg, args...) }
func (g *gocronLogger) Warn(msg string, args ...any)  { g.l.Log(log.WarnLevel, msg, args...) }
func (g *gocronLogger) Error(msg string, args ...any) { g.l.Log(log.ErrorLevel, msg, args...) }
