package logging

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	rootOnce sync.Once
	root     *logrus.Logger
)

func newRoot() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}

// New returns a structured logger scoped to one component.
func New(component string) *logrus.Entry {
	rootOnce.Do(func() { root = newRoot() })
	return root.WithField("component", component)
}
