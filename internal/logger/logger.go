package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New создает логгер: JSON в production, текст для локальной разработки.
// Неизвестный уровень заменяется на info.
func New(env, level string) *logrus.Logger {
	return NewWithOutput(os.Stdout, env, level)
}

// NewWithOutput делает то же, что New, но пишет в out
func NewWithOutput(out io.Writer, env, level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if env == "production" || env == "staging" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// ForService возвращает запись, помеченную именем сервиса
func ForService(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("service", name)
}
