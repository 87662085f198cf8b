package config

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger at the configured level.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger, nil
}
