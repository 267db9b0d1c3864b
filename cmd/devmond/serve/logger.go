package serve

import (
	"github.com/sirupsen/logrus"
)

func newLogger(disableTimestamp bool, logLevel string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: disableTimestamp,
		FullTimestamp:    true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	return logger, nil
}
