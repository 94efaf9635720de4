package common

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ComponentLogger returns a logger scoped to the named engine component.
// When base is nil the process-wide logrus logger is used.
//
// Parameters:
//   - base: the parent logger, or nil
//   - component: the component name attached as the "component" field
//
// Returns:
//   - logrus.FieldLogger: the scoped logger
func ComponentLogger(base logrus.FieldLogger, component string) logrus.FieldLogger {
	if base == nil {
		base = logrus.StandardLogger()
	}
	return base.WithField("component", component)
}

// ConfigureLogger applies a level and output format to the process-wide logrus logger.
//
// Parameters:
//   - level: one of the logrus level names (debug, info, warn, error, ...); empty keeps the current level
//   - format: "text" or "json"; empty keeps the current formatter
//
// Returns:
//   - error: an error if the level or format is not recognised
func ConfigureLogger(level, format string) error {
	logger := logrus.StandardLogger()

	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return errors.Wrapf(err, "invalid log level %q", level)
		}
		logger.SetLevel(lvl)
	}

	switch strings.ToLower(format) {
	case "":
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Errorf("invalid log format %q", format)
	}
	return nil
}
