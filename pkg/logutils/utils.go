package logutils

import "github.com/sirupsen/logrus"

var log = logrus.StandardLogger()

// SetLoggerLevel sets the level of the standard logger, falling back to
// info when the level cannot be parsed.
func SetLoggerLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.Warnf("invalid log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
}
