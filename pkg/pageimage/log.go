package pageimage

import "github.com/sirupsen/logrus"

var log = logrus.StandardLogger().WithField("package", "pageimage")
