package main

import (
	"github.com/alvmarrod/everest/internal/cli"
	"github.com/alvmarrod/everest/internal/version"
	"github.com/sirupsen/logrus"
)

func main() {
	// Configure logging
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	logrus.Debugf("Everest v%s", version.Version)

	if err := cli.Run(version.Version); err != nil {
		logrus.Fatalf("%v", err)
	}
}
