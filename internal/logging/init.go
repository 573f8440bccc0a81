package logging

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func Init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return "", fmt.Sprintf(" %s:%d", filepath.Base(f.File), f.Line)
		},
	})
	logrus.SetReportCaller(true)
	logrus.SetLevel(level())
}

func level() logrus.Level {
	if viper.GetBool("debug") || viper.GetBool("verbose") {
		return logrus.DebugLevel
	}
	if raw := viper.GetString("log-level"); raw != "" {
		parsed, err := logrus.ParseLevel(raw)
		if err != nil {
			logrus.Fatalf("parsing log level: %v", err)
		}
		return parsed
	}
	return logrus.InfoLevel
}
