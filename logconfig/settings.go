package logconfig

import (
	"io"
	"os"

	myLogger "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const DefaultLogFile = "./log/force-bridge-sigsvr.log"

// This output format is used in the test (has terminal).
func ConfigDebugLogger() {
	// configure log facility in this test
	myLogger.SetReportCaller(true)
	myLogger.SetLevel(myLogger.DebugLevel)
	myLogger.SetFormatter(&myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

func ConfigInfoLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(&myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

// This output format is used in production.
// JSON lines go to stdout and to a rotating file. An empty file disables the
// file sink.
func ConfigProductionLogger(file string, level string) error {
	lvl := myLogger.InfoLevel
	if level != "" {
		parsed, err := myLogger.ParseLevel(level)
		if err != nil {
			return err
		}
		lvl = parsed
	}

	myLogger.SetReportCaller(false)
	myLogger.SetLevel(lvl)
	myLogger.SetFormatter(&myLogger.JSONFormatter{})

	if file == "" {
		myLogger.SetOutput(os.Stdout)
		return nil
	}
	myLogger.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   file,
		MaxSize:    100, // MB
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	}))
	return nil
}
