package main

import (
	"io"
	"log"
	"os"

	"github.com/toupcam/toupcam-go/tracelog"
	"gopkg.in/natefinch/lumberjack.v2"
)

func initLoggers(logfile string, verbose bool) (
	stderrWriter io.Writer, // where we write short messages to stderr (or to file)
	stderrLogger *log.Logger, // logger for stderrWriter
	longWriter *tracelog.MemoryWriter, // detailed protocol trace, exported by the status server
) {
	if logfile != "" {
		stderrWriter = &lumberjack.Logger{
			Filename:   logfile,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
		}
	} else {
		stderrWriter = os.Stderr
	}

	stderrLogger = log.New(stderrWriter, "", log.LstdFlags)

	var verboseWriter io.Writer
	if verbose {
		verboseWriter = stderrWriter
	}

	longWriter, err := tracelog.New(90000, 200, true, verboseWriter)
	if err != nil {
		stderrLogger.Fatalf("writer: %s", err)
	}
	return stderrWriter, stderrLogger, longWriter
}
