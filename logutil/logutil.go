package logutil

import (
	"io"
	"os"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
)

const maxRemainCnt = 3

var (
	logLevels = map[string]log.Level{
		"debug": log.DebugLevel,
		"info":  log.InfoLevel,
		"warn":  log.WarnLevel,
		"error": log.ErrorLevel}
)

// InitLog configures the standard logrus logger. With an empty logfile
// entries go to stderr, otherwise to an hourly rotated file.
func InitLog(logfile, loglevel, format string) error {
	log.SetLevel(parseLevel(loglevel))
	formatter := newFormatter(format)

	if logfile == "" {
		log.SetFormatter(formatter)
		log.SetOutput(os.Stderr)
		return nil
	}

	hook, err := newLfsHook(logfile, formatter)
	if err != nil {
		return err
	}
	log.AddHook(hook)
	log.SetOutput(io.Discard)
	return nil
}

func parseLevel(level string) log.Level {
	if l, ok := logLevels[level]; ok {
		return l
	}
	return log.WarnLevel
}

func newFormatter(format string) log.Formatter {
	if format == "json" {
		return &log.JSONFormatter{}
	}
	return &log.TextFormatter{DisableColors: true, FullTimestamp: true}
}

func newLfsHook(logName string, formatter log.Formatter) (log.Hook, error) {
	writer, err := rotatelogs.New(
		logName+".%Y%m%d%H",
		rotatelogs.WithLinkName(logName),
		rotatelogs.WithRotationTime(time.Hour),
		// WithMaxAge and WithRotationCount are mutually exclusive.
		rotatelogs.WithRotationCount(maxRemainCnt),
	)
	if err != nil {
		return nil, err
	}

	return lfshook.NewHook(lfshook.WriterMap{
		log.TraceLevel: writer,
		log.DebugLevel: writer,
		log.InfoLevel:  writer,
		log.WarnLevel:  writer,
		log.ErrorLevel: writer,
		log.FatalLevel: writer,
		log.PanicLevel: writer,
	}, formatter), nil
}
