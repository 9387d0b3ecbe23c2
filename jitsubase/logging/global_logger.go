package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const LogsLayout = "2006-01-02 15:04:05"

// Config describes optional rotated file output. Console output is always kept.
type Config struct {
	FileName   string
	FileDir    string
	MaxSizeMb  int
	MaxBackups int
	Compress   bool
}

func (c Config) Validate() error {
	if c.FileName == "" {
		return errors.New("Logger file name can't be empty")
	}
	if c.FileDir == "" {
		return errors.New("Logger file dir can't be empty")
	}

	return nil
}

// InitGlobalLogger sets the log level and, if fileConfig is provided, tees output to a rotated file.
// Returned closer must be closed on exit to flush the file writer.
func InitGlobalLogger(levelStr string, fileConfig *Config) (io.Closer, error) {
	if levelStr != "" {
		level, err := log.ParseLevel(levelStr)
		if err != nil {
			Errorf("unknown log level %q: %v", levelStr, err)
		} else {
			log.SetLevel(level)
		}
	}
	if fileConfig == nil {
		return io.NopCloser(nil), nil
	}
	if err := fileConfig.Validate(); err != nil {
		return nil, err
	}
	if err := EnsureDir(fileConfig.FileDir); err != nil {
		return nil, fmt.Errorf("error creating log dir %s: %v", fileConfig.FileDir, err)
	}
	if !IsDirWritable(fileConfig.FileDir) {
		return nil, fmt.Errorf("log dir %s is not writable", fileConfig.FileDir)
	}
	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(fileConfig.FileDir, fileConfig.FileName),
		MaxSize:    fileConfig.MaxSizeMb,
		MaxBackups: fileConfig.MaxBackups,
		Compress:   fileConfig.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, fileWriter))
	return fileWriter, nil
}

func SetJsonFormatter() {
	log.SetFormatter(&log.JSONFormatter{})
}

func SetTextFormatter() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: LogsLayout,
	})
}

func Errorf(format string, v ...any) {
	log.Errorf(format, v...)
}

func Error(v ...any) {
	log.Errorln(v...)
}

func Infof(format string, v ...any) {
	log.Infof(format, v...)
}

func Info(v ...any) {
	log.Infoln(v...)
}

func Debugf(format string, v ...any) {
	log.Debugf(format, v...)
}

func Debug(v ...any) {
	log.Debug(v...)
}

func Warnf(format string, v ...any) {
	log.Warnf(format, v...)
}

func Warn(v ...any) {
	log.Warnln(v...)
}

func Fatal(v ...any) {
	log.Fatal(v...)
}

func Fatalf(format string, v ...any) {
	log.Fatalf(format, v...)
}
