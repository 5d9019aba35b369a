package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置
type Config struct {
	Level      string // 日志级别: debug, info, warn, error
	OutputFile string // 日志文件路径（可选，为空则只输出到控制台）
	MaxSize    int    // 日志文件最大大小（MB）
	MaxBackups int    // 保留的旧日志文件数量
	MaxAge     int    // 保留旧日志文件的天数
	Compress   bool   // 是否压缩旧日志文件

	// Console 控制台输出（为 nil 时使用 os.Stdout）
	Console io.Writer
}

const timestampFormat = "06-01-02 15:04:05" // 格式: yy-mm-dd HH:MM:ss

// Init 初始化日志系统。日志目录不可创建时只输出到控制台并告警，不影响启动。
func Init(config Config) *logrus.Logger {
	logger := logrus.New()

	// 设置日志级别
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	console := config.Console
	if console == nil {
		console = os.Stdout
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timestampFormat,
		ForceColors:     console == os.Stdout,
	})

	writers := []io.Writer{console}

	// 如果配置了日志文件，添加文件输出
	var dirErr error
	if config.OutputFile != "" {
		logDir := filepath.Dir(config.OutputFile)
		if dirErr = os.MkdirAll(logDir, 0o755); dirErr == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   config.OutputFile,
				MaxSize:    config.MaxSize,
				MaxBackups: config.MaxBackups,
				MaxAge:     config.MaxAge,
				Compress:   config.Compress,
			})
		}
	}

	// 使用 MultiWriter 同时输出到控制台和文件
	logger.SetOutput(io.MultiWriter(writers...))
	if dirErr != nil {
		logger.Warnf("创建日志目录失败，仅输出到控制台: %v", dirErr)
	}
	return logger
}

// Discard 返回丢弃所有输出的 logger（测试用）
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
