package util

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const LOG_BUFFER_SIZE = 1000

var (
	ErrLogNotInitialized      = errors.New("log object is not initialized yet")
	LOG_FOLDER_NAME_WITH_PATH = ".." + string(os.PathSeparator) + "log"
	globalLogLevel            atomic.Int32
)

const (
	LOG_LEVEL_ERROR = iota + 1
	LOG_LEVEL_WARN
	LOG_LEVEL_INFO
	LOG_LEVEL_DEBUG
)

func init() {
	globalLogLevel.Store(LOG_LEVEL_INFO)
}

type MetricsLogger struct {
	logBuffer         chan LeveledLogger
	handle            *os.File
	wg                *sync.WaitGroup
	mu                sync.RWMutex
	loggerInitialized atomic.Bool
	console           bool
	zapLogger         *zap.Logger
}

type LeveledLogger struct {
	level  int
	logMsg string
	fields []zap.Field
}

// Init opens logFileName inside the log folder and starts the writer
// goroutine. With console set, entries are also written to stderr.
func (m *MetricsLogger) Init(logFileName string, rewrite bool, console bool) error {

	var (
		err             error
		fileWithRelPath string
	)
	m.wg = new(sync.WaitGroup)
	m.logBuffer = make(chan LeveledLogger, LOG_BUFFER_SIZE)
	m.console = console

	m.handle = nil
	fileWithRelPath = LOG_FOLDER_NAME_WITH_PATH + string(os.PathSeparator) + logFileName

	flags := os.O_RDWR | os.O_CREATE | os.O_APPEND
	if rewrite {
		flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	}
	m.handle, err = os.OpenFile(fileWithRelPath, flags, 0666)
	if err != nil {
		return err
	}

	m.zapLoggerInit()

	m.wg.Add(1)
	go m.logWritter()

	m.loggerInitialized.Store(true)
	return nil
}

func (m *MetricsLogger) zapLoggerInit() {

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder

	config.EncodeLevel = zapcore.CapitalLevelEncoder //To Print level in Uppercase.
	fileEncoder := zapcore.NewConsoleEncoder(config) //To Print Lines in non json format.

	cores := []zapcore.Core{
		zapcore.NewCore(fileEncoder, zapcore.AddSync(m.handle), GlobalLogLevelSetter()),
	}
	if m.console {
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.Lock(os.Stderr), GlobalLogLevelSetter()))
	}

	m.zapLogger = zap.New(zapcore.NewTee(cores...))
}

func GlobalLogLevelSetter() zapcore.Level {
	switch globalLogLevel.Load() {
	case LOG_LEVEL_ERROR:
		return zapcore.ErrorLevel
	case LOG_LEVEL_WARN:
		return zapcore.WarnLevel
	case LOG_LEVEL_DEBUG:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func (m *MetricsLogger) logWritter() {
	for logdata := range m.logBuffer {
		switch logdata.level {
		case LOG_LEVEL_ERROR:
			m.zapLogger.Error(logdata.logMsg, logdata.fields...)
		case LOG_LEVEL_WARN:
			m.zapLogger.Warn(logdata.logMsg, logdata.fields...)
		case LOG_LEVEL_INFO:
			m.zapLogger.Info(logdata.logMsg, logdata.fields...)
		case LOG_LEVEL_DEBUG:
			m.zapLogger.Debug(logdata.logMsg, logdata.fields...)
		}
	}
	m.zapLogger.Sync()
	m.wg.Done()
}

func (m *MetricsLogger) LogEvent(v ...interface{}) error {
	var msg string
	var level int
	var ok bool

	if len(v) == 1 {
		level = LOG_LEVEL_INFO
		msg = fmt.Sprint(v[0])

	} else if len(v) > 1 {
		level, ok = v[0].(int)
		if ok && validLevel(level) {
			msg = fmt.Sprintf("%v", v[1:])
		} else {
			level = LOG_LEVEL_INFO
			msg = fmt.Sprintf("%v", v)
		}
		msg = msg[1 : len(msg)-1]
	}

	return m.enqueue(LeveledLogger{level: level, logMsg: msg})
}

// LogFields logs msg with structured zap fields.
func (m *MetricsLogger) LogFields(level int, msg string, fields ...zap.Field) error {
	if !validLevel(level) {
		level = LOG_LEVEL_INFO
	}
	return m.enqueue(LeveledLogger{level: level, logMsg: msg, fields: fields})
}

func (m *MetricsLogger) enqueue(lobj LeveledLogger) error {
	if m == nil || !m.loggerInitialized.Load() {
		return ErrLogNotInitialized
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loggerInitialized.Load() {
		return ErrLogNotInitialized
	}
	m.logBuffer <- lobj
	return nil
}

func (m *MetricsLogger) DeInit() {

	if !m.loggerInitialized.Load() {
		return
	}

	m.mu.Lock()
	if !m.loggerInitialized.Swap(false) {
		m.mu.Unlock()
		return
	}
	close(m.logBuffer)
	m.mu.Unlock()

	m.wg.Wait()

	m.handle.Close()
}

func validLevel(level int) bool {
	return level == LOG_LEVEL_ERROR || level == LOG_LEVEL_WARN || level == LOG_LEVEL_INFO || level == LOG_LEVEL_DEBUG
}

func SetCommonLoggerAttributes(GlobalLogLevel int) {
	if !validLevel(GlobalLogLevel) {
		GlobalLogLevel = LOG_LEVEL_INFO
	}
	globalLogLevel.Store(int32(GlobalLogLevel))
}

// ParseLogLevel maps a level name to one of the LOG_LEVEL constants.
func ParseLogLevel(name string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		return LOG_LEVEL_ERROR, nil
	case "warn", "warning":
		return LOG_LEVEL_WARN, nil
	case "", "info":
		return LOG_LEVEL_INFO, nil
	case "debug":
		return LOG_LEVEL_DEBUG, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

func SetLoggerPath(logPath string) {
	LOG_FOLDER_NAME_WITH_PATH = logPath
}

func CheckAndCreateLogFolder(FolderNameWithPath string) {
	_, err := os.Stat(FolderNameWithPath)

	if os.IsNotExist(err) {
		err := os.MkdirAll(FolderNameWithPath, 0755)
		if err != nil {
			fmt.Println("Failed to create the log folder and Mkdir err :: ", err)
		}
	}
}
