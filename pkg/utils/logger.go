// Package utils предоставляет логгер и вспомогательные функции приложения.
//
// Логгер - тонкий фасад над github.com/phuslu/log:
//
//	utils.Info("Tool registered", "tool", name, "params", n)
//
// До вызова InitLogger все сообщения отбрасываются (тесты остаются тихими).
// Thread-safe.
package utils

import (
	"io"
	"os"
	"sync"

	"github.com/phuslu/log"
)

// LogOptions - параметры инициализации логгера.
type LogOptions struct {
	Level string    // debug, info, warn, error
	File  string    // Пусто - только консоль
	Out   io.Writer // Консольный вывод, по умолчанию os.Stderr
}

var (
	logMutex sync.RWMutex
	logger   *log.Logger
	fileOut  *log.FileWriter
)

// InitLogger настраивает глобальный логгер.
//
// Повторный вызов переинициализирует логгер (закрывая предыдущий файл).
func InitLogger(opts LogOptions) error {
	logMutex.Lock()
	defer logMutex.Unlock()

	closeFileLocked()

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	var writer log.Writer = &log.ConsoleWriter{
		Writer:      out,
		ColorOutput: out == os.Stderr && log.IsTerminal(os.Stderr.Fd()),
	}

	if opts.File != "" {
		fileOut = &log.FileWriter{
			Filename:   opts.File,
			MaxSize:    50 << 20,
			MaxBackups: 3,
		}
		writer = &log.MultiEntryWriter{writer, fileOut}
	}

	logger = &log.Logger{
		Level:  log.ParseLevel(opts.Level),
		Caller: 0,
		Writer: writer,
	}

	return nil
}

// Info - информационное сообщение.
func Info(msg string, keyvals ...any) {
	write(log.InfoLevel, msg, keyvals...)
}

// Error - сообщение об ошибке.
func Error(msg string, keyvals ...any) {
	write(log.ErrorLevel, msg, keyvals...)
}

// Debug - отладочное сообщение.
func Debug(msg string, keyvals ...any) {
	write(log.DebugLevel, msg, keyvals...)
}

// Warn - предупреждение.
func Warn(msg string, keyvals ...any) {
	write(log.WarnLevel, msg, keyvals...)
}

// write формирует запись key=value и отдаёт её в phuslu/log.
//
// Нечётный хвост keyvals отбрасывается, как и в прежнем файловом логгере.
func write(level log.Level, msg string, keyvals ...any) {
	logMutex.RLock()
	defer logMutex.RUnlock()

	if logger == nil {
		return
	}

	entry := logger.WithLevel(level)
	if entry == nil {
		return
	}

	if len(keyvals)%2 != 0 {
		keyvals = keyvals[:len(keyvals)-1]
	}
	entry.KeysAndValues(keyvals...).Msg(msg)
}

// Close закрывает лог-файл.
//
// Вызывается через defer в main().
func Close() {
	logMutex.Lock()
	defer logMutex.Unlock()

	closeFileLocked()
	logger = nil
}

func closeFileLocked() {
	if fileOut != nil {
		_ = fileOut.Close()
		fileOut = nil
	}
}
