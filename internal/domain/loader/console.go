package loader

import (
	"errors"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

var errTooManyTimers = errors.New("too many pending timers")

// newConsole forwards console output to the extension's logger
func (m *gojaModule) newConsole() *goja.Object {
	console := m.vm.NewObject()
	_ = console.Set("log", m.makeConsoleFunc("log"))
	_ = console.Set("info", m.makeConsoleFunc("info"))
	_ = console.Set("debug", m.makeConsoleFunc("debug"))
	_ = console.Set("warn", m.makeConsoleFunc("warn"))
	_ = console.Set("error", m.makeConsoleFunc("error"))
	return console
}

// makeConsoleFunc creates a console function
func (m *gojaModule) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")
		field := zap.String("source", "console")

		switch level {
		case "debug":
			m.logger.Debug(msg, field)
		case "warn":
			m.logger.Warn(msg, field)
		case "error":
			m.logger.Error(msg, field)
		default:
			m.logger.Info(msg, field)
		}
		return goja.Undefined()
	}
}
