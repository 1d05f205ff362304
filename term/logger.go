package term

import (
	"fmt"
	"strings"

	"github.com/creativeprojects/mailstate/lib"
)

type debugLogger struct {
	prefix string
}

// Logger sends the debug logs of a component to the terminal, when the level allows it
func Logger(prefix string) lib.Logger {
	return &debugLogger{prefix: prefix}
}

func (l *debugLogger) Print(a ...any) {
	Debug(l.prefix + strings.TrimSuffix(fmt.Sprint(a...), "\n"))
}

func (l *debugLogger) Println(a ...any) {
	Debug(l.prefix + strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
}

func (l *debugLogger) Printf(format string, a ...any) {
	Debug(l.prefix + strings.TrimSuffix(fmt.Sprintf(format, a...), "\n"))
}
