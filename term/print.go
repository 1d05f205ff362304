package term

import (
	"strconv"
	"sync/atomic"

	"github.com/pterm/pterm"
)

type Level int32

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var lvl atomic.Int32

func init() {
	lvl.Store(int32(LevelInfo))
}

func SetLevel(level Level) {
	lvl.Store(int32(level))
}

func GetLevel() Level {
	return Level(lvl.Load())
}

// Enabled returns true when messages of this level are displayed
func Enabled(level Level) bool {
	return level >= GetLevel()
}

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return "level(" + strconv.Itoa(int(l)) + ")"
}

func Debug(a ...any) {
	if !Enabled(LevelDebug) {
		return
	}
	pterm.FgLightCyan.Println(a...)
}

func Debugf(format string, a ...any) {
	if !Enabled(LevelDebug) {
		return
	}
	pterm.FgLightCyan.Printfln(format, a...)
}

func Info(a ...any) {
	if !Enabled(LevelInfo) {
		return
	}
	pterm.FgLightGreen.Println(a...)
}

func Infof(format string, a ...any) {
	if !Enabled(LevelInfo) {
		return
	}
	pterm.FgLightGreen.Printfln(format, a...)
}

func Warn(a ...any) {
	if !Enabled(LevelWarn) {
		return
	}
	pterm.FgYellow.Println(a...)
}

func Warnf(format string, a ...any) {
	if !Enabled(LevelWarn) {
		return
	}
	pterm.FgYellow.Printfln(format, a...)
}

func Error(a ...any) {
	pterm.FgLightRed.Println(a...)
}

func Errorf(format string, a ...any) {
	pterm.FgLightRed.Printfln(format, a...)
}

// Table renders rows under a header line
func Table(header []string, rows [][]string) error {
	data := make(pterm.TableData, 0, len(rows)+1)
	data = append(data, header)
	data = append(data, rows...)
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
