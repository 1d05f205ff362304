package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	defer SetLevel(LevelInfo)

	assert.Equal(t, LevelInfo, GetLevel())
	assert.False(t, Enabled(LevelDebug))
	assert.True(t, Enabled(LevelWarn))

	SetLevel(LevelDebug)
	assert.True(t, Enabled(LevelDebug))
	assert.False(t, Enabled(LevelTrace))

	SetLevel(LevelError)
	assert.False(t, Enabled(LevelWarn))
	assert.Equal(t, "error", GetLevel().String())
	assert.Equal(t, "level(9)", Level(9).String())
}

func TestLoggerIsALibLogger(t *testing.T) {
	defer SetLevel(LevelInfo)
	SetLevel(LevelError)
	logger := Logger("test: ")
	// nothing displayed at this level, but must not fail
	logger.Print("a", 1)
	logger.Println("b")
	logger.Printf("c %d\n", 2)
}
