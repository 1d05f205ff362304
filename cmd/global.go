package cmd

import (
	"time"

	"github.com/creativeprojects/mailstate/cfg"
)

const defaultWait = 30 * time.Second

type GlobalFlags struct {
	configFile string
	quiet      bool
	verbose    bool
	account    string
	wait       time.Duration
}

var (
	global GlobalFlags
	config *cfg.Config
)
