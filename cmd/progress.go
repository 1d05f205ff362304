package cmd

import (
	"github.com/creativeprojects/mailstate/storage"
	"github.com/pterm/pterm"
)

type progresser struct {
	pbar *pterm.ProgressbarPrinter
}

var _ storage.Progresser = &progresser{}

func newProgresser(pbar *pterm.ProgressbarPrinter) *progresser {
	return &progresser{
		pbar: pbar,
	}
}

func (p *progresser) Increment() {
	if p.pbar == nil {
		return
	}
	p.pbar.Increment()
}

func (p *progresser) Stop() {
	if p.pbar == nil {
		return
	}
	_, _ = p.pbar.Stop()
}
