package view

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/creativeprojects/mailstate/lib"
)

// Source returns the text of a named template. A missing template is reported with
// an error wrapping lib.ErrTemplateNotFound.
type Source interface {
	Lookup(name string) (string, error)
}

// MapSource holds templates in memory
type MapSource map[string]string

func (s MapSource) Lookup(name string) (string, error) {
	text, ok := s[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", lib.ErrTemplateNotFound, name)
	}
	return text, nil
}

// FSSource reads the template "name" from the file name+Extension
type FSSource struct {
	FS        fs.FS
	Extension string
}

func (s FSSource) Lookup(name string) (string, error) {
	data, err := fs.ReadFile(s.FS, name+s.Extension)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %q", lib.ErrTemplateNotFound, name)
		}
		return "", fmt.Errorf("cannot read template %q: %w", name, err)
	}
	return string(data), nil
}
