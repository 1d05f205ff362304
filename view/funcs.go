package view

import (
	"html/template"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultFuncs are available in every template
func DefaultFuncs() template.FuncMap {
	return template.FuncMap{
		"bytes": formatBytes,
		"date":  formatDate,
		"join":  strings.Join,
	}
}

func formatBytes(size any) string {
	switch value := size.(type) {
	case uint32:
		return humanize.Bytes(uint64(value))
	case uint64:
		return humanize.Bytes(value)
	case int:
		if value < 0 {
			return ""
		}
		return humanize.Bytes(uint64(value))
	case int64:
		if value < 0 {
			return ""
		}
		return humanize.Bytes(uint64(value))
	default:
		return ""
	}
}

// formatDate formats epoch seconds in UTC
func formatDate(epoch int64, layout string) string {
	if epoch <= 0 {
		return ""
	}
	return time.Unix(epoch, 0).UTC().Format(layout)
}
