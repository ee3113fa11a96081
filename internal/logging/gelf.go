package logging

import (
	"fmt"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGraylogWriter dials a GELF UDP endpoint. Each Write becomes one GELF
// message with the first line as short_message.
func NewGraylogWriter(addr, facility string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create graylog writer for %s: %w", addr, err)
	}
	if facility != "" {
		w.Facility = facility
	}
	return w, nil
}
