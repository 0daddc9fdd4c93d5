package drivers

import (
	"context"
	"strings"
	"sync"
)

const (
	lcdRows = 2
	lcdCols = 16
)

// lcd1602 models a 16x2 character display. The in-memory buffer mirrors what
// the panel would show; an I2C-backed variant pushes the same buffer to the
// HD44780 controller on hardware builds.
type lcd1602 struct {
	mu      sync.Mutex
	address int
	lines   []string
}

func newLCD1602(inputs map[string]any) *lcd1602 {
	l := &lcd1602{address: 0x27}
	if v, ok := inputs["address"].(float64); ok {
		l.address = int(v)
	}
	return l
}

// Read implements sensor.Driver.
func (l *lcd1602) Read(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return map[string]any{
		"address": l.address,
		"display": strings.Join(l.lines, "\n"),
		"lines":   len(l.lines),
	}, nil
}

// DisplayText implements sensor.Displayable.
func (l *lcd1602) DisplayText(text string, clear bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if clear {
		l.lines = nil
	}
	l.write(text)
	return nil
}

// AppendText implements sensor.Displayable.
func (l *lcd1602) AppendText(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.write(text)
	return nil
}

// Clear implements sensor.Displayable.
func (l *lcd1602) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
	return nil
}

// write wraps text onto the panel, keeping the newest lcdRows lines.
// Callers must hold mu.
func (l *lcd1602) write(text string) {
	for _, line := range strings.Split(text, "\n") {
		for len(line) > lcdCols {
			l.lines = append(l.lines, line[:lcdCols])
			line = line[lcdCols:]
		}
		l.lines = append(l.lines, line)
	}
	if len(l.lines) > lcdRows {
		l.lines = l.lines[len(l.lines)-lcdRows:]
	}
}
