package view

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ConsoleRenderer prints each panel as a block of text
type ConsoleRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleRenderer writes panels to out
func NewConsoleRenderer(out io.Writer) *ConsoleRenderer {
	return &ConsoleRenderer{out: out}
}

func (c *ConsoleRenderer) Render(_ context.Context, p Panel) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n", p.Title, p.Status)
	rows := [][2]string{
		{"Latitude", p.Latitude},
		{"Longitude", p.Longitude},
		{"Altitude", p.Altitude},
		{"Velocity", p.Velocity},
		{"Country", p.Country},
		{"Region", p.Region},
		{"Updated", p.UpdatedAt},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "  %-10s %s\n", row[0]+":", row[1])
	}
	fmt.Fprintf(&b, "  [t] %s  [q] Quit\n\n", p.ToggleLabel)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, b.String())
	return err
}
