// Package gcode runs servo scripts written in the G-code dialect used by
// 3D printer firmware (M280 and friends) against a servo controller.
package gcode

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is one parsed line
type Command struct {
	Type    byte             // 'G' or 'M', zero for a comment-only line
	Number  int              // e.g. 280 for M280
	Params  map[byte]float64 // Upper-cased parameter letters
	Comment string
}

// Has reports whether the line carried param
func (c *Command) Has(param byte) bool {
	_, ok := c.Params[param]
	return ok
}

// Get returns param, or def when absent
func (c *Command) Get(param byte, def float64) float64 {
	if v, ok := c.Params[param]; ok {
		return v
	}
	return def
}

// String formats the command word, e.g. "M280"
func (c *Command) String() string {
	if c.Type == 0 {
		return "comment"
	}
	return string(c.Type) + strconv.Itoa(c.Number)
}

// ParseLine parses one line. Blank lines give a nil command.
func ParseLine(line string) (*Command, error) {
	code := line
	var comment string
	if i := strings.IndexAny(line, ";("); i >= 0 {
		code, comment = line[:i], line[i:]
	}

	fields := strings.Fields(code)
	if len(fields) == 0 {
		if comment == "" {
			return nil, nil
		}
		return &Command{Comment: comment}, nil
	}

	cmd := &Command{
		Params:  make(map[byte]float64),
		Comment: comment,
	}

	word := strings.ToUpper(fields[0])
	if word[0] != 'G' && word[0] != 'M' {
		return nil, fmt.Errorf("expected a G or M word, got %q", fields[0])
	}
	n, err := strconv.Atoi(word[1:])
	if err != nil {
		return nil, fmt.Errorf("bad command number in %q", fields[0])
	}
	cmd.Type, cmd.Number = word[0], n

	for _, f := range fields[1:] {
		letter := upper(f[0])
		if letter < 'A' || letter > 'Z' {
			return nil, fmt.Errorf("bad parameter %q", f)
		}
		value, err := strconv.ParseFloat(f[1:], 64)
		if err != nil {
			return nil, fmt.Errorf("bad value for parameter %c: %q", letter, f[1:])
		}
		cmd.Params[letter] = value
	}
	return cmd, nil
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
