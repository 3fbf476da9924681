package alerting

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadRecipients reads a phonebook file. See ParseRecipients.
func LoadRecipients(path string, field int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open phonebook: %w", err)
	}
	defer f.Close()
	return ParseRecipients(f, field)
}

// ParseRecipients returns the address in the given comma separated field of
// every line. Lines starting with # and blank lines are skipped, as are lines
// too short to carry the field.
func ParseRecipients(r io.Reader, field int) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		if field < 0 || field >= len(parts) {
			continue
		}
		if addr := strings.TrimSpace(parts[field]); addr != "" {
			out = append(out, addr)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read phonebook: %w", err)
	}
	return out, nil
}
