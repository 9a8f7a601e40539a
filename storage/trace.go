package storage

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseTrace reads page IDs separated by whitespace or newlines.
// Text after '#' on a line is ignored.
func ParseTrace(r io.Reader) ([]PageID, error) {
	var trace []PageID
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, field := range strings.Fields(line) {
			id, err := strconv.ParseUint(field, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid page id %q: %w", lineNo, field, err)
			}
			trace = append(trace, PageID(id))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	return trace, nil
}
