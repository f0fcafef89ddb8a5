package llm

import (
	"bufio"
	"io"
	"strings"
)

const maxSSELine = 1024 * 1024

// ReadSSE calls onData with the payload of every "data:" line until onData
// returns stop, the body ends, or reading fails.
func ReadSSE(body io.Reader, onData func(data string) (stop bool, err error)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxSSELine)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		stop, err := onData(data)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return scanner.Err()
}
