package sse

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
)

type frame struct {
	Name string
	ID   string
	Data []byte
}

// readFrames parses an event stream into frames until the reader fails or
// ctx is done. It always finishes by sending one error: io.EOF for a clean
// end of stream.
func readFrames(ctx context.Context, reader io.Reader, out chan<- frame, errs chan<- error) {
	defer close(out)

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var current frame
	var data bytes.Buffer
	emit := func() bool {
		if current.Name == "" && data.Len() == 0 {
			return true
		}
		current.Data = append([]byte{}, data.Bytes()...)
		select {
		case out <- current:
		case <-ctx.Done():
			return false
		}
		current = frame{}
		data.Reset()
		return true
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if !emit() {
				errs <- ctx.Err()
				return
			}
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "event:"):
			current.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "id:"):
			current.ID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "data:"):
			segment := strings.TrimPrefix(line, "data:")
			segment = strings.TrimPrefix(segment, " ")
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(segment)
		}
	}

	if !emit() {
		errs <- ctx.Err()
		return
	}
	if err := scanner.Err(); err != nil {
		errs <- err
		return
	}
	errs <- io.EOF
}
