package protocol

import "bytes"

// LineSplitter accumulates raw chunks and yields complete lines.
// A trailing fragment without a newline is held until a later chunk
// completes it. The zero value is ready to use. Not safe for concurrent use.
type LineSplitter struct {
	pending []byte
}

// Feed appends chunk and returns every line it completed, in order, without
// the separator. A "\r" before the newline is stripped.
func (s *LineSplitter) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}

	var lines []string
	for {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			break
		}
		var line []byte
		if len(s.pending) > 0 {
			line = append(s.pending, chunk[:i]...)
			s.pending = s.pending[:0]
		} else {
			line = chunk[:i]
		}
		lines = append(lines, string(bytes.TrimSuffix(line, []byte{'\r'})))
		chunk = chunk[i+1:]
	}
	s.pending = append(s.pending, chunk...)
	return lines
}

// Pending returns the buffered partial line. It is never emitted by Feed
// unless a later chunk terminates it.
func (s *LineSplitter) Pending() string {
	return string(s.pending)
}

// Reset drops any buffered partial line.
func (s *LineSplitter) Reset() {
	s.pending = s.pending[:0]
}
