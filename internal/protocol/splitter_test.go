package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLineSplitter_HoldsPartialLine(t *testing.T) {
	var s LineSplitter

	require.Empty(t, s.Feed([]byte(`{"text":"Hel`)))
	require.Equal(t, `{"text":"Hel`, s.Pending())

	lines := s.Feed([]byte("lo\"}\n{\"text\""))
	require.Equal(t, []string{`{"text":"Hello"}`}, lines)
	require.Equal(t, `{"text"`, s.Pending())
}

func TestLineSplitter_MultipleLinesInOneChunk(t *testing.T) {
	var s LineSplitter

	lines := s.Feed([]byte("a\nb\r\n\nc\n"))

	require.Equal(t, []string{"a", "b", "", "c"}, lines)
	require.Empty(t, s.Pending())
}

func TestLineSplitter_Reset(t *testing.T) {
	var s LineSplitter
	s.Feed([]byte("partial"))
	s.Reset()

	require.Equal(t, []string{"next"}, s.Feed([]byte("next\n")))
}

// Any split of a byte stream into chunks yields the same complete lines, and
// the unterminated tail is never emitted.
func TestLineSplitter_ChunkingInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lines := rapid.SliceOf(rapid.StringMatching(`[a-z{}":0-9 ]{0,12}`)).Draw(rt, "lines")
		tail := rapid.StringMatching(`[a-z{}":0-9 ]{0,12}`).Draw(rt, "tail")

		var stream strings.Builder
		for _, l := range lines {
			stream.WriteString(l)
			stream.WriteByte('\n')
		}
		stream.WriteString(tail)
		data := []byte(stream.String())

		var s LineSplitter
		var got []string
		for len(data) > 0 {
			n := rapid.IntRange(1, len(data)).Draw(rt, "chunk")
			got = append(got, s.Feed(data[:n])...)
			data = data[n:]
		}

		if len(lines) == 0 {
			lines = nil
		}
		if len(got) == 0 {
			got = nil
		}
		require.Equal(rt, lines, got)
		require.Equal(rt, tail, s.Pending())
	})
}
