package protocol

import (
	"encoding/json"

	"github.com/stretchr/testify/require"
)

func mustJSON(t require.TestingT, v any) []byte {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
