package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransferPayloadSize(t *testing.T) {
	tr := &Transfer{}
	require.Zero(t, tr.PayloadSize())

	tr.Fragments = [][]byte{[]byte("abc"), nil, []byte("de")}
	require.Equal(t, 5, tr.PayloadSize())
}
