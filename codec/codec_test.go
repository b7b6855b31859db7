package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func TestJSON(t *testing.T) {
	dec := JSON[point]()

	got, err := dec.Decode([][]byte{[]byte(`{"x":1,"y":2}`)})
	require.NoError(t, err)
	require.Equal(t, point{X: 1, Y: 2}, got)

	_, err = dec.Decode([][]byte{[]byte(`{"x":`)})
	require.Error(t, err)
}

func TestJSON_FragmentedPayload(t *testing.T) {
	dec := JSON[point]()

	// Fragments are joined in order before decoding.
	got, err := dec.Decode([][]byte{
		[]byte(`{"x":`),
		[]byte(`3,"y"`),
		[]byte(`:4}`),
	})
	require.NoError(t, err)
	require.Equal(t, point{X: 3, Y: 4}, got)
}

func TestYAML(t *testing.T) {
	dec := YAML[point]()

	got, err := dec.Decode([][]byte{[]byte("x: 5\ny: 6\n")})
	require.NoError(t, err)
	require.Equal(t, point{X: 5, Y: 6}, got)

	_, err = dec.Decode([][]byte{[]byte(":\t- not yaml")})
	require.Error(t, err)
}

func TestBytes(t *testing.T) {
	dec := Bytes()

	got, err := dec.Decode([][]byte{[]byte("ab"), []byte("cd")})
	require.NoError(t, err)
	require.Equal(t, []byte("abcd"), got)

	// The single-fragment fast path returns the fragment unchanged.
	single := []byte("payload")
	got, err = dec.Decode([][]byte{single})
	require.NoError(t, err)
	require.Equal(t, single, got)

	got, err = dec.Decode(nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDecoderFunc(t *testing.T) {
	dec := DecoderFunc[int](func(fragments [][]byte) (int, error) {
		return len(fragments), nil
	})

	got, err := dec.Decode([][]byte{nil, nil, nil})
	require.NoError(t, err)
	require.Equal(t, 3, got)
}
