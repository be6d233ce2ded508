package imq

import (
	"encoding/json"
	"testing"

	"github.com/hemant/imq/internal/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	payloads := []string{
		`{"a":1}`,
		`null`,
		`"plain string"`,
		`[1,2,3,"x"]`,
		`{}`,
	}

	for _, useGzip := range []bool{false, true} {
		codec := NewCodec(useGzip)
		for _, p := range payloads {
			env := &base.Envelope{ID: "id-1", From: "sender-a", Message: json.RawMessage(p)}

			data, err := codec.Pack(env)
			require.NoError(t, err)

			got, err := codec.Unpack(data)
			require.NoError(t, err)

			assert.Equal(t, env.ID, got.ID)
			assert.Equal(t, env.From, got.From)
			assert.JSONEq(t, p, string(got.Message))
		}
	}
}

func TestGzipCodecRejectsPlainData(t *testing.T) {
	env := &base.Envelope{ID: "id-2", From: "sender-b", Message: json.RawMessage(`{"x":1}`)}
	plain, err := NewCodec(false).Pack(env)
	require.NoError(t, err)

	_, err = NewCodec(true).Unpack(plain)
	assert.Error(t, err)
}
