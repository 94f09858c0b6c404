package tcp

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DRSN-tech/ml-service/pkg/e"
)

func TestEncodeDecodeRequest(t *testing.T) {
	requestID := "req-42"
	frame, err := EncodeMessage(&Request{
		Action:    ActionClusterDocuments,
		Data:      json.RawMessage(`{"user_id":"user-1"}`),
		RequestID: &requestID,
	})
	require.NoError(t, err)

	length := binary.BigEndian.Uint32(frame[:4])
	assert.Equal(t, int(length), len(frame)-4, "заголовок содержит длину тела")

	decoded, err := DecodeRequest(frame)
	require.NoError(t, err)
	assert.Equal(t, ActionClusterDocuments, decoded.Action)
	assert.JSONEq(t, `{"user_id":"user-1"}`, string(decoded.Data))
	require.NotNil(t, decoded.RequestID)
	assert.Equal(t, "req-42", *decoded.RequestID)
}

func TestEncodeResponseExplicitNulls(t *testing.T) {
	frame, err := EncodeMessage(NewSuccessResponse(json.RawMessage(`{"ok":true}`), nil))
	require.NoError(t, err)

	// result приходит значением, error и request_id — явными null.
	assert.JSONEq(t, `{"status":"success","result":{"ok":true},"error":null,"request_id":null}`, string(frame[4:]))
}

func TestDecodeResponse(t *testing.T) {
	requestID := "req-7"
	frame, err := EncodeMessage(NewErrorResponse("Acción no soportada: foo", &requestID))
	require.NoError(t, err)

	decoded, err := DecodeResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, StatusError, decoded.Status)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, "Acción no soportada: foo", *decoded.Error)
	require.NotNil(t, decoded.RequestID)
	assert.Equal(t, "req-7", *decoded.RequestID)
}

func TestDecodeRequestIncompleteFrame(t *testing.T) {
	_, err := DecodeRequest([]byte{0x00, 0x00})
	assert.ErrorIs(t, err, e.ErrIncompleteMessage)

	frame := make([]byte, 4+3)
	binary.BigEndian.PutUint32(frame[:4], 100)
	_, err = DecodeRequest(frame)
	assert.ErrorIs(t, err, e.ErrIncompleteMessage)
}

func TestParseRequestWithoutAction(t *testing.T) {
	_, err := ParseRequest([]byte(`{"status":"success","result":null}`))
	assert.ErrorIs(t, err, e.ErrNotARequest)
}

func TestParseRequestInvalidJSON(t *testing.T) {
	_, err := ParseRequest([]byte(`{"action":`))
	assert.Error(t, err)
}
