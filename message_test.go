package jsongate

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Creation(t *testing.T) {
	t.Run("new message has defaults", func(t *testing.T) {
		msg := NewMessage()
		require.NotNil(t, msg)
		assert.Equal(t, AppName, msg.App)
		assert.NotEmpty(t, msg.ID)
		assert.Greater(t, msg.Timestamp, 0.0)
	})

	t.Run("create generic call carries the three-component frame", func(t *testing.T) {
		msg := CreateGenericCall("calc.Add", []string{"", "Dog"}, []byte(`[1,2]`), "msg-123")

		assert.Equal(t, string(MessageTypeCall), msg.Type)
		assert.Equal(t, "calc.Add", msg.Target)
		assert.Equal(t, "msg-123", msg.ID)
		require.Len(t, msg.Frame, 3)
		assert.Equal(t, EncodingJSON, msg.Frame[0])
		assert.Equal(t, []string{"", "Dog"}, msg.Frame[1])
		assert.Equal(t, []byte(`[1,2]`), msg.Frame[2])
	})

	t.Run("create response carries raw result bytes", func(t *testing.T) {
		msg := CreateResponse([]byte(`{"ok":true}`), "msg-123")

		assert.Equal(t, string(MessageTypeResponse), msg.Type)
		assert.Equal(t, []byte(`{"ok":true}`), msg.Result)
		assert.Equal(t, "msg-123", msg.ID)
	})

	t.Run("create error message", func(t *testing.T) {
		msg := CreateError("bad things", "msg-123")

		assert.Equal(t, string(MessageTypeError), msg.Type)
		assert.Equal(t, "bad things", msg.Error)
		assert.Equal(t, "msg-123", msg.ID)
	})

	t.Run("heartbeat request and response", func(t *testing.T) {
		req := CreateHeartbeat("")
		assert.Equal(t, string(MessageTypeHeartbeat), req.Type)
		assert.Contains(t, req.Metadata, "hb_timestamp")

		resp := CreateHeartbeatResponse(req.ID, 1234.5)
		assert.Equal(t, req.ID, resp.ID)
		assert.Equal(t, 1234.5, resp.Metadata["hb_timestamp"])
		assert.Equal(t, true, resp.Metadata["hb_response"])
	})
}

func TestMessage_PackUnpack(t *testing.T) {
	t.Run("generic call survives the wire", func(t *testing.T) {
		msg := CreateGenericCall("calc.Add", []string{"Dog"}, []byte(`{"a":1}`), "")

		data, err := msg.Pack()
		require.NoError(t, err)

		got, err := Unpack(data)
		require.NoError(t, err)
		assert.Equal(t, msg.ID, got.ID)
		assert.Equal(t, msg.Target, got.Target)

		names, payload := splitGenericFrame(got.Frame)
		assert.Equal(t, []string{"Dog"}, names)
		assert.Equal(t, []byte(`{"a":1}`), payload)
	})

	t.Run("oversized message is rejected", func(t *testing.T) {
		_, err := Unpack(make([]byte, maxMessageSize+1))
		assert.Error(t, err)
	})

	t.Run("garbage bytes fail to decode", func(t *testing.T) {
		_, err := Unpack([]byte{0xc1, 0xff, 0x00})
		assert.Error(t, err)
	})

	t.Run("NaN timestamp is clamped to zero", func(t *testing.T) {
		msg := NewMessage()
		msg.Timestamp = math.NaN()
		data, err := msg.Pack()
		require.NoError(t, err)

		got, err := Unpack(data)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got.Timestamp)
	})

	t.Run("overlong generic frame is rejected", func(t *testing.T) {
		msg := NewMessage()
		msg.Type = string(MessageTypeCall)
		msg.Frame = make([]any, maxFrameLength+1)
		data, err := msg.Pack()
		require.NoError(t, err)

		_, err = Unpack(data)
		assert.Error(t, err)
	})

	t.Run("too many type names are rejected", func(t *testing.T) {
		names := make([]string, maxTypeNames+1)
		msg := CreateGenericCall("calc.Add", names, []byte(`[]`), "")
		data, err := msg.Pack()
		require.NoError(t, err)

		_, err = Unpack(data)
		assert.Error(t, err)
	})
}

func TestCodecError(t *testing.T) {
	t.Run("sentinels match by reason", func(t *testing.T) {
		err := &CodecError{Reason: reasonNotJSON, Err: errors.New("unexpected token")}
		assert.ErrorIs(t, err, ErrNotJSON)
		assert.NotErrorIs(t, err, ErrWrongParameterCount)
		assert.Equal(t, "content is not json format: unexpected token", err.Error())
	})

	t.Run("bare sentinel keeps the canonical reason", func(t *testing.T) {
		assert.Equal(t, "wrong parameter count", ErrWrongParameterCount.Error())
	})

	t.Run("remote error unwraps its cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := &RemoteCallError{Message: "remote failed", Err: cause}
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "remote failed: boom", err.Error())
	})
}
