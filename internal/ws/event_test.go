package ws

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEventWireShape(t *testing.T) {
	req := require.New(t)
	convID := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	data, err := NewMessage(convID, "01HZXYZ").Encode()
	req.NoError(err)

	var wire map[string]string
	req.NoError(json.Unmarshal(data, &wire))
	req.Equal("new_message", wire["type"])
	req.Equal("11111111-2222-3333-4444-555555555555", wire["conversationId"])
	req.Equal("01HZXYZ", wire["messageId"])
	req.Len(wire, 3)
}

func TestMessageUpdatedType(t *testing.T) {
	ev := MessageUpdated(uuid.New(), "m1")
	require.Equal(t, TypeMessageUpdated, ev.Type)
}
