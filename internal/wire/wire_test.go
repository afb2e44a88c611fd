package wire

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRequestMarshalFlattensBody(t *testing.T) {
	id := uuid.New()
	req := Request{
		RequestUUID: id,
		Type:        RequestCheckServer,
		Body: CheckServerBody{
			Username:       "alice",
			ServerID:       "abc123",
			NeedHardware:   true,
			NeedProperties: false,
		},
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))

	require.Equal(t, id.String(), fields["requestUUID"])
	require.Equal(t, "checkServer", fields["type"])
	require.Equal(t, "alice", fields["username"])
	require.Equal(t, "abc123", fields["serverID"])
	require.Equal(t, true, fields["needHardware"])
}

func TestParseResponseAndDecode(t *testing.T) {
	id := uuid.New()
	playerID := uuid.New()
	frame := []byte(`{"requestUUID":"` + id.String() + `","type":"profileByUUID","playerProfile":{"uuid":"` + playerID.String() + `","username":"bob","assets":{}}}`)

	resp, err := ParseResponse(frame)
	require.NoError(t, err)
	require.Equal(t, id, resp.RequestUUID)
	require.Equal(t, ResponseProfileByUUID, resp.Type)

	var body ProfileResponseBody
	require.NoError(t, resp.Decode(&body))
	require.Equal(t, "bob", body.PlayerProfile.Username)
	require.Equal(t, playerID, body.PlayerProfile.UUID)
}

func TestParseResponseRejectsNonObject(t *testing.T) {
	_, err := ParseResponse([]byte(`not json`))
	require.Error(t, err)
}
