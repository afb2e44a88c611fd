// Package wire defines the JSON envelope exchanged with a LaunchServer
// backend over its WebSocket connection: a flat object carrying a
// requestUUID, a type discriminator, and type-specific body fields.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// RequestType is the wire tag for an outgoing request.
type RequestType string

const (
	RequestRestore                RequestType = "restore"
	RequestCheckServer            RequestType = "checkServer"
	RequestProfileByUUID          RequestType = "profileByUUID"
	RequestProfileByUsername      RequestType = "profileByUsername"
	RequestBatchProfileByUsername RequestType = "batchProfileByUsername"
)

// ResponseType is the wire tag for an incoming response.
type ResponseType string

const (
	ResponseRestore                ResponseType = "restore"
	ResponseCheckServer            ResponseType = "checkServer"
	ResponseProfileByUUID          ResponseType = "profileByUUID"
	ResponseProfileByUsername      ResponseType = "profileByUsername"
	ResponseBatchProfileByUsername ResponseType = "batchProfileByUsername"
	ResponseError                  ResponseType = "error"
)

// ErrorKind identifies the reason an upstream rejected a request.
type ErrorKind string

// PermissionsDenied is the only error kind the core acts on; all others
// are surfaced to the caller as an opaque UnexpectedResponse.
const PermissionsDenied ErrorKind = "PermissionsDenied"

// Request is an outgoing envelope. Body must marshal to a JSON object;
// its fields are flattened alongside requestUUID and type.
type Request struct {
	RequestUUID uuid.UUID
	Type        RequestType
	Body        any
}

// MarshalJSON flattens Body's fields into the envelope object.
func (r Request) MarshalJSON() ([]byte, error) {
	bodyJSON, err := json.Marshal(r.Body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bodyJSON, &fields); err != nil {
		return nil, fmt.Errorf("request body must marshal to an object: %w", err)
	}

	requestUUIDJSON, err := json.Marshal(r.RequestUUID.String())
	if err != nil {
		return nil, err
	}
	typeJSON, err := json.Marshal(string(r.Type))
	if err != nil {
		return nil, err
	}
	fields["requestUUID"] = requestUUIDJSON
	fields["type"] = typeJSON

	return json.Marshal(fields)
}

// RestoreBody is the body of a "restore" request.
type RestoreBody struct {
	Extended     map[string]string `json:"extended"`
	NeedUserInfo bool              `json:"needUserInfo"`
}

// CheckServerBody is the body of a "checkServer" request.
type CheckServerBody struct {
	Username       string `json:"username"`
	ServerID       string `json:"serverID"`
	NeedHardware   bool   `json:"needHardware"`
	NeedProperties bool   `json:"needProperties"`
}

// ProfileByUUIDBody is the body of a "profileByUUID" request.
type ProfileByUUIDBody struct {
	UUID uuid.UUID `json:"uuid"`
}

// ProfileByUsernameBody is the body of a "profileByUsername" request.
type ProfileByUsernameBody struct {
	Username string `json:"username"`
}

// UsernameEntry is one element of a batch profile-by-username request.
type UsernameEntry struct {
	Username string `json:"username"`
}

// BatchProfileByUsernameBody is the body of a "batchProfileByUsername" request.
type BatchProfileByUsernameBody struct {
	List []UsernameEntry `json:"list"`
}

// Response is a parsed incoming envelope. Raw retains the full frame so
// callers can decode type-specific body fields with Decode.
type Response struct {
	RequestUUID uuid.UUID
	Type        ResponseType
	Raw         []byte
}

type responseHeader struct {
	RequestUUID uuid.UUID    `json:"requestUUID"`
	Type        ResponseType `json:"type"`
}

// ParseResponse parses a text frame into a Response envelope. It fails
// only if the frame is not a JSON object carrying requestUUID and type;
// unrecognised type values are still returned (the caller decides).
func ParseResponse(frame []byte) (*Response, error) {
	var hdr responseHeader
	if err := json.Unmarshal(frame, &hdr); err != nil {
		return nil, fmt.Errorf("parsing response envelope: %w", err)
	}
	if hdr.RequestUUID == uuid.Nil || hdr.Type == "" {
		return nil, fmt.Errorf("parsing response envelope: missing requestUUID or type")
	}
	return &Response{RequestUUID: hdr.RequestUUID, Type: hdr.Type, Raw: frame}, nil
}

// Decode unmarshals the response's body fields into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Raw, v)
}

// ErrorBody is the body of an "error" response.
type ErrorBody struct {
	Kind ErrorKind `json:"kind"`
}

// RestoreResponseBody is the body of a "restore" response.
type RestoreResponseBody struct {
	InvalidTokens []string `json:"invalidTokens"`
}

// CheckServerResponseBody is the body of a "checkServer" response.
type CheckServerResponseBody struct {
	UUID uuid.UUID `json:"uuid"`
}

// SkinMetadata describes the skin model variant.
type SkinMetadata struct {
	Model string `json:"model"`
}

// SkinAsset is the upstream shape of a profile's skin.
type SkinAsset struct {
	URL      string        `json:"url"`
	Digest   string        `json:"digest,omitempty"`
	Metadata *SkinMetadata `json:"metadata,omitempty"`
}

// CapeAsset is the upstream shape of a profile's cape.
type CapeAsset struct {
	URL    string `json:"url"`
	Digest string `json:"digest,omitempty"`
}

// Assets holds a profile's optional skin and cape.
type Assets struct {
	Skin *SkinAsset `json:"skin,omitempty"`
	Cape *CapeAsset `json:"cape,omitempty"`
}

// PlayerProfile is the upstream profile record.
type PlayerProfile struct {
	UUID     uuid.UUID `json:"uuid"`
	Username string    `json:"username"`
	Assets   Assets    `json:"assets"`
}

// ProfileResponseBody is the body of a "profileByUUID" or
// "profileByUsername" response.
type ProfileResponseBody struct {
	PlayerProfile PlayerProfile `json:"playerProfile"`
}

// BatchProfileResponseBody is the body of a "batchProfileByUsername"
// response. Unknown usernames appear as nil entries.
type BatchProfileResponseBody struct {
	PlayerProfiles []*PlayerProfile `json:"playerProfiles"`
}
