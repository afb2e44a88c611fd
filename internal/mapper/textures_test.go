package mapper

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/embergate/embergate/internal/wire"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestMap_HappyPathUnsigned(t *testing.T) {
	key := testKey(t)
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	profile := wire.PlayerProfile{
		UUID:     id,
		Username: "alice",
		Assets: wire.Assets{
			Skin: &wire.SkinAsset{URL: "https://x/s.png", Metadata: &wire.SkinMetadata{Model: "Default"}},
		},
	}

	now := time.Duration(1700000000000) * time.Millisecond
	result, err := Map(profile, key, now, false)
	require.NoError(t, err)

	require.Equal(t, "11111111111111111111111111111111", result.ID)
	require.Equal(t, "alice", result.Name)
	require.Len(t, result.Properties, 1)

	prop := result.Properties[0]
	require.Equal(t, "textures", prop.Name)
	require.Empty(t, prop.Signature)

	raw, err := base64.StdEncoding.DecodeString(prop.Value)
	require.NoError(t, err)

	var textures Textures
	require.NoError(t, json.Unmarshal(raw, &textures))
	require.Equal(t, "11111111111111111111111111111111", textures.ProfileID)
	require.Equal(t, "alice", textures.ProfileName)
	require.False(t, textures.SignatureRequired)
	require.NotNil(t, textures.Textures.Skin)
	require.Equal(t, "https://x/s.png", textures.Textures.Skin.URL)
	require.Nil(t, textures.Textures.Skin.Metadata)
	require.Nil(t, textures.Textures.Cape)
}

func TestMap_SignedPathProducesValidSignature(t *testing.T) {
	key := testKey(t)
	profile := wire.PlayerProfile{
		UUID:     uuid.New(),
		Username: "bob",
		Assets:   wire.Assets{},
	}

	result, err := Map(profile, key, time.Duration(time.Now().UnixNano()), true)
	require.NoError(t, err)

	prop := result.Properties[0]
	require.NotEmpty(t, prop.Signature)

	raw, err := base64.StdEncoding.DecodeString(prop.Value)
	require.NoError(t, err)
	var textures Textures
	require.NoError(t, json.Unmarshal(raw, &textures))
	require.True(t, textures.SignatureRequired)

	sigBytes, err := base64.StdEncoding.DecodeString(prop.Signature)
	require.NoError(t, err)
	require.Len(t, sigBytes, key.Size())

	// The signature must invert under the public exponent back to a
	// validly PKCS#1-v1.5-padded message, confirming it was produced by
	// raw RSA private-key exponentiation rather than a hashed signature.
	c := new(big.Int).SetBytes(sigBytes)
	e := big.NewInt(int64(key.PublicKey.E))
	m := new(big.Int).Exp(c, e, key.N)
	padded := m.Bytes()
	require.GreaterOrEqual(t, len(padded), 2)
	// left-pad to modulus size and check the 0x00 0x01 PKCS1 marker
	full := make([]byte, key.Size())
	copy(full[key.Size()-len(padded):], padded)
	require.Equal(t, byte(0x00), full[0])
	require.Equal(t, byte(0x01), full[1])
	// After the 0xFF padding and its 0x00 separator comes the base64
	// value itself, with no DigestInfo prefix and no hashing.
	sep := bytes.IndexByte(full[2:], 0x00)
	require.GreaterOrEqual(t, sep, 8)
	require.Equal(t, []byte(prop.Value), full[2+sep+1:])
}

func TestMap_SlimSkinMetadata(t *testing.T) {
	key := testKey(t)
	profile := wire.PlayerProfile{
		UUID:     uuid.New(),
		Username: "carol",
		Assets: wire.Assets{
			Skin: &wire.SkinAsset{URL: "https://x/s.png", Metadata: &wire.SkinMetadata{Model: "Slim"}},
		},
	}

	result, err := Map(profile, key, time.Duration(0), false)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(result.Properties[0].Value)
	require.NoError(t, err)
	var textures Textures
	require.NoError(t, json.Unmarshal(raw, &textures))

	require.NotNil(t, textures.Textures.Skin.Metadata)
	require.Equal(t, "slim", textures.Textures.Skin.Metadata.Model)
}

func TestMap_CapeOnly(t *testing.T) {
	key := testKey(t)
	profile := wire.PlayerProfile{
		UUID:     uuid.New(),
		Username: "dave",
		Assets: wire.Assets{
			Cape: &wire.CapeAsset{URL: "https://x/c.png"},
		},
	}

	result, err := Map(profile, key, time.Duration(0), false)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(result.Properties[0].Value)
	require.NoError(t, err)
	var textures Textures
	require.NoError(t, json.Unmarshal(raw, &textures))

	require.Nil(t, textures.Textures.Skin)
	require.NotNil(t, textures.Textures.Cape)
	require.Equal(t, "https://x/c.png", textures.Textures.Cape.URL)
}

func TestMap_IsPureFunction(t *testing.T) {
	key := testKey(t)
	profile := wire.PlayerProfile{UUID: uuid.New(), Username: "erin"}
	now := time.Duration(123456)

	a, err := Map(profile, key, now, false)
	require.NoError(t, err)
	b, err := Map(profile, key, now, false)
	require.NoError(t, err)

	require.Equal(t, a, b)
}
