// Package mapper translates upstream profile records into signed
// Yggdrasil textures properties.
package mapper

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/embergate/embergate/internal/wire"
)

// Profile is the emitted Yggdrasil profile shape.
type Profile struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Properties []Property `json:"properties"`
}

// Property is a single named, optionally signed profile property.
type Property struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

// Textures is the JSON object carried (base64-encoded) in the
// "textures" property's value.
type Textures struct {
	Timestamp         int64  `json:"timestamp"`
	ProfileID         string `json:"profileId"`
	ProfileName       string `json:"profileName"`
	SignatureRequired bool   `json:"signatureRequired"`
	Textures          Kind   `json:"textures"`
}

// Kind holds the at-most-one skin and at-most-one cape emitted per
// profile. Absent assets are omitted, not nulled.
type Kind struct {
	Skin *Skin `json:"SKIN,omitempty"`
	Cape *Cape `json:"CAPE,omitempty"`
}

// Skin is the emitted skin texture reference.
type Skin struct {
	URL      string    `json:"url"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Cape is the emitted cape texture reference.
type Cape struct {
	URL string `json:"url"`
}

// Metadata carries the skin model variant. Only the "slim" model is
// ever serialised; the default model maps to an absent Metadata.
type Metadata struct {
	Model string `json:"model"`
}

// Map translates an upstream profile record into a signed (or
// unsigned) Yggdrasil profile. It is a pure function of its inputs:
// the same (profile, key, now, signed) always produces the same
// output.
func Map(profile wire.PlayerProfile, priv *rsa.PrivateKey, now time.Duration, signed bool) (*Profile, error) {
	simpleID := hex.EncodeToString(profile.UUID[:])

	textures := Textures{
		Timestamp:         now.Milliseconds(),
		ProfileID:         simpleID,
		ProfileName:       profile.Username,
		SignatureRequired: signed,
		Textures: Kind{
			Skin: mapSkin(profile.Assets.Skin),
			Cape: mapCape(profile.Assets.Cape),
		},
	}

	serialized, err := json.Marshal(textures)
	if err != nil {
		return nil, fmt.Errorf("marshaling textures: %w", err)
	}

	value := base64.StdEncoding.EncodeToString(serialized)

	property := Property{Name: "textures", Value: value}

	if signed {
		// The signature covers the base64 text itself, not the
		// underlying JSON. Clients verify it that way; do not "fix" it.
		sig, err := signRawPKCS1v15(priv, []byte(value))
		if err != nil {
			return nil, fmt.Errorf("signing textures value: %w", err)
		}
		property.Signature = base64.StdEncoding.EncodeToString(sig)
	}

	return &Profile{
		ID:         simpleID,
		Name:       profile.Username,
		Properties: []Property{property},
	}, nil
}

func mapSkin(asset *wire.SkinAsset) *Skin {
	if asset == nil {
		return nil
	}
	return &Skin{URL: asset.URL, Metadata: mapSkinMetadata(asset.Metadata)}
}

func mapSkinMetadata(meta *wire.SkinMetadata) *Metadata {
	if meta == nil {
		return nil
	}
	switch meta.Model {
	case "Slim":
		return &Metadata{Model: "slim"}
	default:
		return nil
	}
}

func mapCape(asset *wire.CapeAsset) *Cape {
	if asset == nil {
		return nil
	}
	return &Cape{URL: asset.URL}
}
