// Package keypair manages the RSA key material used to sign textures
// properties.
package keypair

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

// KeyBits is the RSA modulus size generated on first run.
const KeyBits = 4096

const (
	keysDirName     = "keys"
	privateFileName = "private.pem"
	privateFileMode = 0o600
	dataDirMode     = 0o700
)

// KeyPair holds the deployment's single RSA private key and its
// PEM-encoded public counterpart, shared read-only across all backends.
type KeyPair struct {
	Private *rsa.PrivateKey
	// PublicPEM is the PKIX PEM encoding of the public key, published
	// as the root endpoint's signaturePublicKey.
	PublicPEM string
}

// LoadOrCreate loads the private key from <dataDir>/keys/private.pem,
// generating and persisting a fresh one (mode 0600) if it does not
// exist yet.
func LoadOrCreate(dataDir string) (*KeyPair, error) {
	dir := filepath.Join(dataDir, keysDirName)
	if err := os.MkdirAll(dir, dataDirMode); err != nil {
		return nil, fmt.Errorf("creating keys directory: %w", err)
	}

	path := filepath.Join(dir, privateFileName)

	if _, err := os.Stat(path); err == nil {
		return load(path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	return create(path)
}

func create(path string) (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}

	der := x509.MarshalPKCS1PrivateKey(priv)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, privateFileMode)
	if err != nil {
		return nil, fmt.Errorf("creating private key file: %w", err)
	}
	defer f.Close()

	if err := pem.Encode(f, block); err != nil {
		return nil, fmt.Errorf("writing private key: %w", err)
	}

	return newKeyPair(priv)
}

func load(path string) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s does not contain a PEM block", path)
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	return newKeyPair(priv)
}

func newKeyPair(priv *rsa.PrivateKey) (*KeyPair, error) {
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshaling public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return &KeyPair{Private: priv, PublicPEM: string(pubPEM)}, nil
}
