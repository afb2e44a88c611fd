package mapper

import (
	"crypto/rsa"
	"fmt"
	"math/big"
)

// signRawPKCS1v15 reproduces OpenSSL's RSA_private_encrypt with
// RSA_PKCS1_PADDING: EMSA-PKCS1-v1_5 type-1 padding applied directly to
// message (no digest OID prefix), followed by the raw RSA private-key
// exponentiation. crypto/rsa only exposes SignPKCS1v15, which requires
// a crypto.Hash and always embeds its DigestInfo prefix, so it cannot
// reproduce the format Yggdrasil clients verify textures signatures
// against: the base64 text itself, unhashed.
func signRawPKCS1v15(priv *rsa.PrivateKey, message []byte) ([]byte, error) {
	k := priv.Size()
	if len(message) > k-11 {
		return nil, fmt.Errorf("message of %d bytes too long for a %d-byte RSA modulus", len(message), k)
	}

	em := make([]byte, k)
	em[0] = 0x00
	em[1] = 0x01
	padLen := k - len(message) - 3
	for i := 2; i < 2+padLen; i++ {
		em[i] = 0xFF
	}
	em[2+padLen] = 0x00
	copy(em[3+padLen:], message)

	m := new(big.Int).SetBytes(em)
	c := new(big.Int).Exp(m, priv.D, priv.N)

	sig := c.Bytes()
	if len(sig) == k {
		return sig, nil
	}

	out := make([]byte, k)
	copy(out[k-len(sig):], sig)
	return out, nil
}
