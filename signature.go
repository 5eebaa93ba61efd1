package oren

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const loginNonceSize = 16

// newLoginNonce returns a fresh random nonce for a login request.
func newLoginNonce() ([]byte, error) {
	nonce := make([]byte, loginNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("oren: failed to generate login nonce: %w", err)
	}
	return nonce, nil
}

// signLogin derives the login signature sent to the server: a BLAKE2b-256 MAC
// keyed with the client signature over channel, user and nonce. Signatures
// longer than a BLAKE2b key are hashed down first. An empty signature yields
// an empty digest so servers without signature checks accept the login.
func signLogin(signature, channel, user string, nonce []byte) (string, error) {
	if signature == "" {
		return "", nil
	}
	key := []byte(signature)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	mac, err := blake2b.New256(key)
	if err != nil {
		return "", fmt.Errorf("oren: failed to create login MAC: %w", err)
	}
	for _, part := range [][]byte{[]byte(channel), {0}, []byte(user), {0}, nonce} {
		mac.Write(part)
	}
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// buildLoginRequest assembles the request handed to Conn.Login.
func buildLoginRequest(signature, channel, user string) (LoginRequest, error) {
	nonce, err := newLoginNonce()
	if err != nil {
		return LoginRequest{}, err
	}
	digest, err := signLogin(signature, channel, user, nonce)
	if err != nil {
		return LoginRequest{}, err
	}
	return LoginRequest{
		Channel:       channel,
		User:          user,
		ClientVersion: OREN_CLIENT_VERSION,
		Nonce:         nonce,
		Signature:     digest,
	}, nil
}
