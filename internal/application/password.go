package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrMalformedPasswordHash  = errors.New("malformed password hash")
	ErrUnsupportedHashVersion = errors.New("unsupported password hash version")
)

// PasswordParams configures the argon2id key derivation applied to
// marketplace account passwords.
type PasswordParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultPasswordParams follows the OWASP recommendation for argon2id.
var DefaultPasswordParams = PasswordParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// HashPassword derives an argon2id hash for the given password and encodes
// it in the standard $argon2id$v=19$m=...,t=...,p=...$salt$hash form. The
// encoded string carries every parameter needed to verify it later, so
// params can be tightened without invalidating stored credentials.
func HashPassword(password string, params PasswordParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		params.Memory, params.Iterations, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks a candidate password against a stored encoded hash.
// It returns ErrInvalidCredentials on mismatch so callers can treat a wrong
// password and an unknown account identically.
func VerifyPassword(encoded, password string) error {
	params, salt, key, err := decodePasswordHash(encoded)
	if err != nil {
		return err
	}

	candidate := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	if subtle.ConstantTimeCompare(key, candidate) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

func decodePasswordHash(encoded string) (PasswordParams, []byte, []byte, error) {
	var params PasswordParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, ErrMalformedPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, ErrMalformedPasswordHash
	}
	if version != argon2.Version {
		return params, nil, nil, ErrUnsupportedHashVersion
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return params, nil, nil, ErrMalformedPasswordHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, ErrMalformedPasswordHash
	}
	params.SaltLength = uint32(len(salt))

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, ErrMalformedPasswordHash
	}
	params.KeyLength = uint32(len(key))

	return params, salt, key, nil
}
