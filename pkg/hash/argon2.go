package hash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidHash         = errors.New("invalid hash format")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig costs roughly 50ms per key on a single core, which only
// matters on a cache miss in API key authentication.
var DefaultConfig = Argon2Config{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

var b64 = base64.RawStdEncoding

// encodedHash is the PHC string form:
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
type encodedHash struct {
	cfg  Argon2Config
	salt []byte
	key  []byte
}

func (h encodedHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.cfg.Memory, h.cfg.Iterations, h.cfg.Parallelism,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

func (h encodedHash) derive(secret string) []byte {
	return argon2.IDKey([]byte(secret), h.salt, h.cfg.Iterations, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)
}

func parse(s string) (encodedHash, error) {
	var h encodedHash

	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return h, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return h, errors.Wrap(ErrInvalidHash, "version")
	}
	if version != argon2.Version {
		return h, ErrIncompatibleVersion
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.cfg.Memory, &h.cfg.Iterations, &h.cfg.Parallelism); err != nil {
		return h, errors.Wrap(ErrInvalidHash, "parameters")
	}

	var err error
	if h.salt, err = b64.DecodeString(parts[4]); err != nil {
		return h, errors.Wrap(ErrInvalidHash, "salt")
	}
	if h.key, err = b64.DecodeString(parts[5]); err != nil || len(h.key) == 0 {
		return h, errors.Wrap(ErrInvalidHash, "key")
	}
	h.cfg.SaltLength = uint32(len(h.salt))
	h.cfg.KeyLength = uint32(len(h.key))
	return h, nil
}

// HashSecret hashes an API key secret for storage.
func HashSecret(secret string) (string, error) {
	return HashSecretWithConfig(secret, DefaultConfig)
}

func HashSecretWithConfig(secret string, cfg Argon2Config) (string, error) {
	h := encodedHash{cfg: cfg, salt: make([]byte, cfg.SaltLength)}
	if _, err := rand.Read(h.salt); err != nil {
		return "", errors.Wrap(err, "failed to read salt")
	}
	h.key = h.derive(secret)
	return h.String(), nil
}

// VerifySecret compares secret against an encoded argon2id hash in
// constant time.
func VerifySecret(secret, encoded string) (bool, error) {
	h, err := parse(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(h.key, h.derive(secret)) == 1, nil
}
