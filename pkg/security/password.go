package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"golang.org/x/crypto/argon2"
)

const (
	hashPrefix      = "$argon2id$"
	tempPasswordSet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
)

// ErrInvalidHash signals a stored password hash that is not Argon2id PHC.
var ErrInvalidHash = errors.New("invalid argon2id hash")

var b64 = base64.RawStdEncoding

// argonCost is the cost section of a PHC string: $argon2id$v=19$m=..,t=..,p=..$
type argonCost struct {
	memoryKB uint32
	passes   uint32
	lanes    uint8
}

func costFromConfig(cfg config.PasswordConfig) (argonCost, uint32, uint32) {
	cost := argonCost{
		memoryKB: uint32(clamp(cfg.ArgonMemoryKB, 8, 512*1024)),
		passes:   uint32(clamp(cfg.ArgonTime, 1, 10)),
		lanes:    uint8(clamp(cfg.ArgonParallelism, 1, 255)),
	}
	return cost, uint32(clamp(cfg.ArgonSaltLen, 8, 64)), uint32(clamp(cfg.ArgonKeyLen, 16, 64))
}

func (c argonCost) derive(password string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, c.passes, c.memoryKB, c.lanes, keyLen)
}

// HashPassword derives an Argon2id key for password and encodes it together
// with its salt and cost so VerifyPassword needs nothing else.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}

	cost, saltLen, keyLen := costFromConfig(cfg)
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := cost.derive(password, salt, keyLen)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%sv=%d$m=%d,t=%d,p=%d$", hashPrefix, argon2.Version, cost.memoryKB, cost.passes, cost.lanes)
	sb.WriteString(b64.EncodeToString(salt))
	sb.WriteByte('$')
	sb.WriteString(b64.EncodeToString(key))
	return sb.String(), nil
}

// VerifyPassword reports whether password matches encoded. A malformed hash
// returns ErrInvalidHash.
func VerifyPassword(password, encoded string) (bool, error) {
	cost, salt, key, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	candidate := cost.derive(password, salt, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

func parseHash(encoded string) (argonCost, []byte, []byte, error) {
	rest, ok := strings.CutPrefix(encoded, hashPrefix)
	if !ok {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil || version != argon2.Version {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	var cost argonCost
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &cost.memoryKB, &cost.passes, &cost.lanes); err != nil {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	if cost.memoryKB == 0 || cost.passes == 0 || cost.lanes == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}

	salt, err := b64.DecodeString(fields[2])
	if err != nil || len(salt) == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(fields[3])
	if err != nil || len(key) == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	return cost, salt, key, nil
}

func clamp(value, lo, hi int) int {
	return min(max(value, lo), hi)
}

// GenerateTempPassword returns length characters drawn uniformly from an
// alphabet without look-alike glyphs.
func GenerateTempPassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	limit := big.NewInt(int64(len(tempPasswordSet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate temp password: %w", err)
		}
		out[i] = tempPasswordSet[n.Int64()]
	}
	return string(out), nil
}
