package harness

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/aiman-zohra3/todo/internal/config"
)

// Credentials identify one test account. They are never modified after creation.
type Credentials struct {
	Name     string
	Email    string
	Password string
}

// FromFixture converts configured fixture credentials.
func FromFixture(f config.FixtureUser) Credentials {
	return Credentials{Name: f.Name, Email: f.Email, Password: f.Password}
}

// NewCredentials returns a throwaway account whose email is unique across
// parallel tests and repeated runs: a nanosecond timestamp plus random bytes.
func NewCredentials(prefix string) Credentials {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "user"
	}
	stamp := time.Now().UnixNano()
	suffix := randomHex(4)
	return Credentials{
		Name:     fmt.Sprintf("%s user %s", prefix, suffix),
		Email:    fmt.Sprintf("%s%d-%s@example.com", prefix, stamp, suffix),
		Password: "pw-" + randomHex(6),
	}
}

// TimestampedTitle returns a todo title such as "T-1767175200123456789".
func TimestampedTitle(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := crand.Read(buf); err != nil {
		panic(fmt.Sprintf("failed to generate random suffix: %v", err))
	}
	return hex.EncodeToString(buf)
}
