package tools

import (
	"errors"
	"math/rand"
	"net/mail"
	"strings"

	"github.com/modfin/henry/slicez"
)

// DomainOfEmail returns the part after the last @ of an address. The
// credential diagnostic leans on this to compare sending identities.
func DomainOfEmail(address string) (string, error) {
	parts := strings.Split(address, "@")
	if len(parts) < 2 {
		return "", errors.New("no domain was present in email address")
	}
	return slicez.Nth(parts, -1), nil
}

// ValidEmail does the basic shape check used to gate a mail config, it is
// not an attempt at full RFC 5322 validation.
func ValidEmail(address string) bool {
	if len(address) == 0 {
		return false
	}
	_, err := mail.ParseAddress(address)
	return err == nil
}

var letterRunes = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890")

func RandStringRunes(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letterRunes[rand.Intn(len(letterRunes))]
	}
	return string(b)
}
