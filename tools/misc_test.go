package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainOfEmail(t *testing.T) {
	t.Parallel()

	domain, err := DomainOfEmail("notify@ouvrio.fr")
	assert.NoError(t, err)
	assert.Equal(t, "ouvrio.fr", domain)

	// the part after the last @ wins
	domain, err = DomainOfEmail(`"odd@name"@ouvrio.fr`)
	assert.NoError(t, err)
	assert.Equal(t, "ouvrio.fr", domain)

	_, err = DomainOfEmail("justauser")
	assert.Error(t, err)

	_, err = DomainOfEmail("")
	assert.Error(t, err)
}

func TestValidEmail(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidEmail("notify@ouvrio.fr"))
	assert.True(t, ValidEmail("Notify <notify@ouvrio.fr>"))
	assert.False(t, ValidEmail(""))
	assert.False(t, ValidEmail("not an address"))
	assert.False(t, ValidEmail("missing-domain@"))
}

func TestRandStringRunes(t *testing.T) {
	t.Parallel()

	s := RandStringRunes(32)
	assert.Len(t, s, 32)
	assert.NotEqual(t, s, RandStringRunes(32))
}
