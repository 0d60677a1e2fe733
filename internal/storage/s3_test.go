package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidRel(t *testing.T) {
	assert.True(t, validRel("aa1/aa1234/thumbnail/thumbnail.jpg"))
	assert.False(t, validRel("/etc/passwd"))
	assert.False(t, validRel("../escape"))
}

func TestS3KeyPrefixing(t *testing.T) {
	s := &S3{prefix: "library-1"}
	key, err := s.key("aa1/aa1234/thumbnail/thumbnail.jpg")
	assert.NoError(t, err)
	assert.Equal(t, "library-1/aa1/aa1234/thumbnail/thumbnail.jpg", key)
}

func TestS3StripPrefix(t *testing.T) {
	s := &S3{prefix: "library-1"}
	assert.Equal(t, "aa1/aa1234", s.stripPrefix("library-1/aa1/aa1234/"))
}

func TestS3KeyRejectsEscaping(t *testing.T) {
	s := &S3{prefix: "library-1"}
	_, err := s.key("../escape")
	assert.Error(t, err)
}
