package handlers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLimitedUnderLimit(t *testing.T) {
	content, err := readLimited(strings.NewReader("small file"), 64)

	require.NoError(t, err)
	assert.Equal(t, []byte("small file"), content)
}

func TestReadLimitedExactlyAtLimit(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 64)

	content, err := readLimited(bytes.NewReader(data), 64)

	require.NoError(t, err)
	assert.Equal(t, data, content)
}

func TestReadLimitedRejectsOversizedInput(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 65)

	_, err := readLimited(bytes.NewReader(data), 64)

	assert.ErrorIs(t, err, errFileTooLarge)
}

func TestReadLimitedEmptyInput(t *testing.T) {
	content, err := readLimited(strings.NewReader(""), 64)

	require.NoError(t, err)
	assert.Empty(t, content)
}
