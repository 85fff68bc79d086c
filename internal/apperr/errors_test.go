package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidInputMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("validate: %w", InvalidInput("tags_list", "missing key %q", "is_default_tag"))

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NotErrorIs(t, err, ErrNotFound)

	var iie *InvalidInputError
	assert.True(t, errors.As(err, &iie))
	assert.Equal(t, "tags_list", iie.Field)
	assert.Contains(t, err.Error(), `missing key "is_default_tag"`)
}

func TestStoreWrapping(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := Store("get media", cause)

	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store get media: disk I/O error", err.Error())
}

func TestStoreKeepsNotFoundAndNil(t *testing.T) {
	nf := NotFound("media", 3)
	assert.Equal(t, nf, Store("get media", nf))
	assert.NotErrorIs(t, Store("get media", nf), ErrStore)
	assert.NoError(t, Store("noop", nil))
}

func TestConfigMissing(t *testing.T) {
	err := ConfigMissing("adjust coefficient alpha")
	assert.ErrorIs(t, err, ErrConfigMissing)
	assert.Equal(t, "adjust coefficient alpha: config missing", err.Error())
}
