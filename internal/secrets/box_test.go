// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := NewBox("test-encryption-key")
	require.NoError(t, err)

	sealed, err := box.Seal("EAABsbCS1iHgBO7token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "token")

	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "EAABsbCS1iHgBO7token", opened)
}

func TestSealIsNonDeterministic(t *testing.T) {
	box, err := NewBox("test-encryption-key")
	require.NoError(t, err)

	a, err := box.Seal("same")
	require.NoError(t, err)
	b, err := box.Seal("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpenRejectsTampering(t *testing.T) {
	box, err := NewBox("test-encryption-key")
	require.NoError(t, err)

	sealed, err := box.Seal("secret")
	require.NoError(t, err)

	_, err = box.Open(sealed[:len(sealed)-4] + "AAAA")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = box.Open("not base64 !!!")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestKeysAreIndependent(t *testing.T) {
	boxA, err := NewBox("key-a")
	require.NoError(t, err)
	boxB, err := NewBox("key-b")
	require.NoError(t, err)

	sealed, err := boxA.Seal("secret")
	require.NoError(t, err)

	_, err = boxB.Open(sealed)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewBoxRejectsEmptyKey(t *testing.T) {
	_, err := NewBox("")
	assert.Error(t, err)
}
