package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTransactionID(t *testing.T) {
	id, err := GenerateTransactionID("100000123", TransactionIDLength)
	require.NoError(t, err)

	assert.Len(t, id, TransactionIDLength)
	assert.True(t, strings.HasPrefix(id, "100000123-"))

	other, err := GenerateTransactionID("100000123", TransactionIDLength)
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestGenerateTransactionIDTooLongOrder(t *testing.T) {
	long := strings.Repeat("9", TransactionIDLength)
	_, err := GenerateTransactionID(long, TransactionIDLength)
	assert.Error(t, err)
}

func TestOrderIncrementID(t *testing.T) {
	id, err := GenerateTransactionID("100000123", TransactionIDLength)
	require.NoError(t, err)

	incrementID, err := OrderIncrementID(id)
	require.NoError(t, err)
	assert.Equal(t, "100000123", incrementID)
}

func TestOrderIncrementIDMalformed(t *testing.T) {
	for _, bad := range []string{"", "nodash", "-leadingdash"} {
		_, err := OrderIncrementID(bad)
		assert.Error(t, err, "input %q", bad)
		assert.True(t, IsDomainError(err, ErrorCodeNotificationInvalid))
	}
}
