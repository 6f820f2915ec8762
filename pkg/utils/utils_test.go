package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetDefaultNum(t *testing.T) {
	n := 0
	SetDefaultNum(&n, 16)
	require.Equal(t, 16, n)
	SetDefaultNum(&n, 32)
	require.Equal(t, 16, n)

	var d time.Duration
	SetDefaultNum(&d, time.Second)
	require.Equal(t, time.Second, d)
}

func TestCheckNumRange(t *testing.T) {
	require.True(t, CheckNumRange(3, 0, 3))
	require.False(t, CheckNumRange(-1, 0, 3))
	require.False(t, CheckNumRange(uint8(9), 0, 8))
}
