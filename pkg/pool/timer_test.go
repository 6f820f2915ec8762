package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimer_Reuse(t *testing.T) {
	tm := GetTimer(time.Millisecond)
	<-tm.C
	ReleaseTimer(tm)

	tm = GetTimer(time.Hour)
	ResetAndDrainTimer(tm, time.Millisecond)
	select {
	case <-tm.C:
	case <-time.After(time.Second):
		require.FailNow(t, "timer did not fire")
	}
	ReleaseTimer(tm)
	ReleaseTimer(nil)
}
