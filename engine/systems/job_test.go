package systems

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobSystemValidation(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobSystemRunsCallbacks(t *testing.T) {
	js, err := NewJobSystem(4, 8)
	require.NoError(t, err)

	var completed, failed, finished int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		fail := i%5 == 0
		require.NoError(t, js.Submit(JobTask{
			Name:        "sum",
			InputParams: i,
			OnStart: func(input interface{}, output chan<- interface{}) error {
				if fail {
					return errors.New("boom")
				}
				output <- input.(int) * 2
				return nil
			},
			OnComplete: func(output <-chan interface{}) {
				v := <-output
				if v.(int)%2 == 0 {
					atomic.AddInt32(&completed, 1)
				}
			},
			OnFailure: func(err error) {
				atomic.AddInt32(&failed, 1)
			},
			OnCompletionCallback: func() {
				atomic.AddInt32(&finished, 1)
				wg.Done()
			},
		}))
	}
	wg.Wait()
	require.NoError(t, js.Shutdown())

	assert.Equal(t, int32(16), atomic.LoadInt32(&completed))
	assert.Equal(t, int32(4), atomic.LoadInt32(&failed))
	assert.Equal(t, int32(20), atomic.LoadInt32(&finished))
}

func TestSubmitAfterShutdown(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)
	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())
	assert.ErrorIs(t, js.Submit(JobTask{Name: "late"}), ErrJobSystemClosed)
}
