package events

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestDispatcher_DeliversInOrderAndDrainsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	var got []int
	d := NewDispatcher[int]("test", 2, func(_ context.Context, item int) {
		mu.Lock()
		got = append(got, item)
		mu.Unlock()
	})

	for i := 0; i < 50; i++ {
		assert.True(t, d.Dispatch(i))
	}
	d.Close()

	want := make([]int, 50)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestDispatcher_RejectsAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := NewDispatcher[string]("test", 1)
	d.Close()
	d.Close()
	assert.False(t, d.Dispatch("late"))
}

func TestDispatcher_SurvivesPanickingHandler(t *testing.T) {
	defer goleak.VerifyNone(t)

	var delivered int
	d := NewDispatcher[int]("test", 1,
		func(_ context.Context, item int) {
			if item == 1 {
				panic("boom")
			}
		},
		func(_ context.Context, item int) { delivered++ },
	)
	d.Dispatch(1)
	d.Dispatch(2)
	d.Close()

	assert.Equal(t, 2, delivered)
}
