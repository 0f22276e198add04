package broker

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func chanStation(name string, ch chan int, sink *[]int) Station {
	return Station{
		Name: name,
		Poll: func() (Flow, bool) {
			select {
			case v := <-ch:
				*sink = append(*sink, v)
				return Continue, true
			default:
				return Continue, false
			}
		},
		Chan: func() reflect.Value { return reflect.ValueOf(ch) },
	}
}

func TestRunPollsEveryStationOncePerPassInOrder(t *testing.T) {
	a, b := make(chan int, 4), make(chan int, 4)
	a <- 1
	a <- 2
	b <- 10

	var sink []int
	ctx, cancel := context.WithCancel(context.Background())
	stations := []Station{chanStation("a", a, &sink), chanStation("b", b, &sink)}

	passes := 0
	err := Run(ctx, stations, func() Flow {
		passes++
		if passes >= 3 {
			cancel()
		}
		return Continue
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []int{1, 10, 2}, sink)
}

func TestRunStopsOnBreakFromStation(t *testing.T) {
	a := make(chan int, 1)
	a <- 99
	stations := []Station{{
		Name: "a",
		Poll: func() (Flow, bool) {
			select {
			case <-a:
				return Break, true
			default:
				return Continue, false
			}
		},
		Chan: func() reflect.Value { return reflect.ValueOf(a) },
	}}

	err := Run(context.Background(), stations, func() Flow { return Continue })
	require.NoError(t, err)
}

func TestRunSuspendsUntilChannelReadable(t *testing.T) {
	a := make(chan int, 1)
	var sink []int
	stations := []Station{chanStation("a", a, &sink)}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		a <- 7
	}()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, stations, func() Flow {
			if len(sink) > 0 {
				return Break
			}
			return Continue
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
		require.Equal(t, []int{7}, sink)
	case <-time.After(2 * time.Second):
		t.Fatal("broker loop did not wake on channel readiness")
	}
}
