package ringbuffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testFrame = func() []byte {
	buf := make([]byte, 480)
	for i := range buf {
		buf[i] = 0xFF
	}
	return buf
}()

func TestCreateError(t *testing.T) {
	_, err := New[[]byte](1000)
	require.EqualError(t, err, "size must be a power of two")

	_, err = New[[]byte](0)
	require.EqualError(t, err, "size must be a power of two")
}

func TestPushBeforePull(t *testing.T) {
	r, err := New[[]byte](1024)
	require.NoError(t, err)
	defer r.Close()

	ok := r.Push(testFrame)
	require.Equal(t, true, ok)

	ret, ok := r.Pull()
	require.Equal(t, true, ok)
	require.Equal(t, testFrame, ret)
}

func TestPullBeforePush(t *testing.T) {
	r, err := New[[]byte](1024)
	require.NoError(t, err)
	defer r.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ret, ok := r.Pull()
		require.Equal(t, true, ok)
		require.Equal(t, testFrame, ret)
	}()

	time.Sleep(100 * time.Millisecond)

	ok := r.Push(testFrame)
	require.Equal(t, true, ok)

	<-done
}

func TestOrder(t *testing.T) {
	r, err := New[int](8)
	require.NoError(t, err)
	defer r.Close()

	for round := range 3 {
		for i := range 8 {
			ok := r.Push(round*8 + i)
			require.Equal(t, true, ok)
		}

		for i := range 8 {
			v, ok := r.Pull()
			require.Equal(t, true, ok)
			require.Equal(t, round*8+i, v)
		}
	}
}

func TestClose(t *testing.T) {
	r, err := New[[]byte](1024)
	require.NoError(t, err)

	ok := r.Push([]byte{1, 2, 3, 4})
	require.Equal(t, true, ok)

	_, ok = r.Pull()
	require.Equal(t, true, ok)

	ok = r.Push([]byte{5, 6, 7, 8})
	require.Equal(t, true, ok)

	r.Close()

	_, ok = r.Pull()
	require.Equal(t, false, ok)
}

func TestCloseWhilePulling(t *testing.T) {
	r, err := New[[]byte](16)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := r.Pull()
		require.Equal(t, false, ok)
	}()

	time.Sleep(50 * time.Millisecond)
	r.Close()
	<-done
}

func TestOverflow(t *testing.T) {
	r, err := New[[]byte](32)
	require.NoError(t, err)

	for range 32 {
		ok := r.Push([]byte{1, 2, 3, 4})
		require.Equal(t, true, ok)
	}

	ok := r.Push([]byte{5, 6, 7, 8})
	require.Equal(t, false, ok)

	for range 32 {
		var data []byte
		data, ok = r.Pull()
		require.Equal(t, true, ok)
		require.Equal(t, []byte{1, 2, 3, 4}, data)
	}
}

func BenchmarkPushPullContinuous(b *testing.B) {
	r, _ := New[[]byte](1024 * 8)
	defer r.Close()

	data := make([]byte, 1024)

	for b.Loop() {
		done := make(chan struct{})
		go func() {
			defer close(done)
			for range 1024 * 8 {
				r.Push(data)
			}
		}()

		for range 1024 * 8 {
			r.Pull()
		}

		<-done
	}
}
