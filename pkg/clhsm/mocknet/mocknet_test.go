package mocknet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
)

func TestPingPongOrder(t *testing.T) {
	net := New()
	a := net.Endpoint(0, []clhsm.RoleID{1})
	b := net.Endpoint(1, []clhsm.RoleID{0})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const rounds = 20
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			got, err := b.Receive(ctx, 0)
			if err != nil {
				t.Errorf("b receive %d: %v", i, err)
				return
			}
			if err := b.Send(ctx, 0, []byte{got[0] + 1}); err != nil {
				t.Errorf("b send %d: %v", i, err)
				return
			}
		}
	}()

	for i := 0; i < rounds; i++ {
		require.NoError(t, a.Send(ctx, 1, []byte{byte(2 * i)}))
		got, err := a.Receive(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, []byte{byte(2*i + 1)}, got)
	}
	wg.Wait()
}

func TestSendDoesNotBlockAndKeepsOrder(t *testing.T) {
	net := New()
	a := net.Endpoint(0, []clhsm.RoleID{1})
	b := net.Endpoint(1, []clhsm.RoleID{0})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, a.Send(ctx, 1, []byte{byte(i)}))
	}
	for i := 0; i < 100; i++ {
		got, err := b.Receive(ctx, 0)
		require.NoError(t, err)
		require.Equal(t, byte(i), got[0])
	}
}

func TestSendCopiesPayload(t *testing.T) {
	net := New()
	a := net.Endpoint(0, []clhsm.RoleID{1})
	b := net.Endpoint(1, []clhsm.RoleID{0})
	ctx := context.Background()

	msg := []byte("hello")
	require.NoError(t, a.Send(ctx, 1, msg))
	msg[0] = 'j'
	got, err := b.Receive(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestReceiveAllMultiParty(t *testing.T) {
	net := New()
	roles := []clhsm.RoleID{0, 1, 2, 3}
	eps := make([]*Endpoint, len(roles))
	for i, r := range roles {
		eps[i] = net.Endpoint(r, roles)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i, ep := range eps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var others []clhsm.RoleID
			for _, r := range roles {
				if r == ep.Self() {
					continue
				}
				others = append(others, r)
				if err := ep.Send(ctx, r, []byte{byte(i)}); err != nil {
					t.Errorf("send %d->%d: %v", i, r, err)
					return
				}
			}
			batch, err := ep.ReceiveAll(ctx, others)
			if err != nil {
				t.Errorf("receive all %d: %v", i, err)
				return
			}
			if len(batch) != len(others) {
				t.Errorf("endpoint %d got %d messages", i, len(batch))
			}
			for _, r := range others {
				if msg := batch[r]; len(msg) != 1 || msg[0] != byte(r) {
					t.Errorf("endpoint %d got %v from %d", i, msg, r)
				}
			}
		}()
	}
	wg.Wait()

	empty, err := eps[0].ReceiveAll(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestEndpointErrors(t *testing.T) {
	net := New()
	ep := net.Endpoint(0, []clhsm.RoleID{0, 1, 2})
	ctx := context.Background()

	require.ErrorIs(t, ep.Send(ctx, 0, nil), clhsm.ErrInvalidArgument)
	require.ErrorIs(t, ep.Send(ctx, 7, nil), clhsm.ErrInvalidArgument)
	_, err := ep.Receive(ctx, 0)
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
	_, err = ep.ReceiveAll(ctx, []clhsm.RoleID{1, 1})
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
	_, err = ep.ReceiveAll(ctx, []clhsm.RoleID{0, 1})
	require.ErrorIs(t, err, clhsm.ErrInvalidArgument)
}

func TestReceiveHonorsContextAndClose(t *testing.T) {
	net := New()
	ep := net.Endpoint(0, []clhsm.RoleID{1})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := ep.Receive(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() {
		_, err := ep.Receive(context.Background(), 1)
		done <- err
	}()
	net.Close()
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("receiver not woken by Close")
	}
	require.ErrorIs(t, ep.Send(context.Background(), 1, []byte{1}), ErrClosed)
}
