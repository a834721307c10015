package adapter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arthdev/queryx"
)

func userEndpoint() *queryx.Endpoint[int, string] {
	return queryx.NewEndpoint(func(ctx context.Context, id int) (string, error) {
		return fmt.Sprintf("user-%d", id), nil
	}, queryx.EndpointOptions[int]{})
}

// awaitSuccess polls obs until it reaches Success or the deadline passes.
// SetArg/SetArg-via-Binding starts its refetch in a detached goroutine, so
// there is no happens-before edge to a Data() read right after SetArg.
func awaitSuccess(t *testing.T, obs *queryx.Observer[int, string]) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !obs.IsSuccess() {
		if time.Now().After(deadline) {
			t.Fatalf("observer did not reach Success in time (status=%v)", obs.Status())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBindingDefersUntilBothEndpointAndArgKnown(t *testing.T) {
	var b Binding[int, string]

	require.Nil(t, b.Observer(), "no observer before endpoint or arg is known")

	b.SetArg(7)
	require.Nil(t, b.Observer(), "arg alone must not create an observer")

	ep := userEndpoint()
	b.SetEndpoint(ep)
	require.NotNil(t, b.Observer(), "observer should be created once both endpoint and arg are known")

	awaitSuccess(t, b.Observer())
	data, ok := b.Observer().Data()
	require.True(t, ok)
	require.Equal(t, "user-7", data)
}

func TestBindingEndpointFirstThenArg(t *testing.T) {
	var b Binding[int, string]
	ep := userEndpoint()

	b.SetEndpoint(ep)
	require.Nil(t, b.Observer())

	b.SetArg(3)
	require.NotNil(t, b.Observer())
	awaitSuccess(t, b.Observer())
	data, _ := b.Observer().Data()
	require.Equal(t, "user-3", data)
}

func TestBindingEndpointChangeDetachesOldObserver(t *testing.T) {
	var b Binding[int, string]
	ep1 := userEndpoint()
	ep2 := userEndpoint()

	b.SetEndpoint(ep1)
	b.SetArg(1)
	first := b.Observer()
	require.NotNil(t, first)
	awaitSuccess(t, first)

	b.SetEndpoint(ep2)
	second := b.Observer()
	require.NotNil(t, second)
	require.NotSame(t, first, second, "changing endpoints must create a fresh observer")
	require.Equal(t, queryx.StatusIdle, first.Status(), "the old observer must be detached from its execution")
}

func TestBindingClose(t *testing.T) {
	var b Binding[int, string]
	b.SetEndpoint(userEndpoint())
	b.SetArg(1)
	require.NotNil(t, b.Observer())

	b.Close()
	require.Nil(t, b.Observer())
}
