package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownManager_ReverseOrder(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, io.Discard), nil, time.Second)

	var order []string
	for _, name := range []string{"database", "redis", "audit"} {
		name := name
		sm.RegisterShutdownFunc(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	assert.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, []string{"audit", "redis", "database"}, order)
}

func TestShutdownManager_ContinuesPastErrors(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, io.Discard), nil, time.Second)

	ran := false
	sm.RegisterShutdownFunc("database", func(context.Context) error {
		ran = true
		return nil
	})
	sm.RegisterShutdownFunc("redis", func(context.Context) error {
		return errors.New("already closed")
	})

	err := sm.Shutdown(context.Background())
	assert.ErrorContains(t, err, "redis: already closed")
	assert.True(t, ran)
}

func TestShutdownManager_Timeout(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, io.Discard), nil, 20*time.Millisecond)

	ran := false
	sm.RegisterShutdownFunc("database", func(context.Context) error {
		ran = true
		return nil
	})
	sm.RegisterShutdownFunc("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := sm.Shutdown(context.Background())
	assert.Error(t, err)
	assert.False(t, ran, "functions after the deadline are skipped")
}

func TestShutdownManager_HTTPServer(t *testing.T) {
	server := &http.Server{Addr: "127.0.0.1:0"}
	sm := NewShutdownManager(NewLogger(InfoLevel, io.Discard), server, 0)

	assert.NoError(t, sm.Shutdown(context.Background()))
	assert.ErrorIs(t, server.ListenAndServe(), http.ErrServerClosed)
}
