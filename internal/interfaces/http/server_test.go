package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanyen2/Scholet/internal/testutil"
)

func TestServer_StartStop(t *testing.T) {
	log := testutil.NewMockLogger()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	srv := NewServer(ServerConfig{Host: "127.0.0.1", Port: 0}, handler, log)
	assert.Equal(t, "127.0.0.1:0", srv.Addr())
	assert.NotNil(t, srv.Handler())

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	require.Eventually(t, func() bool {
		return log.HasMessage("info", "http server listening")
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, srv.Stop(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, log.HasMessage("info", "http server stopped"))
}
