package mqttx

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestConnectStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Port 1 refuses immediately; the cancelled context stops the retry loop
	// after the first attempt instead of backing off.
	_, err := Connect(ctx, Config{
		Host:     "127.0.0.1",
		Port:     1,
		ClientID: "test-client",
	}, zap.NewNop().Sugar())
	if err == nil {
		t.Fatal("Connect should fail against a refused port with a cancelled context")
	}
}
