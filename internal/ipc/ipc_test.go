package ipc

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestServerClientRoundtrip(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "geofenced.sock")

	srv := NewServer(sock, func(ctx context.Context, req Request) Response {
		if req.Command != CmdDaemonStatus {
			return Response{OK: false, Error: "unexpected command"}
		}
		return MustMarshalResult(StatusResult{Phase: "in_zone", CurrentZoneName: "Home"})
	}, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Shutdown()

	client := NewClient(sock)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var status StatusResult
	if err := client.CallSimple(ctx, CmdDaemonStatus, &status); err != nil {
		t.Fatalf("CallSimple: %v", err)
	}
	if status.CurrentZoneName != "Home" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestClientFailsWhenNoDaemonListening(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "nonexistent.sock")
	client := NewClient(sock)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := client.CallSimple(ctx, CmdDaemonStatus, nil); err == nil {
		t.Fatalf("expected dial error when no daemon is listening")
	}
}

func TestServerHandlesMultipleCommandKinds(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "geofenced.sock")
	srv := NewServer(sock, func(ctx context.Context, req Request) Response {
		return Response{OK: true}
	}, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Shutdown()

	client := NewClient(sock)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for _, cmd := range []CommandKind{CmdListZones, CmdCurrentZone, CmdDaemonStatus} {
		var out StatusResult
		if err := client.CallSimple(ctx, cmd, &out); err != nil {
			t.Fatalf("unexpected error for %s: %v", cmd, err)
		}
	}
}
