package fleet

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/ushadow-io/ushadow/pkg/cryptutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	box, err := cryptutil.NewBox("test-app-secret")
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	store, err := Open(afero.NewMemMapFs(), "/data", box)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func TestCreateTokenThenRegisterSucceeds(t *testing.T) {
	store := newTestStore(t)

	token, err := store.CreateToken(RoleWorker, 1, 24, "operator")
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	node, secret, err := store.Register(RegistrationRequest{
		Token:    token.Token,
		Hostname: "worker-1",
		MeshIP:   "100.64.0.5",
		Platform: PlatformLinux,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if node.Hostname != "worker-1" || node.Role != RoleWorker {
		t.Fatalf("unexpected node %+v", node)
	}
	if secret == "" {
		t.Fatalf("expected a plaintext secret to be returned")
	}

	got, err := store.SecretFor("worker-1")
	if err != nil {
		t.Fatalf("SecretFor: %v", err)
	}
	if got != secret {
		t.Fatalf("decrypted secret %q does not match issued secret %q", got, secret)
	}
}

func TestRegisterWithExhaustedTokenFailsWithoutCreatingNode(t *testing.T) {
	store := newTestStore(t)

	token, err := store.CreateToken(RoleWorker, 1, 24, "operator")
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	if _, _, err := store.Register(RegistrationRequest{Token: token.Token, Hostname: "worker-1", MeshIP: "100.64.0.5"}); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	_, _, err = store.Register(RegistrationRequest{Token: token.Token, Hostname: "worker-2", MeshIP: "100.64.0.6"})
	if err == nil {
		t.Fatalf("expected second registration against an exhausted token to fail")
	}
	if _, ok := store.Get("worker-2"); ok {
		t.Fatalf("exhausted-token registration must not create a node record")
	}
}

func TestRegisterWithUnknownTokenFails(t *testing.T) {
	store := newTestStore(t)
	_, _, err := store.Register(RegistrationRequest{Token: "does-not-exist", Hostname: "worker-1"})
	if err == nil {
		t.Fatalf("expected registration with unknown token to fail")
	}
}

func TestHeartbeatUpdatesServicesAndLastSeen(t *testing.T) {
	store := newTestStore(t)
	token, _ := store.CreateToken(RoleWorker, 1, 24, "operator")
	store.Register(RegistrationRequest{Token: token.Token, Hostname: "worker-1", MeshIP: "100.64.0.5"})

	err := store.Heartbeat(Heartbeat{Hostname: "worker-1", Status: StatusOnline, ServicesRunning: []string{"chron"}})
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	node, ok := store.Get("worker-1")
	if !ok {
		t.Fatalf("expected node to exist")
	}
	if len(node.Services) != 1 || node.Services[0] != "chron" {
		t.Fatalf("unexpected services %v", node.Services)
	}
}

func TestReleaseRemovesNodeRecord(t *testing.T) {
	store := newTestStore(t)
	token, _ := store.CreateToken(RoleWorker, 1, 24, "operator")
	store.Register(RegistrationRequest{Token: token.Token, Hostname: "worker-1", MeshIP: "100.64.0.5"})

	removed, err := store.Release("worker-1")
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !removed {
		t.Fatalf("expected Release to report true")
	}
	if _, ok := store.Get("worker-1"); ok {
		t.Fatalf("expected node to be gone after release")
	}
}
