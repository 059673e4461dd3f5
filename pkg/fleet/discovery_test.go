package fleet

import "testing"

func TestIsRegisteredReflectsStore(t *testing.T) {
	store := newTestStore(t)
	if store.IsRegistered("worker-1") {
		t.Fatalf("expected unregistered hostname to report false")
	}
	token, _ := store.CreateToken(RoleWorker, 1, 24, "operator")
	store.Register(RegistrationRequest{Token: token.Token, Hostname: "worker-1", MeshIP: "100.64.0.5"})
	if !store.IsRegistered("worker-1") {
		t.Fatalf("expected registered hostname to report true")
	}
}
