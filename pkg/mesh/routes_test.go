package mesh

import (
	"context"
	"testing"
)

type recordingClient struct {
	added   map[string]string
	removed []string
}

func newRecordingClient() *recordingClient {
	return &recordingClient{added: map[string]string{}}
}

func (c *recordingClient) Status(ctx context.Context) (Status, error) { return Status{}, nil }
func (c *recordingClient) Hostname(ctx context.Context) (string, error) { return "mesh-host", nil }

func (c *recordingClient) AddRoute(ctx context.Context, path, backend string) error {
	c.added[path] = backend
	return nil
}

func (c *recordingClient) RemoveRoute(ctx context.Context, path string) error {
	c.removed = append(c.removed, path)
	return nil
}

func TestRouteTableAddThenRemove(t *testing.T) {
	client := newRecordingClient()
	table := NewRouteTable(client)

	if err := table.Add(context.Background(), "chron", "chron-container", 8080); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := client.added["/chron"]; got != "chron-container:8080" {
		t.Fatalf("unexpected backend %q", got)
	}

	if err := table.Remove(context.Background(), "chron"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(client.removed) != 1 || client.removed[0] != "/chron" {
		t.Fatalf("unexpected removed paths %v", client.removed)
	}
}

func TestRouteTableResolveServiceURL(t *testing.T) {
	client := newRecordingClient()
	table := NewRouteTable(client)

	if _, _, ok := table.ResolveServiceURL("chron"); ok {
		t.Fatalf("expected no resolution before Add")
	}

	if err := table.Add(context.Background(), "chron", "chron-container", 8080); err != nil {
		t.Fatalf("Add: %v", err)
	}
	table.SetMeshHostname("box-1.tailnet.ts.net")

	internalURL, externalURL, ok := table.ResolveServiceURL("chron")
	if !ok {
		t.Fatalf("expected resolution after Add")
	}
	if internalURL != "http://chron-container:8080" {
		t.Fatalf("unexpected internal URL %q", internalURL)
	}
	if externalURL != "https://box-1.tailnet.ts.net/chron" {
		t.Fatalf("unexpected external URL %q", externalURL)
	}
}

func TestAccessURLFormat(t *testing.T) {
	got := AccessURL("box-1.tailnet.ts.net", "chron")
	want := "https://box-1.tailnet.ts.net/chron"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
