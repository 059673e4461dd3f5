package fleet

// wellKnownWebsocketPaths lists path suffixes the leader advertises on
// every cluster regardless of which services happen to be running,
// carried over from the original leader-info payload's ws_pcm/ws_omi
// streaming routes (routers/unodes.py get_leader_info).
var wellKnownWebsocketPaths = []string{"/ws_pcm", "/ws_omi"}

// ServiceDeployment is one service's entry in the leader-info response's
// cluster-wide service list.
type ServiceDeployment struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status"`
	NodeHostname string `json:"unode_hostname"`
	InternalURL string `json:"internal_url,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`
}

// LeaderInfo is the payload served by the public, unauthenticated
// bootstrap endpoint (spec.md §4.5 "Leader info").
type LeaderInfo struct {
	Hostname       string              `json:"hostname"`
	Envname        string              `json:"envname,omitempty"`
	DisplayName    string              `json:"display_name,omitempty"`
	MeshIP         string              `json:"mesh_ip"`
	MeshHostname   string              `json:"mesh_hostname,omitempty"`
	Capabilities   Capabilities        `json:"capabilities"`
	APIURL         string              `json:"api_url"`
	WebsocketURLs  []string            `json:"websocket_urls,omitempty"`
	Nodes          []Node              `json:"unodes"`
	Services       []ServiceDeployment `json:"services"`
}

// ServiceURLResolver maps a running service name on a given node to its
// internal container URL and externally routed URL (backed by the
// compose-derived container name + port and the mesh route table).
type ServiceURLResolver interface {
	ResolveServiceURL(serviceName string) (internalURL, externalURL string, ok bool)
}

// BuildLeaderInfo composes the cluster bootstrap payload: leader node
// attributes, every registered node, and the list of services currently
// running across the fleet with their internal/external URLs.
func BuildLeaderInfo(leader Node, meshHostname string, nodes []Node, resolver ServiceURLResolver, apiPort int) (LeaderInfo, error) {
	info := LeaderInfo{
		Hostname:     leader.Hostname,
		Envname:      leader.Envname,
		DisplayName:  leader.DisplayName,
		MeshIP:       leader.MeshIP,
		MeshHostname: meshHostname,
		Capabilities: leader.Capabilities,
		Nodes:        nodes,
	}
	if meshHostname != "" {
		info.APIURL = "https://" + meshHostname
		for _, path := range wellKnownWebsocketPaths {
			info.WebsocketURLs = append(info.WebsocketURLs, "wss://"+meshHostname+path)
		}
	}

	for _, node := range nodes {
		for _, serviceName := range node.Services {
			dep := ServiceDeployment{
				Name:         serviceName,
				DisplayName:  serviceName,
				Status:       "running",
				NodeHostname: node.Hostname,
			}
			if resolver != nil {
				if internalURL, externalURL, ok := resolver.ResolveServiceURL(serviceName); ok {
					dep.InternalURL = internalURL
					dep.ExternalURL = externalURL
				}
			}
			info.Services = append(info.Services, dep)
		}
	}
	return info, nil
}
