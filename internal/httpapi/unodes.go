package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ushadow-io/ushadow/pkg/fleet"
)

type createTokenRequest struct {
	Role            fleet.Role `json:"role"`
	MaxUses         int        `json:"max_uses"`
	ExpiresInHours  int        `json:"expires_in_hours"`
}

type createTokenResponse struct {
	Token            fleet.JoinToken `json:"token"`
	JoinScriptURL    string          `json:"join_script_url"`
	JoinPowershellURL string         `json:"join_script_url_ps1"`
	BootstrapURL     string          `json:"bootstrap_script_url"`
}

func (s *Server) createToken(w http.ResponseWriter, r *http.Request) {
	var body createTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token, err := s.leader.Fleet.CreateToken(body.Role, body.MaxUses, body.ExpiresInHours, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	base := "http://" + r.Host
	bash, ps1, bootstrap := fleet.JoinScriptURLs(base, token.Token)
	writeJSON(w, http.StatusCreated, createTokenResponse{
		Token:             token,
		JoinScriptURL:     bash,
		JoinPowershellURL: ps1,
		BootstrapURL:      bootstrap,
	})
}

func (s *Server) joinScriptBash(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "#!/bin/sh\ncurl -sL http://%s/api/unodes/register -X POST -H 'Content-Type: application/json' -d '{\"token\":\"%s\"}'\n", r.Host, token)
}

func (s *Server) joinScriptPowershell(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "Invoke-RestMethod -Method Post -Uri http://%s/api/unodes/register -Body (@{token='%s'} | ConvertTo-Json) -ContentType 'application/json'\n", r.Host, token)
}

func (s *Server) bootstrapScriptBash(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "#!/bin/sh\ncurl -fsSL https://tailscale.com/install.sh | sh\ncurl -sL http://%s/api/unodes/join/%s | sh\n", r.Host, token)
}

func (s *Server) bootstrapScriptPowershell(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "iex (iwr https://tailscale.com/install.ps1).Content\niex (iwr http://%s/api/unodes/join/%s/ps1).Content\n", r.Host, token)
}

func (s *Server) registerNode(w http.ResponseWriter, r *http.Request) {
	var req fleet.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	node, secret, err := s.leader.Fleet.Register(req)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "UNode registered successfully",
		"unode":   node,
		"secret":  secret,
	})
}

func (s *Server) heartbeatNode(w http.ResponseWriter, r *http.Request) {
	var hb fleet.Heartbeat
	if err := json.NewDecoder(r.Body).Decode(&hb); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.leader.Fleet.Heartbeat(hb); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Heartbeat received"})
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.leader.Fleet.List())
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	hostname := mux.Vars(r)["hostname"]
	node, ok := s.leader.Fleet.Get(hostname)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("unode", hostname))
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) deleteNode(w http.ResponseWriter, r *http.Request) {
	hostname := mux.Vars(r)["hostname"]
	removed, err := s.leader.Fleet.Remove(hostname)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, errNotFound("unode", hostname))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) releaseNode(w http.ResponseWriter, r *http.Request) {
	hostname := mux.Vars(r)["hostname"]
	released, err := s.leader.Fleet.Release(hostname)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"released": released})
}

func (s *Server) upgradeNode(w http.ResponseWriter, r *http.Request) {
	hostname := mux.Vars(r)["hostname"]
	var body struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.leader.Fleet.Upgrade(r.Context(), hostname, body.Image); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) patchNodeLabels(w http.ResponseWriter, r *http.Request) {
	hostname := mux.Vars(r)["hostname"]
	var labels map[string]string
	if err := json.NewDecoder(r.Body).Decode(&labels); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.leader.Fleet.SetLabels(hostname, labels); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) discoverPeers(w http.ResponseWriter, r *http.Request) {
	peers, err := s.leader.Fleet.DiscoverPeers(r.Context(), s.leader.Mesh)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, fleet.Categorize(peers))
}

func (s *Server) claimNode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Hostname string `json:"hostname"`
		MeshIP   string `json:"mesh_ip"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Hostname == "" || body.MeshIP == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("hostname and mesh_ip are required"))
		return
	}
	node, err := s.leader.Fleet.Claim(body.Hostname, body.MeshIP)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "unode": node})
}

func (s *Server) leaderInfo(w http.ResponseWriter, r *http.Request) {
	leaderNode, ok := s.leader.Fleet.LeaderNode()
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("leader node not found, cluster may not be initialized"))
		return
	}
	hostname, _ := s.leader.Mesh.Hostname(r.Context())
	s.leader.Routes.SetMeshHostname(hostname)
	info, err := fleet.BuildLeaderInfo(leaderNode, hostname, s.leader.Fleet.List(), s.leader.Routes, 8000)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
