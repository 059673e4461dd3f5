package fleet

import (
	"fmt"
	"time"

	"github.com/ushadow-io/ushadow/pkg/settings"
)

// CreateToken issues a new join token (spec.md §4.5 registration protocol
// step 1). A maxUses below 1 is raised to 1; an expiresInHours below 1
// defaults to 24.
func (s *Store) CreateToken(role Role, maxUses int, expiresInHours int, issuedBy string) (JoinToken, error) {
	if maxUses < 1 {
		maxUses = 1
	}
	if expiresInHours < 1 {
		expiresInHours = 24
	}
	raw, err := settings.RandomURLSafe()
	if err != nil {
		return JoinToken{}, fmt.Errorf("generate join token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	token := JoinToken{
		Token:         raw,
		Role:          role,
		RemainingUses: maxUses,
		ExpiresAt:     time.Now().Add(time.Duration(expiresInHours) * time.Hour),
		IssuedBy:      issuedBy,
	}
	s.tokens[token.Token] = token
	if err := s.persistLocked(); err != nil {
		delete(s.tokens, token.Token)
		return JoinToken{}, err
	}
	return token, nil
}

// JoinScriptURLs renders the bash, PowerShell, and mesh-bootstrap script
// URLs for a freshly created token, for the operator to hand to a
// candidate worker (spec.md §4.5 step 1).
func JoinScriptURLs(leaderBaseURL, token string) (bash, powershell, bootstrap string) {
	bash = fmt.Sprintf("%s/api/unodes/join/%s", leaderBaseURL, token)
	powershell = fmt.Sprintf("%s/api/unodes/join/%s/ps1", leaderBaseURL, token)
	bootstrap = fmt.Sprintf("%s/api/unodes/bootstrap/%s", leaderBaseURL, token)
	return bash, powershell, bootstrap
}

// redeemToken validates and decrements a token's use count. Callers must
// hold s.mu.
func (s *Store) redeemToken(raw string) (JoinToken, error) {
	token, ok := s.tokens[raw]
	if !ok {
		return JoinToken{}, fmt.Errorf("join token not found")
	}
	if token.Expired(time.Now()) {
		return JoinToken{}, fmt.Errorf("join token expired or exhausted")
	}
	token.RemainingUses--
	s.tokens[raw] = token
	return token, nil
}
