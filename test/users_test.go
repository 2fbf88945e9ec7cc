package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profileUpdateRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (s *IntegrationTestSuite) TestProfileUpdate() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.registerUser(ctx, t, "renamee", "renameepass")
	s.registerUser(ctx, t, "occupied", "occupiedpass")
	token := s.doLogin(ctx, t, "renamee", "renameepass")

	t.Run("without auth token", func(t *testing.T) {
		resp := s.doRequest(ctx, "PUT", fmt.Sprintf("%s/profile", serverEndpoint), "", profileUpdateRequest{
			Username: "renamee-new",
		})
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("username already taken", func(t *testing.T) {
		resp := s.doRequest(ctx, "PUT", fmt.Sprintf("%s/profile", serverEndpoint), token, profileUpdateRequest{
			Username: "occupied",
		})
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("update own profile", func(t *testing.T) {
		resp := s.doRequest(ctx, "PUT", fmt.Sprintf("%s/profile", serverEndpoint), token, profileUpdateRequest{
			Username:  "renamee-new",
			Email:     "renamee@example.org",
			FirstName: "Rena",
			LastName:  "Mee",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var updated struct {
			Username  string `json:"username"`
			Email     string `json:"email"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
		assert.NoError(t, resp.Body.Close())
		assert.Equal(t, "renamee-new", updated.Username)
		assert.Equal(t, "renamee@example.org", updated.Email)
		assert.Equal(t, "Rena", updated.FirstName)
		assert.Equal(t, "Mee", updated.LastName)

		// the profile page is reachable under the new name, the session stays valid
		profilePage := s.getProfilePage(ctx, "renamee-new", 1, token)
		assert.Equal(t, "renamee-new", profilePage.Profile.Username)
	})
}
