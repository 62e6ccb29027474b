package client

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthLoginStatusLogout(t *testing.T) {
	isolateConfig(t)
	require.NoError(t, SaveProfile(&Profile{Industry: "fintech"}))

	var out bytes.Buffer
	login := AuthCmd()
	login.SetOut(&out)
	login.SetIn(strings.NewReader("kp_0123456789abcdef\n"))
	login.SetArgs([]string{"login", "--url", "http://knowpool:8080"})
	require.NoError(t, login.Execute())
	assert.Contains(t, out.String(), "Successfully logged in")

	profile, err := LoadProfile()
	require.NoError(t, err)
	assert.Equal(t, "kp_0123456789abcdef", profile.APIKey)
	assert.Equal(t, "http://knowpool:8080", profile.APIURL)
	assert.Equal(t, "fintech", profile.Industry, "login keeps pool defaults")

	out.Reset()
	status := AuthCmd()
	status.SetOut(&out)
	status.SetArgs([]string{"status", "--json"})
	require.NoError(t, status.Execute())

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, true, got["authenticated"])
	assert.Equal(t, "profile", got["source"])
	assert.Equal(t, "kp_0...cdef", got["api_key"])

	out.Reset()
	logout := AuthCmd()
	logout.SetOut(&out)
	logout.SetArgs([]string{"logout"})
	require.NoError(t, logout.Execute())

	out.Reset()
	status = AuthCmd()
	status.SetOut(&out)
	status.SetArgs([]string{"status"})
	require.NoError(t, status.Execute())
	assert.Contains(t, out.String(), "Not authenticated")

	profile, err = LoadProfile()
	require.NoError(t, err)
	assert.Equal(t, Profile{Industry: "fintech"}, *profile, "logout clears only credentials")
}

func TestAuthLogin_EmptyKey(t *testing.T) {
	isolateConfig(t)

	cmd := AuthCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("\n"))
	cmd.SetArgs([]string{"login"})
	assert.ErrorContains(t, cmd.Execute(), "API key cannot be empty")
}
