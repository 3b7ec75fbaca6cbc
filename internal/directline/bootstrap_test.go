package directline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtriplabs/pvachat/internal/logging"
)

func testBootstrapper(t *testing.T) *Bootstrapper {
	t.Helper()
	return NewBootstrapper(nil, logging.NewNop())
}

// fakeEnvironment serves the regional-settings and conversation-start
// endpoints of an agent environment.
type fakeEnvironment struct {
	srv *httptest.Server

	regionalStatus  int
	regionalBody    any
	convStartStatus int
	convStartBody   any
}

func newFakeEnvironment(t *testing.T) *fakeEnvironment {
	t.Helper()
	env := &fakeEnvironment{
		regionalStatus:  http.StatusOK,
		convStartStatus: http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/powervirtualagents/regionalchannelsettings", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2022", r.URL.Query().Get("api-version"))
		w.WriteHeader(env.regionalStatus)
		json.NewEncoder(w).Encode(env.regionalBody)
	})
	mux.HandleFunc("/powervirtualagents/convstart", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(env.convStartStatus)
		json.NewEncoder(w).Encode(env.convStartBody)
	})
	env.srv = httptest.NewServer(mux)
	t.Cleanup(env.srv.Close)

	env.regionalBody = map[string]any{
		"channelUrlsById": map[string]string{"directline": "https://europe.directline.example/"},
	}
	env.convStartBody = map[string]any{"token": "conv-token-1"}
	return env
}

func (env *fakeEnvironment) descriptor(t *testing.T) Descriptor {
	t.Helper()
	d, err := ParseDescriptor(env.srv.URL + "/powervirtualagents/convstart?api-version=2022")
	require.NoError(t, err)
	return d
}

func TestResolveRegional(t *testing.T) {
	env := newFakeEnvironment(t)
	b := testBootstrapper(t)

	info, err := b.ResolveRegional(context.Background(), env.descriptor(t))
	require.NoError(t, err)
	assert.Equal(t, "https://europe.directline.example/", info.DirectLineBaseURL)
}

func TestResolveRegional_HTTPError(t *testing.T) {
	env := newFakeEnvironment(t)
	env.regionalStatus = http.StatusInternalServerError
	b := testBootstrapper(t)

	_, err := b.ResolveRegional(context.Background(), env.descriptor(t))
	require.Error(t, err)

	var bootErr *BootstrapError
	require.ErrorAs(t, err, &bootErr)
	assert.Equal(t, http.StatusInternalServerError, bootErr.Status)
}

func TestResolveRegional_MissingDirectlineKey(t *testing.T) {
	env := newFakeEnvironment(t)
	env.regionalBody = map[string]any{"channelUrlsById": map[string]string{"webchat": "https://x/"}}
	b := testBootstrapper(t)

	_, err := b.ResolveRegional(context.Background(), env.descriptor(t))
	var bootErr *BootstrapError
	require.ErrorAs(t, err, &bootErr)
	assert.Contains(t, bootErr.Error(), "channelUrlsById.directline")
}

func TestStartConversation(t *testing.T) {
	env := newFakeEnvironment(t)
	b := testBootstrapper(t)

	session, err := b.StartConversation(context.Background(), env.descriptor(t),
		RegionalEndpointInfo{DirectLineBaseURL: "https://europe.directline.example/"})
	require.NoError(t, err)
	assert.Equal(t, "conv-token-1", session.Token)
	assert.Equal(t, "https://europe.directline.example/v3/directline", session.TransportDomain)
}

func TestStartConversation_HTTPError(t *testing.T) {
	env := newFakeEnvironment(t)
	env.convStartStatus = http.StatusInternalServerError
	b := testBootstrapper(t)

	_, err := b.StartConversation(context.Background(), env.descriptor(t),
		RegionalEndpointInfo{DirectLineBaseURL: "https://europe.directline.example/"})

	var bootErr *BootstrapError
	require.ErrorAs(t, err, &bootErr)
	assert.Equal(t, http.StatusInternalServerError, bootErr.Status)
}

func TestStartConversation_MissingToken(t *testing.T) {
	env := newFakeEnvironment(t)
	env.convStartBody = map[string]any{"unexpected": true}
	b := testBootstrapper(t)

	_, err := b.StartConversation(context.Background(), env.descriptor(t),
		RegionalEndpointInfo{DirectLineBaseURL: "https://europe.directline.example/"})

	var bootErr *BootstrapError
	require.ErrorAs(t, err, &bootErr)
}

func TestBootstrap_ConversationStartFailureAbortsAll(t *testing.T) {
	env := newFakeEnvironment(t)
	env.convStartStatus = http.StatusInternalServerError
	b := testBootstrapper(t)

	conn, err := b.Bootstrap(context.Background(), env.descriptor(t))
	require.Error(t, err)
	assert.Nil(t, conn, "no partial transport handle on failure")
}

func TestBootstrap_RegionalFailureSkipsConversationStart(t *testing.T) {
	env := newFakeEnvironment(t)
	env.regionalStatus = http.StatusBadGateway

	b := testBootstrapper(t)
	conn, err := b.Bootstrap(context.Background(), env.descriptor(t))
	require.Error(t, err)
	assert.Nil(t, conn)

	var bootErr *BootstrapError
	require.ErrorAs(t, err, &bootErr)
	assert.Equal(t, http.StatusBadGateway, bootErr.Status)
}
