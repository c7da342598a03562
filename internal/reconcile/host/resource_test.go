package host

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/unictl/internal/reconcile"
	"github.com/dokzlo13/unictl/internal/unisphere"
	"github.com/dokzlo13/unictl/internal/unisphere/unispheretest"
)

const symmID = "000197900123"

var fastWait = unisphere.WaitConfig{
	MaxAttempts:     5,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
	Multiplier:      2.0,
	Timeout:         5 * time.Second,
}

func setup(t *testing.T) (*unispheretest.Server, *unisphere.Client, *reconcile.Orchestrator) {
	t.Helper()
	srv := unispheretest.NewServer(t)
	client, err := unisphere.NewClient(unisphere.Config{
		URL:          srv.URL,
		User:         unispheretest.User,
		Password:     unispheretest.Password,
		RateLimitRPS: 1000,
	})
	require.NoError(t, err)
	orch := reconcile.NewOrchestrator(client, reconcile.ProbeOptions{ExpectedStatus: http.StatusInternalServerError}, nil, "test-run")
	return srv, client, orch
}

func apply(t *testing.T, orch *reconcile.Orchestrator, r reconcile.Resource) (reconcile.Result, error) {
	t.Helper()
	results, err := orch.Run(context.Background(), []reconcile.Resource{r})
	if err != nil {
		return reconcile.Result{}, err
	}
	require.Len(t, results, 1)
	return results[0], nil
}

func TestHost_CreateWhenMissing(t *testing.T) {
	srv, client, orch := setup(t)

	r := NewResource(client, symmID, Desired{
		Name:       "HOST01",
		Initiators: []string{"1000000C900ABCDE"},
		State:      reconcile.StatePresent,
	}, fastWait)

	result, err := apply(t, orch, r)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, "HOST01", result.Name)
	assert.Equal(t, reconcile.StatePresent, result.State)

	require.Equal(t, 1, srv.Calls(http.MethodPost, "host"))
	payloads := srv.Payloads("host")
	require.Len(t, payloads, 1)
	assert.Equal(t, map[string]any{
		"hostId":      "HOST01",
		"initiatorId": []any{"1000000C900ABCDE"},
	}, payloads[0])
}

func TestHost_NameIsUppercased(t *testing.T) {
	srv, client, orch := setup(t)

	r := NewResource(client, symmID, Desired{
		Name:       "host01",
		Initiators: []string{"1000000C900ABCDE"},
		State:      reconcile.StatePresent,
	}, fastWait)
	assert.Equal(t, "HOST01", r.Key().ID)

	result, err := apply(t, orch, r)
	require.NoError(t, err)
	assert.Equal(t, "HOST01", result.Name)
	assert.True(t, srv.Exists("host", "HOST01"))
	assert.False(t, srv.Exists("host", "host01"))
}

func TestHost_PresentIsIdempotent(t *testing.T) {
	srv, client, orch := setup(t)
	desired := Desired{Name: "HOST01", Initiators: []string{"1000000C900ABCDE"}, State: reconcile.StatePresent}

	first, err := apply(t, orch, NewResource(client, symmID, desired, fastWait))
	require.NoError(t, err)
	second, err := apply(t, orch, NewResource(client, symmID, desired, fastWait))
	require.NoError(t, err)

	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Equal(t, 1, srv.Calls(http.MethodPost, "host"))
}

func TestHost_AbsentIsIdempotent(t *testing.T) {
	srv, client, orch := setup(t)
	srv.Seed("host", "HOST01")
	desired := Desired{Name: "HOST01", State: reconcile.StateAbsent}

	first, err := apply(t, orch, NewResource(client, symmID, desired, fastWait))
	require.NoError(t, err)
	second, err := apply(t, orch, NewResource(client, symmID, desired, fastWait))
	require.NoError(t, err)

	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Equal(t, 1, srv.Calls(http.MethodDelete, "host"))
	assert.False(t, srv.Exists("host", "HOST01"))
}

func TestHost_NoCreateWhenExisting(t *testing.T) {
	srv, client, orch := setup(t)
	srv.Seed("host", "HOST01")

	result, err := apply(t, orch, NewResource(client, symmID, Desired{
		Name:       "HOST01",
		Initiators: []string{"1000000C900ABCDE"},
		State:      reconcile.StatePresent,
	}, fastWait))
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, 0, srv.Calls(http.MethodPost, "host"))
}

func TestHost_NoDeleteWhenMissing(t *testing.T) {
	srv, client, orch := setup(t)

	result, err := apply(t, orch, NewResource(client, symmID, Desired{Name: "HOST01", State: reconcile.StateAbsent}, fastWait))
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, 0, srv.Calls(http.MethodDelete, "host"))
}

func TestHost_DeleteWaitsForRemoval(t *testing.T) {
	srv, client, orch := setup(t)
	srv.Seed("host", "HOST01")
	srv.SetDeleteLag(2)

	result, err := apply(t, orch, NewResource(client, symmID, Desired{Name: "HOST01", State: reconcile.StateAbsent}, fastWait))
	require.NoError(t, err)
	assert.True(t, result.Changed)
	// existence check + two "still there" polls + final 404
	assert.Equal(t, 4, srv.Calls(http.MethodGet, "host"))
}

func TestHost_DeleteTimeout(t *testing.T) {
	srv, client, orch := setup(t)
	srv.Seed("host", "HOST01")
	srv.SetDeleteLag(100)

	_, err := apply(t, orch, NewResource(client, symmID, Desired{Name: "HOST01", State: reconcile.StateAbsent}, fastWait))
	require.Error(t, err)
	assert.True(t, errors.Is(err, unisphere.ErrDeleteTimeout))
	assert.False(t, errors.Is(err, reconcile.ErrMutationFailed))
	assert.Equal(t, 1+fastWait.MaxAttempts, srv.Calls(http.MethodGet, "host"))
}

func TestHost_CreateFailureSurfacesStatusAndBody(t *testing.T) {
	srv, client, orch := setup(t)
	srv.Fail(http.MethodPost, "host", http.StatusInternalServerError, `{"message":"internal error"}`)

	_, err := apply(t, orch, NewResource(client, symmID, Desired{
		Name:       "HOST01",
		Initiators: []string{"1000000C900ABCDE"},
		State:      reconcile.StatePresent,
	}, fastWait))
	require.Error(t, err)
	assert.True(t, errors.Is(err, reconcile.ErrMutationFailed))
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "internal error")
}

func TestHost_UnexpectedExistenceStatus(t *testing.T) {
	srv, client, orch := setup(t)
	srv.Fail(http.MethodGet, "host", http.StatusForbidden, `{"message":"not allowed"}`)

	_, err := apply(t, orch, NewResource(client, symmID, Desired{Name: "HOST01", State: reconcile.StateAbsent}, fastWait))
	require.Error(t, err)
	assert.True(t, errors.Is(err, reconcile.ErrUnexpectedStatus))
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "not allowed")
	assert.Equal(t, 0, srv.Calls(http.MethodDelete, "host"))
}

func TestHost_ProbeFailureStopsEverything(t *testing.T) {
	srv, client, orch := setup(t)
	srv.SetProbeStatus(http.StatusOK)

	_, err := apply(t, orch, NewResource(client, symmID, Desired{
		Name:       "HOST01",
		Initiators: []string{"1000000C900ABCDE"},
		State:      reconcile.StatePresent,
	}, fastWait))
	require.Error(t, err)
	assert.True(t, errors.Is(err, unisphere.ErrConnectivity))
	assert.Equal(t, 1, srv.TotalCalls())
}

func TestHost_CreateWithoutInitiators(t *testing.T) {
	srv, client, orch := setup(t)

	_, err := apply(t, orch, NewResource(client, symmID, Desired{Name: "HOST01", State: reconcile.StatePresent}, fastWait))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initiator")
	assert.Equal(t, 0, srv.Calls(http.MethodPost, "host"))
}
