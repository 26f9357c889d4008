package docker

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/containerpilot/internal/core/domain"
)

// fakeExecutor answers commands from a table and records what it was asked.
type fakeExecutor struct {
	connectErr error
	results    map[string]domain.CommandResult
	errs       map[string]error
	calls      []string
	ttyCalls   []string
	connects   int
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		results: map[string]domain.CommandResult{},
		errs:    map[string]error{},
	}
}

func (f *fakeExecutor) EnsureConnected(context.Context) error {
	f.connects++
	return f.connectErr
}

func (f *fakeExecutor) Run(_ context.Context, cmd string) (domain.CommandResult, error) {
	f.calls = append(f.calls, cmd)
	return f.results[cmd], f.errs[cmd]
}

func (f *fakeExecutor) RunTTY(_ context.Context, cmd string) (domain.CommandResult, error) {
	f.ttyCalls = append(f.ttyCalls, cmd)
	return f.results[cmd], f.errs[cmd]
}

const testImage = "rastasheep/ubuntu-sshd:18.04"

func newTestAdapter(exec *fakeExecutor) *Adapter {
	return NewAdapter(exec, testImage, zerolog.Nop())
}

func TestListContainersParsesAndDropsMalformedLines(t *testing.T) {
	exec := newFakeExecutor()
	exec.results[listContainersCmd] = domain.CommandResult{
		Stdout: `{"ID":"abc","Names":"web1","Ports":"0.0.0.0:2201->22/tcp","State":"running","Image":"img:tag"}` + "\n" +
			`{"ID":"broken",` + "\n",
	}

	got, err := newTestAdapter(exec).ListContainers(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, domain.Container{
		ID:      "abc",
		Name:    "web1",
		Ports:   "0.0.0.0:2201->22/tcp",
		SSHPort: 2201,
		Status:  "running",
		Image:   "img:tag",
	}, got[0])
	assert.Equal(t, 1, exec.connects)
	assert.Equal(t, []string{`docker ps -a --format "{{json .}}"`}, exec.calls)
}

func TestListContainersPreservesRemoteOrder(t *testing.T) {
	exec := newFakeExecutor()
	exec.results[listContainersCmd] = domain.CommandResult{
		Stdout: `{"ID":"3","Names":"zeta","Ports":"80/tcp","State":"exited"}` + "\n\n" +
			`{"ID":"1","Names":"alpha","Ports":"0.0.0.0:2203->22/tcp","State":"running"}` + "\n",
	}

	got, err := newTestAdapter(exec).ListContainers(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "zeta", got[0].Name)
	assert.Equal(t, 0, got[0].SSHPort)
	assert.Equal(t, "alpha", got[1].Name)
	assert.Equal(t, 2203, got[1].SSHPort)
}

func TestListContainersEmptyOutput(t *testing.T) {
	exec := newFakeExecutor()
	exec.results[listContainersCmd] = domain.CommandResult{}

	got, err := newTestAdapter(exec).ListContainers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListContainersErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		kind   domain.Kind
	}{
		{"bash missing docker", "bash: docker: command not found", domain.KindDockerMissing},
		{"dash missing docker", "sh: 1: docker: not found", domain.KindDockerMissing},
		{"daemon down", "Cannot connect to the Docker daemon at unix:///var/run/docker.sock", domain.KindRemoteCommand},
		{"no stderr", "", domain.KindRemoteCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newFakeExecutor()
			exec.results[listContainersCmd] = domain.CommandResult{ExitCode: 1, Stderr: tt.stderr}

			_, err := newTestAdapter(exec).ListContainers(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))
			if tt.kind == domain.KindRemoteCommand && tt.stderr != "" {
				assert.Contains(t, err.Error(), tt.stderr)
			}
		})
	}
}

func TestListContainersPropagatesConnectError(t *testing.T) {
	exec := newFakeExecutor()
	exec.connectErr = domain.NewConfigurationError("missing host")

	_, err := newTestAdapter(exec).ListContainers(context.Background())
	assert.True(t, domain.IsKind(err, domain.KindConfiguration))
	assert.Empty(t, exec.calls)
}

func TestListContainersPropagatesTransportError(t *testing.T) {
	exec := newFakeExecutor()
	transport := errors.New("connection reset by peer")
	exec.errs[listContainersCmd] = transport

	_, err := newTestAdapter(exec).ListContainers(context.Background())
	assert.ErrorIs(t, err, transport)
	assert.False(t, domain.IsClassified(err))
}

func TestListImages(t *testing.T) {
	exec := newFakeExecutor()
	exec.results[listImagesCmd] = domain.CommandResult{
		Stdout: `{"ID":"sha256:0123456789abcdef0123","Repository":"rastasheep/ubuntu-sshd","Tag":"18.04","Size":"234MB","CreatedSince":"5 years ago"}` + "\n" +
			`not json` + "\n" +
			`{"ID":"feedfacecafe","Repository":"<none>","Tag":"<none>","Size":"N/A","CreatedSince":"2 days ago"}` + "\n",
	}

	got, err := newTestAdapter(exec).ListImages(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "rastasheep/ubuntu-sshd", got[0].Repository)
	assert.Equal(t, "18.04", got[0].Tag)
	assert.Equal(t, "0123456789ab", got[0].ShortID)
	assert.Equal(t, int64(234_000_000), got[0].SizeBytes)
	assert.Equal(t, "5 years ago", got[0].CreatedSince)

	assert.Equal(t, "feedfacecafe", got[1].ShortID)
	assert.Equal(t, int64(0), got[1].SizeBytes)
	assert.Equal(t, []string{`docker images --format "{{json .}}"`}, exec.calls)
}

func TestListImagesDockerMissing(t *testing.T) {
	exec := newFakeExecutor()
	exec.results[listImagesCmd] = domain.CommandResult{ExitCode: 127, Stderr: "bash: line 1: docker: command not found"}

	_, err := newTestAdapter(exec).ListImages(context.Background())
	assert.True(t, domain.IsKind(err, domain.KindDockerMissing))
}

func TestRunContainerCommand(t *testing.T) {
	exec := newFakeExecutor()
	cmd := "docker run -d --name web1 -p 2201:22 rastasheep/ubuntu-sshd:18.04"
	exec.results[cmd] = domain.CommandResult{Stdout: "f00dbabe\n"}

	id, _, err := newTestAdapter(exec).RunContainer(context.Background(), "web1", 2201)
	require.NoError(t, err)
	assert.Equal(t, "f00dbabe", id)
	assert.Equal(t, []string{cmd}, exec.calls)
}

func TestRunContainerQuotesArguments(t *testing.T) {
	exec := newFakeExecutor()

	_, _, err := newTestAdapter(exec).RunContainer(context.Background(), "x;rm -rf /", 2201)
	require.NoError(t, err)
	assert.Equal(t, []string{`docker run -d --name 'x;rm -rf /' -p 2201:22 rastasheep/ubuntu-sshd:18.04`}, exec.calls)
}

func TestRunContainerFailure(t *testing.T) {
	exec := newFakeExecutor()
	cmd := "docker run -d --name web1 -p 2201:22 rastasheep/ubuntu-sshd:18.04"
	exec.results[cmd] = domain.CommandResult{ExitCode: 125, Stderr: "docker: Error response from daemon: Conflict."}

	_, _, err := newTestAdapter(exec).RunContainer(context.Background(), "web1", 2201)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindRemoteCommand))
	assert.Contains(t, err.Error(), "Conflict")
}

func TestRemoveCommands(t *testing.T) {
	exec := newFakeExecutor()
	a := newTestAdapter(exec)

	_, err := a.RemoveContainer(context.Background(), "abc123")
	require.NoError(t, err)
	_, err = a.RemoveImage(context.Background(), "sha256:deadbeef")
	require.NoError(t, err)

	assert.Equal(t, []string{"docker rm -f abc123", "docker rmi -f sha256:deadbeef"}, exec.calls)
}

func TestContainerLogs(t *testing.T) {
	exec := newFakeExecutor()
	exec.results["docker logs --tail 50 web1"] = domain.CommandResult{Stdout: "sshd started\n", Stderr: "warning\n"}

	out, err := newTestAdapter(exec).ContainerLogs(context.Background(), "web1", 50)
	require.NoError(t, err)
	assert.Equal(t, "sshd started\nwarning\n", out)
}

func TestInstallDockerUsesTTY(t *testing.T) {
	exec := newFakeExecutor()

	_, err := newTestAdapter(exec).InstallDocker(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{installDockerCmd}, exec.ttyCalls)
	assert.Empty(t, exec.calls)
}

func TestInstallDockerPrivilegeError(t *testing.T) {
	for _, out := range []string{
		"sudo: a terminal is required to read the password",
		"sudo: a password is required",
		"sudo: no tty present and no askpass program specified",
	} {
		exec := newFakeExecutor()
		exec.results[installDockerCmd] = domain.CommandResult{ExitCode: 1, Stdout: out}

		_, err := newTestAdapter(exec).InstallDocker(context.Background())
		assert.True(t, domain.IsKind(err, domain.KindPrivilege), "output %q: got %v", out, err)
	}
}

func TestInstallDockerOtherFailure(t *testing.T) {
	exec := newFakeExecutor()
	exec.results[installDockerCmd] = domain.CommandResult{ExitCode: 6, Stdout: "curl: (6) Could not resolve host: get.docker.com\r\n"}

	_, err := newTestAdapter(exec).InstallDocker(context.Background())
	assert.True(t, domain.IsKind(err, domain.KindRemoteCommand))
	assert.Contains(t, err.Error(), "Could not resolve host")
}

func TestAddUserToDockerGroup(t *testing.T) {
	exec := newFakeExecutor()

	_, err := newTestAdapter(exec).AddUserToDockerGroup(context.Background(), "pilot")
	require.NoError(t, err)
	assert.Equal(t, []string{"sudo usermod -aG docker pilot"}, exec.calls)
}

func TestConnectDelegatesToExecutor(t *testing.T) {
	exec := newFakeExecutor()
	exec.connectErr = domain.NewAuthenticationError(errors.New("unable to authenticate"))

	err := newTestAdapter(exec).Connect(context.Background())
	assert.True(t, domain.IsKind(err, domain.KindAuthentication))
	assert.Equal(t, 1, exec.connects)
}
