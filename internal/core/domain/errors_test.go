package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("listing containers: %w", NewDockerMissingError("bash: docker: command not found"))

	assert.Equal(t, KindDockerMissing, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindDockerMissing))
	assert.True(t, IsClassified(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("dial tcp: connection refused")))
	assert.False(t, IsKind(nil, KindUnknown))
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("install: %w", NewPrivilegeError("sudo: a terminal is required"))

	assert.ErrorIs(t, err, &Error{Kind: KindPrivilege})
	assert.NotErrorIs(t, err, &Error{Kind: KindRemoteCommand})
}

func TestKeyNotFoundMessageIncludesPath(t *testing.T) {
	err := NewKeyNotFoundError("/home/pilot/.ssh/id_rsa", errors.New("no such file or directory"))

	assert.Contains(t, err.Error(), "/home/pilot/.ssh/id_rsa")
	assert.Equal(t, "/home/pilot/.ssh/id_rsa", err.Path)
}

func TestRemoteCommandErrorDefaultsMessage(t *testing.T) {
	assert.Equal(t, "Unknown Docker error on the remote server.", NewRemoteCommandError("").Error())
	assert.Equal(t, "Error: No such image", NewRemoteCommandError("Error: No such image").Error())
}

func TestFailedResult(t *testing.T) {
	res := Failed(NewValidationError("Client name cannot be empty."))

	assert.False(t, res.Success)
	assert.Equal(t, KindValidation, res.Kind)
	assert.Equal(t, "Client name cannot be empty.", res.Error)
}

func TestFailedResultDropsWrapping(t *testing.T) {
	err := fmt.Errorf("failed to list containers: %w", NewDockerMissingError("bash: docker: command not found"))
	res := Failed(err)

	assert.Equal(t, KindDockerMissing, res.Kind)
	assert.Equal(t, "Docker is not installed or accessible on the remote server.", res.Error)
}

func TestClassifyDockerFailure(t *testing.T) {
	err := ClassifyDockerFailure(CommandResult{ExitCode: 127, Stderr: "bash: docker: command not found\n"})
	assert.True(t, IsKind(err, KindDockerMissing))

	err = ClassifyDockerFailure(CommandResult{ExitCode: 1, Stderr: "  Error: No such container: x\n"})
	assert.True(t, IsKind(err, KindRemoteCommand))
	assert.Equal(t, "Error: No such container: x", err.Error())
}
