package msignode_test

import (
	"testing"

	"github.com/iov-one/msignode"
	"github.com/iov-one/msignode/nodetest/assert"
)

func TestVersion(t *testing.T) {
	defer func(commit string) { msignode.GitCommit = commit }(msignode.GitCommit)

	assert.Equal(t, "1.1.0", msignode.Version())

	msignode.GitCommit = ""
	assert.Equal(t, "v1.1.0", msignode.BuildVersion())

	msignode.GitCommit = "12345678"
	assert.Equal(t, "v1.1.0 12345678", msignode.BuildVersion())
}
