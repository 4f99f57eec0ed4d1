package workdir

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
)

func TestService_Write(t *testing.T) {
	ctx := context.Background()
	srv := New(afs.New())
	dir := "mem://localhost/chemflow/workdir/run1/gs"
	assert.NoError(t, srv.Ensure(ctx, dir))

	change, err := srv.Write(ctx, dir, "gs.nwi", []byte("title h2o\nbasis 6-31g\ntask dft energy\n"))
	assert.NoError(t, err)
	assert.Nil(t, change, "first write is not an overwrite")

	change, err = srv.Write(ctx, dir, "gs.nwi", []byte("title h2o\nbasis 6-31g\ntask dft energy\n"))
	assert.NoError(t, err)
	assert.Nil(t, change, "identical content")

	change, err = srv.Write(ctx, dir, "gs.nwi", []byte("title h2o\nbasis cc-pvdz\ntask dft energy\n"))
	assert.NoError(t, err)
	if assert.NotNil(t, change) {
		assert.Equal(t, "gs.nwi", change.Path)
		assert.Equal(t, 1, change.Added)
		assert.Equal(t, 1, change.Deleted)
		assert.Contains(t, change.Diff, "+basis cc-pvdz")
	}

	data, err := srv.Read(ctx, dir, "gs.nwi")
	assert.NoError(t, err)
	assert.Contains(t, string(data), "cc-pvdz")
	assert.True(t, srv.Exists(ctx, dir, "gs.nwi"))

	assert.NoError(t, srv.Remove(ctx, dir, "gs.nwi", "missing"))
	assert.False(t, srv.Exists(ctx, dir, "gs.nwi"))
}

func TestTail(t *testing.T) {
	testCases := []struct {
		description string
		text        string
		n           int
		expected    string
	}{
		{description: "fewer lines", text: "a\nb\n", n: 5, expected: "a\nb"},
		{description: "last lines", text: "a\nb\nc\nd\n", n: 2, expected: "c\nd"},
		{description: "empty", text: "", n: 2, expected: ""},
		{description: "zero", text: "a", n: 0, expected: ""},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expected, Tail(tc.text, tc.n))
		})
	}
}
