package stream

import (
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
	}
}

func TestClassify(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	touch(t, dir,
		"screenshare_1.flv", "screenshare_10.flv", "screenshare_2.flv",
		"cameraVoip_3.flv", "cameraVoip_1.flv",
		"notes.flv",
		"indexstream.xml", "_hidden.flv", "screenshare_5.FLV",
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "screenshare_99.flv"), 0755))

	groups, err := Classify(dir, nil)
	require.NoError(t, err)

	abs := func(names ...string) []string {
		var out []string
		for _, n := range names {
			out = append(out, filepath.Join(dir, n))
		}
		return out
	}
	assert.Equal(Groups{
		"screenshare": abs("screenshare_1.flv", "screenshare_2.flv", "screenshare_5.FLV", "screenshare_10.flv"),
		"cameravoip":  abs("cameraVoip_1.flv", "cameraVoip_3.flv"),
		"notes":       abs("notes.flv"),
	}, groups)
	assert.Equal([]string{"cameravoip", "notes", "screenshare"}, groups.Roles())
}

func TestClassify_NonNumericSequenceFirst(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	touch(t, dir, "screenshare_2.flv", "screenshare_b.flv", "screenshare_a.flv", "screenshare.flv")

	groups, err := Classify(dir, nil)
	require.NoError(t, err)
	var names []string
	for _, p := range groups[RoleScreenshare] {
		names = append(names, filepath.Base(p))
	}
	// Non-numeric sequences count as 0 and keep directory order among themselves
	assert.Equal([]string{"screenshare.flv", "screenshare_a.flv", "screenshare_b.flv", "screenshare_2.flv"}, names)
}

func TestRequire(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	touch(t, dir, "cameraVoip_1.flv", "notes.flv")

	groups, err := Classify(dir, nil)
	require.NoError(t, err)
	_, err = groups.Require(RoleScreenshare)
	assert.ErrorIs(err, ErrMissingStream)
	files, err := groups.Require(RoleCameraVoip)
	assert.NoError(err)
	assert.Len(files, 1)
	assert.True(groups.Get(RoleCameraVoip).IsSome())
	assert.True(groups.Get(RoleScreenshare).IsNone())

	empty, err := Classify(t.TempDir(), nil)
	assert.NoError(err)
	_, err = empty.Require(RoleScreenshare)
	assert.ErrorIs(err, ErrMissingStream)

	_, err = Classify(filepath.Join(dir, "missing"), nil)
	assert.Error(err)
}

func TestRoleAndSequence(t *testing.T) {
	assert := assert_.New(t)

	role, ok := Role("cameraVoip_12.flv")
	assert.True(ok)
	assert.Equal("cameravoip", role)
	role, ok = Role("notes.flv")
	assert.True(ok)
	assert.Equal("notes", role)
	_, ok = Role("_1.flv")
	assert.False(ok)

	assert.Equal(12, Sequence("cameraVoip_12.flv"))
	assert.Equal(0, Sequence("notes.flv"))
	assert.Equal(0, Sequence("screenshare_x.flv"))
	assert.Equal(3, Sequence("a_b_3.flv"))
}
