package connect_archiver

import (
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestOutputConfig_Filename(t *testing.T) {
	assert := assert_.New(t)
	c := NewOutputConfig("/downloads")

	name, err := c.Filename("", "12345")
	assert.NoError(err)
	assert.Equal("recording_12345.mp4", name)

	name, err = c.Filename("My First Lecture", "12345")
	assert.NoError(err)
	assert.Equal("My First Lecture.mp4", name)

	name, err = c.Filename("Lecture.MP4", "12345")
	assert.NoError(err)
	assert.Equal("Lecture.mp4", name)

	name, err = c.Filename("Lecture.Mp4", "12345")
	assert.NoError(err)
	assert.Equal("Lecture.mp4", name)

	name, err = c.Filename("Week 2: Graphs/Trees", "1")
	assert.NoError(err)
	assert.Equal("Week 2- Graphs-Trees.mp4", name)

	_, err = c.Filename("???", "1")
	assert.ErrorIs(err, ErrInvalidOutputName)

	path, err := c.DestinationPath("", "p1ab")
	assert.NoError(err)
	assert.Equal(filepath.Join("/downloads", "recording_p1ab.mp4"), path)
}

func TestNewOutputConfig_DefaultDir(t *testing.T) {
	assert_.Equal(t, ".", NewOutputConfig("").TargetDir)
}
