package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToRelative(t *testing.T) {
	assert.Equal(t, "src/main.c", ToRelative("/home/user/proj/src/main.c", "/home/user/proj"))
	assert.Equal(t, "/other/file.c", ToRelative("/other/file.c", "/home/user/proj"))
	assert.Equal(t, "src/main.c", ToRelative("src/main.c", "/home/user/proj"))
	assert.Equal(t, "", ToRelative("", "/home/user/proj"))
	assert.Equal(t, "/a/b.c", ToRelative("/a/b.c", ""))
}

func TestToAbsolute(t *testing.T) {
	assert.Equal(t, "/home/user/proj/src/main.c", ToAbsolute("src/main.c", "/home/user/proj"))
	assert.Equal(t, "/abs/file.c", ToAbsolute("/abs/file.c", "/home/user/proj"))
	assert.Equal(t, "", ToAbsolute("", "/home/user/proj"))
}
