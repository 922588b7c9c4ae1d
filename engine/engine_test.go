package engine

import (
	"testing"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodes_MatchErrorDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		engine int
		domain int
	}{
		{"v1 io", V1ErrIO, littlefs.CodeIO},
		{"v2 io", V2ErrIO, littlefs.CodeIO},
		{"v1 corrupt", V1ErrCorrupt, littlefs.CodeCorruptV1},
		{"v2 corrupt", V2ErrCorrupt, littlefs.CodeCorrupt},
		{"v1 noent", V1ErrNoEnt, littlefs.CodeNoEntry},
		{"v2 noent", V2ErrNoEnt, littlefs.CodeNoEntry},
		{"v1 exist", V1ErrExist, littlefs.CodeExists},
		{"v2 nametoolong", V2ErrNameTooLong, littlefs.CodeNameTooLong},
		{"v2 noattr", V2ErrNoAttr, littlefs.CodeNoAttr},
		{"v1 nospc", V1ErrNoSpc, littlefs.CodeNoSpace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.domain, tt.engine)
		})
	}
}

func TestInfo_SetName(t *testing.T) {
	t.Parallel()

	var info Info
	info.SetName("hello")
	assert.Equal(t, byte(0), info.Name[5])
	assert.Equal(t, "hello", string(info.Name[:5]))

	long := make([]byte, NameMax+20)
	for i := range long {
		long[i] = 'x'
	}
	info.SetName(string(long))
	assert.Equal(t, byte(0), info.Name[NameMax], "name buffer must stay NUL terminated")
}

type nopDriver[C any] struct{}

func (nopDriver[C]) Format(*C) int             { return 0 }
func (nopDriver[C]) Mount(*C) (Instance, int) { return nil, V2ErrCorrupt }

func TestRegistry(t *testing.T) {
	RegisterV1(nil)
	RegisterV2(nil)
	t.Cleanup(func() {
		RegisterV1(nil)
		RegisterV2(nil)
	})

	_, ok := V1Driver()
	assert.False(t, ok)
	_, ok = V2Driver()
	assert.False(t, ok)

	RegisterV2(nopDriver[Config2]{})
	d, ok := V2Driver()
	require.True(t, ok)
	assert.Equal(t, 0, d.Format(&Config2{}))

	_, ok = V1Driver()
	assert.False(t, ok, "registering v2 must not install v1")
}
