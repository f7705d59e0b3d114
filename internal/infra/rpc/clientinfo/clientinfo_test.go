package clientinfo

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		read    func() (*debug.BuildInfo, bool)
		version string
	}{
		{
			name:    "no build info",
			read:    func() (*debug.BuildInfo, bool) { return nil, false },
			version: "",
		},
		{
			name: "main module",
			read: func() (*debug.BuildInfo, bool) {
				return &debug.BuildInfo{Main: debug.Module{Path: ModulePath, Version: "v1.2.3"}}, true
			},
			version: "1.2.3",
		},
		{
			name: "devel build",
			read: func() (*debug.BuildInfo, bool) {
				return &debug.BuildInfo{Main: debug.Module{Path: ModulePath, Version: "(devel)"}}, true
			},
			version: "",
		},
		{
			name: "dependency",
			read: func() (*debug.BuildInfo, bool) {
				return &debug.BuildInfo{
					Main: debug.Module{Path: "example.com/agent"},
					Deps: []*debug.Module{{Path: ModulePath, Version: "v0.4.0"}},
				}, true
			},
			version: "0.4.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := resolve(tt.read)
			assert.Equal(t, tt.version, info.Version)
			assert.Equal(t, "debugctl", info.Name)
			assert.NotEmpty(t, info.GoVersion)
			assert.NotEmpty(t, info.Header())
		})
	}
}

func TestHeader(t *testing.T) {
	info := Info{Name: "debugctl", Version: "1.0.0", GoVersion: "go1.25.5", GRPCVersion: "1.78.0"}
	assert.Equal(t, "gl-go/1.25.5 gapic/1.0.0 grpc/1.78.0 debugctl/1.0.0", info.Header())
	assert.Equal(t, "debugctl/1.0.0", info.UserAgent())

	assert.Equal(t, "", Info{}.Header())
	assert.Equal(t, "gl-go/1.25.5", Info{GoVersion: "go1.25.5"}.Header())
}

func TestDefaultIsStable(t *testing.T) {
	assert.Equal(t, Default(), Default())
}
