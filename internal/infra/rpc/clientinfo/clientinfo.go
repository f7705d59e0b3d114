// Package clientinfo builds the client identification tag sent with every
// Controller2 call.
package clientinfo

import (
	"runtime"
	"runtime/debug"
	"strings"
	"sync"

	"google.golang.org/grpc"
)

// HeaderKey is the metadata key carrying the tag.
const HeaderKey = "x-goog-api-client"

// ModulePath is the module whose version identifies this client.
const ModulePath = "github.com/vietddude/debugctl"

// Info identifies the client library and its runtime.
type Info struct {
	Name        string
	Version     string
	GoVersion   string
	GRPCVersion string
}

// Header renders the tag, skipping empty components.
func (i Info) Header() string {
	var parts []string
	if i.GoVersion != "" {
		parts = append(parts, "gl-go/"+strings.TrimPrefix(i.GoVersion, "go"))
	}
	if i.Version != "" {
		parts = append(parts, "gapic/"+i.Version)
	}
	if i.GRPCVersion != "" {
		parts = append(parts, "grpc/"+i.GRPCVersion)
	}
	if i.Name != "" {
		if i.Version != "" {
			parts = append(parts, i.Name+"/"+i.Version)
		} else {
			parts = append(parts, i.Name)
		}
	}
	return strings.Join(parts, " ")
}

// UserAgent renders the name/version pair for the transport user agent.
func (i Info) UserAgent() string {
	if i.Name == "" {
		return ""
	}
	if i.Version == "" {
		return i.Name
	}
	return i.Name + "/" + i.Version
}

// Default returns the process-wide tag. It is resolved once; when the module
// version cannot be determined the tag carries no version.
var Default = sync.OnceValue(func() Info {
	return resolve(debug.ReadBuildInfo)
})

func resolve(read func() (*debug.BuildInfo, bool)) Info {
	info := Info{
		Name:        "debugctl",
		GoVersion:   runtime.Version(),
		GRPCVersion: grpc.Version,
	}
	bi, ok := read()
	if !ok || bi == nil {
		return info
	}
	if bi.Main.Path == ModulePath {
		info.Version = usableVersion(bi.Main.Version)
		return info
	}
	for _, dep := range bi.Deps {
		if dep.Path == ModulePath {
			info.Version = usableVersion(dep.Version)
			break
		}
	}
	return info
}

func usableVersion(v string) string {
	if v == "" || v == "(devel)" {
		return ""
	}
	return strings.TrimPrefix(v, "v")
}
