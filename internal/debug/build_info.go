package debug

import (
	"runtime/debug"
	"strings"
)

/*
ReadBuildInfo returns the Go version, the module version and the VCS settings
the binary was built with as space separated "key=value" pairs.
*/
func ReadBuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	data := []string{"go=" + info.GoVersion}
	if v := info.Main.Version; v != "" {
		data = append(data, "version="+v)
	}
	for _, s := range info.Settings {
		if strings.HasPrefix(s.Key, "vcs.") {
			data = append(data, s.Key+"="+s.Value)
		}
	}
	return strings.Join(data, " ")
}
