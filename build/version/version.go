// Copyright 2024 Mango Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package version provides build information.
package version

import (
	"runtime/debug"
	"sync"
)

// Info represents build information.
type Info struct {
	Version string
	Commit  string
	Dirty   bool
}

var (
	info     *Info
	infoOnce sync.Once
)

// Get returns build information gathered from the embedded module data.
//
// Version is the module version, or "unknown" for non-module builds.
// Commit and Dirty reflect the VCS state, when available.
func Get() *Info {
	infoOnce.Do(func() {
		info = &Info{
			Version: "unknown",
		}

		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}

		if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}

		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.Commit = s.Value
			case "vcs.modified":
				info.Dirty = s.Value == "true"
			}
		}
	})

	return info
}
