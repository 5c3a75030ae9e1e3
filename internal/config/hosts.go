package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/dgnsrekt/codehost_agent/internal/fileinfo"
)

type hostProfilesFile struct {
	Host []struct {
		Name      string             `toml:"name"`
		Selectors fileinfo.Selectors `toml:"selectors"`
	} `toml:"host"`
}

// LoadHostProfiles reads per-host selector overrides from a TOML file.
// An empty path yields no overrides, so every host uses GitHub markup.
func LoadHostProfiles(path string) (fileinfo.Profiles, error) {
	profiles := fileinfo.Profiles{}
	if strings.TrimSpace(path) == "" {
		return profiles, nil
	}

	var data hostProfilesFile
	if _, err := toml.DecodeFile(path, &data); err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	for i, h := range data.Host {
		name := strings.ToLower(strings.TrimSpace(h.Name))
		if name == "" {
			return nil, fmt.Errorf("%s: host #%d has no name", path, i+1)
		}
		if _, dup := profiles[name]; dup {
			return nil, fmt.Errorf("%s: duplicate host %q", path, name)
		}
		profiles[name] = h.Selectors.WithDefaults()
	}
	return profiles, nil
}
