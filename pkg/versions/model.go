package versions

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is one published release of a space. Values are built by decoding
// an API response and are not modified afterwards.
type Version struct {
	SpaceID                   string        `json:"space_id" yaml:"space_id"`
	ID                        string        `json:"id" yaml:"id"`
	Name                      string        `json:"name" yaml:"name"`
	Platform                  string        `json:"platform" yaml:"platform"`
	Channel                   string        `json:"channel" yaml:"channel"`
	PublishedAt               string        `json:"published_at" yaml:"published_at"` // ISO-8601
	Changelog                 string        `json:"changelog" yaml:"changelog"`
	SupportedPlatformVersions []string      `json:"supported_platform_versions" yaml:"supported_platform_versions"`
	Files                     []VersionFile `json:"files" yaml:"files"`
}

// VersionFile is a downloadable artifact of a Version.
type VersionFile struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
	Size int64  `json:"size" yaml:"size"`
}

// Platforms known to the service. The API treats the field as an opaque string.
const (
	PlatformBukkit       = "bukkit"
	PlatformSpigot       = "spigot"
	PlatformPaper        = "paper"
	PlatformPurpur       = "purpur"
	PlatformFolia        = "folia"
	PlatformBungeecord   = "bungeecord"
	PlatformWaterfall    = "waterfall"
	PlatformVelocity     = "velocity"
	PlatformFabric       = "fabric"
	PlatformForge        = "forge"
	PlatformQuilt        = "quilt"
	PlatformLiteloader   = "liteloader"
	PlatformHytalePlugin = "hytale_plugin"
	PlatformExecutable   = "executable"
)

// Release channels.
const (
	ChannelRelease = "release"
	ChannelBeta    = "beta"
	ChannelAlpha   = "alpha"
)

// PublishedAtTime parses PublishedAt as an RFC 3339 timestamp.
func (v Version) PublishedAtTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v.PublishedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %w", ErrInvalidPublishedAt, v.PublishedAt, err)
	}
	return t, nil
}

// PublishedAtMillis returns PublishedAt as milliseconds since the Unix epoch.
func (v Version) PublishedAtMillis() (int64, error) {
	t, err := v.PublishedAtTime()
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// File returns the file with the given name.
func (v Version) File(name string) (VersionFile, bool) {
	for _, f := range v.Files {
		if f.Name == name {
			return f, true
		}
	}
	return VersionFile{}, false
}

// UnmarshalJSON fills absent or null sequences with empty slices.
func (v *Version) UnmarshalJSON(data []byte) error {
	type plain Version
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.SupportedPlatformVersions == nil {
		p.SupportedPlatformVersions = []string{}
	}
	if p.Files == nil {
		p.Files = []VersionFile{}
	}
	*v = Version(p)
	return nil
}

// MarshalJSON always emits arrays for the sequence fields, never null.
func (v Version) MarshalJSON() ([]byte, error) {
	type plain Version
	p := plain(v)
	if p.SupportedPlatformVersions == nil {
		p.SupportedPlatformVersions = []string{}
	}
	if p.Files == nil {
		p.Files = []VersionFile{}
	}
	return json.Marshal(p)
}

// UnmarshalJSON rejects negative sizes.
func (f *VersionFile) UnmarshalJSON(data []byte) error {
	type plain VersionFile
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Size < 0 {
		return fmt.Errorf("%w: file %q has size %d", ErrNegativeSize, p.Name, p.Size)
	}
	*f = VersionFile(p)
	return nil
}
