package destination

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Descriptor is the parsed form of one entry in the configured destination
// list. The list is immutable for the process lifetime.
type Descriptor struct {
	ID   string
	Kind Kind

	// local
	Root string

	// sftp
	Host         string
	User         string
	RemotePath   string
	IdentityFile string

	// s3
	Bucket string
	Prefix string
}

// ParseDescriptor parses one destination spec. Supported forms:
//
//	/var/lib/videosync            (bare path, local)
//	local:///var/lib/videosync
//	sftp://backup@nas.local:2022/volume1/cams?identity=/etc/videosync/id_ed25519
//	s3://surveillance/front-yard
//
// An explicit id can be set with ?id=...; otherwise one is derived from the
// target so it stays stable across restarts.
func ParseDescriptor(raw string) (Descriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Descriptor{}, fmt.Errorf("empty destination spec")
	}

	if strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "./") {
		return Descriptor{ID: "local:" + raw, Kind: KindLocal, Root: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Descriptor{}, fmt.Errorf("parse spec: %w", err)
	}
	q := u.Query()

	var d Descriptor
	switch u.Scheme {
	case "local", "file":
		if u.Path == "" {
			return Descriptor{}, fmt.Errorf("local spec is missing a path")
		}
		d = Descriptor{Kind: KindLocal, Root: u.Path}
		d.ID = "local:" + d.Root

	case "sftp":
		if u.Host == "" {
			return Descriptor{}, fmt.Errorf("sftp spec is missing a host")
		}
		if u.User == nil || u.User.Username() == "" {
			return Descriptor{}, fmt.Errorf("sftp spec is missing a username")
		}
		host := u.Host
		if u.Port() == "" {
			host += ":22"
		}
		d = Descriptor{
			Kind:         KindSFTP,
			Host:         host,
			User:         u.User.Username(),
			RemotePath:   strings.TrimSuffix(u.Path, "/"),
			IdentityFile: q.Get("identity"),
		}
		if d.IdentityFile == "" {
			return Descriptor{}, fmt.Errorf("sftp spec is missing ?identity=<private key path>")
		}
		d.ID = "sftp:" + d.Host + d.RemotePath

	case "s3":
		if u.Host == "" {
			return Descriptor{}, fmt.Errorf("s3 spec is missing a bucket")
		}
		d = Descriptor{
			Kind:   KindS3,
			Bucket: u.Host,
			Prefix: strings.Trim(u.Path, "/"),
		}
		d.ID = "s3:" + path.Join(d.Bucket, d.Prefix)

	default:
		return Descriptor{}, fmt.Errorf("unsupported destination scheme: %q", u.Scheme)
	}

	if id := q.Get("id"); id != "" {
		d.ID = id
	}
	return d, nil
}
