package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/willibrandon/pytoolchain/platform"
	"github.com/willibrandon/pytoolchain/version"
)

// cpythonRelease is an entry of versions-manifest.json.
type cpythonRelease struct {
	Version string `json:"version"`
	Stable  bool   `json:"stable"`
	Files   []struct {
		Filename        string `json:"filename"`
		Arch            string `json:"arch"`
		Platform        string `json:"platform"`
		PlatformVersion string `json:"platform_version"`
		DownloadURL     string `json:"download_url"`
	} `json:"files"`
}

// pypyRelease is an entry of downloads.python.org/pypy/versions.json.
type pypyRelease struct {
	PyPyVersion   string `json:"pypy_version"`
	PythonVersion string `json:"python_version"`
	Stable        bool   `json:"stable"`
	LatestPyPy    bool   `json:"latest_pypy"`
	Files         []struct {
		Filename    string `json:"filename"`
		Arch        string `json:"arch"`
		Platform    string `json:"platform"`
		DownloadURL string `json:"download_url"`
	} `json:"files"`
}

// graalPyRelease is a GitHub release of oracle/graalpython.
type graalPyRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
	Assets     []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// Decode parses one manifest document (or one page of it) for kind.
func Decode(kind version.RuntimeKind, data []byte) ([]Release, error) {
	switch kind {
	case version.CPython:
		return decodeCPython(data)
	case version.PyPy:
		return decodePyPy(data)
	case version.GraalPy:
		return decodeGraalPy(data)
	default:
		return nil, fmt.Errorf("no manifest format for runtime %s", kind)
	}
}

func decodeCPython(data []byte) ([]Release, error) {
	var entries []cpythonRelease
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode CPython manifest: %w", err)
	}

	releases := make([]Release, 0, len(entries))
	for _, e := range entries {
		r := Release{
			Runtime:         version.CPython,
			Tag:             e.Version,
			LanguageVersion: e.Version,
			Stable:          e.Stable,
		}
		for _, f := range e.Files {
			r.Assets = append(r.Assets, Asset{
				Name:            f.Filename,
				Arch:            f.Arch,
				Platform:        f.Platform,
				PlatformVersion: f.PlatformVersion,
				DownloadURL:     f.DownloadURL,
			})
		}
		releases = append(releases, r)
	}
	return releases, nil
}

func decodePyPy(data []byte) ([]Release, error) {
	var entries []pypyRelease
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode PyPy manifest: %w", err)
	}

	releases := make([]Release, 0, len(entries))
	for _, e := range entries {
		tag := strings.TrimSpace(e.PyPyVersion)
		r := Release{
			Runtime:         version.PyPy,
			Tag:             tag,
			LanguageVersion: strings.TrimSpace(e.PythonVersion),
			RuntimeVersion:  version.PyPyToSemantic(tag),
			Stable:          e.Stable,
		}
		for _, f := range e.Files {
			r.Assets = append(r.Assets, Asset{
				Name:        f.Filename,
				Arch:        f.Arch,
				Platform:    f.Platform,
				DownloadURL: f.DownloadURL,
			})
		}
		releases = append(releases, r)
	}
	return releases, nil
}

func decodeGraalPy(data []byte) ([]Release, error) {
	var entries []graalPyRelease
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode GraalPy releases: %w", err)
	}

	releases := make([]Release, 0, len(entries))
	for _, e := range entries {
		if e.Draft {
			continue
		}

		v := version.GraalPyTagToVersion(e.TagName)
		parsed, ok := version.Parse(v)
		r := Release{
			Runtime:        version.GraalPy,
			Tag:            e.TagName,
			RuntimeVersion: v,
			Stable:         ok && parsed.Prerelease() == "" && !e.Prerelease,
		}
		for _, a := range e.Assets {
			assetPlatform, assetArch, ok := platform.ParseGraalPyAsset(a.Name)
			if !ok {
				continue
			}
			r.Assets = append(r.Assets, Asset{
				Name:        a.Name,
				Arch:        assetArch,
				Platform:    assetPlatform,
				DownloadURL: a.BrowserDownloadURL,
			})
		}
		releases = append(releases, r)
	}
	return releases, nil
}
