package asset

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"
)

// DefaultExtension is used when the resource URL path has none
const DefaultExtension = ".mp4"

// DateStamp formats t as the local-date file name prefix YYYYMMDD
func DateStamp(t time.Time) string {
	return t.Local().Format("20060102")
}

// BaseName returns <stamp>_<id>_<author>
func BaseName(stamp, id, author string) string {
	return fmt.Sprintf("%s_%s_%s", stamp, id, author)
}

// ExtensionFromURL returns the extension of the URL's last path segment,
// or DefaultExtension
func ExtensionFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DefaultExtension
	}
	if ext := path.Ext(path.Base(u.Path)); ext != "" && ext != "." {
		return ext
	}
	return DefaultExtension
}

// ResolveMediaPath decides where the media file goes. An existing directory
// gets the generated file name inside it; an existing file is used as is; a
// missing path is a file when it has an extension and a directory otherwise.
// The returned directory is the one that must exist before writing.
func ResolveMediaPath(dest, fileName string) (mediaPath, dir string, err error) {
	info, err := os.Stat(dest)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(dest, fileName), dest, nil
	case err == nil:
		return dest, filepath.Dir(dest), nil
	case !os.IsNotExist(err):
		return "", "", err
	case filepath.Ext(dest) != "":
		return dest, filepath.Dir(dest), nil
	default:
		return filepath.Join(dest, fileName), dest, nil
	}
}
