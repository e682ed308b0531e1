package artifact

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/ulikunitz/xz"
)

// maxLinkDepth bounds symlink chains inside an archive.
const maxLinkDepth = 16

// member is one archive entry in archive order.
type member struct {
	name string
	// content returns the member's bytes. Directories and members without
	// resolvable content return nil.
	content func() ([]byte, error)
}

// walkFunc is called for every member. Returning stop ends the walk.
type walkFunc func(m member) (stop bool, err error)

// walkArchive calls fn for each member of the archive in data.
func walkArchive(format ArchiveFormat, data []byte, fn walkFunc) error {
	switch format {
	case FormatZip:
		return walkZip(data, fn)
	case FormatTarGz, FormatTarXz, FormatTarBz2:
		raw, err := decompress(format, data)
		if err != nil {
			return err
		}
		return walkTar(raw, fn)
	default:
		return fmt.Errorf("not an archive format: %s", format)
	}
}

// decompress returns the uncompressed tar stream. The whole tar is kept in
// memory so links can be resolved against members anywhere in the archive.
func decompress(format ArchiveFormat, data []byte) ([]byte, error) {
	var (
		r   io.Reader
		err error
	)

	switch format {
	case FormatTarGz:
		gz, gzErr := gzip.NewReader(bytes.NewReader(data))
		if gzErr != nil {
			return nil, fmt.Errorf("create gzip reader: %w", gzErr)
		}
		defer gz.Close()
		r = gz
	case FormatTarXz:
		r, err = xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("create xz reader: %w", err)
		}
	case FormatTarBz2:
		r = bzip2.NewReader(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("not a tar format: %s", format)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", format, err)
	}
	return raw, nil
}

func walkTar(raw []byte, fn walkFunc) error {
	tr := tar.NewReader(bytes.NewReader(raw))

	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		hdr := header
		m := member{name: hdr.Name}
		// Hard links report a regular mode, so links are checked first.
		switch {
		case isTarLink(hdr):
			m.content = func() ([]byte, error) {
				return resolveTarLink(raw, hdr, 0)
			}
		case hdr.FileInfo().Mode().IsRegular():
			m.content = func() ([]byte, error) {
				return io.ReadAll(tr)
			}
		default:
			m.content = func() ([]byte, error) { return nil, nil }
		}

		stop, err := fn(m)
		if err != nil || stop {
			return err
		}
	}
}

func isTarLink(hdr *tar.Header) bool {
	return hdr.Typeflag == tar.TypeSymlink || hdr.Typeflag == tar.TypeLink
}

// linkTarget returns the archive path a link header points to, or "" for
// links leaving the archive.
func linkTarget(hdr *tar.Header) string {
	if hdr.Typeflag == tar.TypeLink {
		return path.Clean(hdr.Linkname)
	}
	if path.IsAbs(hdr.Linkname) {
		return ""
	}
	return path.Join(path.Dir(hdr.Name), hdr.Linkname)
}

// resolveTarLink returns the content of the member a link points to. The
// last member with a matching name wins, as in a real extraction.
func resolveTarLink(raw []byte, link *tar.Header, depth int) ([]byte, error) {
	if depth >= maxLinkDepth {
		return nil, errors.New("too many levels of links in archive")
	}

	want := linkTarget(link)
	if want == "" {
		return nil, nil
	}

	var (
		found   *tar.Header
		content []byte
	)
	tr := tar.NewReader(bytes.NewReader(raw))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar header: %w", err)
		}
		if path.Clean(hdr.Name) != want {
			continue
		}

		found, content = hdr, nil
		if !isTarLink(hdr) && hdr.FileInfo().Mode().IsRegular() {
			if content, err = io.ReadAll(tr); err != nil {
				return nil, fmt.Errorf("read %s: %w", hdr.Name, err)
			}
		}
	}

	if found == nil {
		return nil, nil
	}
	if isTarLink(found) {
		return resolveTarLink(raw, found, depth+1)
	}
	return content, nil
}

func walkZip(data []byte, fn walkFunc) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	for _, file := range zr.File {
		f := file
		m := member{
			name: f.Name,
			content: func() ([]byte, error) {
				rc, err := f.Open()
				if err != nil {
					return nil, fmt.Errorf("open %s: %w", f.Name, err)
				}
				defer rc.Close()
				return io.ReadAll(rc)
			},
		}

		stop, err := fn(m)
		if err != nil || stop {
			return err
		}
	}
	return nil
}
