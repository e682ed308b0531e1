// Package testutil builds archives and serves them over HTTP so fetch and
// extraction can be tested without touching the network.
package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ulikunitz/xz"
)

// Member is one entry of a test archive. Entries are written in slice order.
type Member struct {
	Name     string
	Body     string
	Mode     int64
	Dir      bool
	Symlink  string // tar only: create a symlink pointing here
	Hardlink string // tar only: create a hard link to this member
}

// File is shorthand for a regular file member.
func File(name, body string) Member {
	return Member{Name: name, Body: body}
}

// Dir is shorthand for a directory member.
func Dir(name string) Member {
	return Member{Name: name, Dir: true}
}

// Tar returns an uncompressed tar archive.
func Tar(t *testing.T, members ...Member) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	for _, m := range members {
		mode := m.Mode
		if mode == 0 {
			mode = 0o644
		}
		hdr := &tar.Header{Name: m.Name, Mode: mode}

		switch {
		case m.Dir:
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
		case m.Symlink != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = m.Symlink
		case m.Hardlink != "":
			hdr.Typeflag = tar.TypeLink
			hdr.Linkname = m.Hardlink
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(m.Body))
		}

		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("failed to write header for %s: %v", m.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(m.Body)); err != nil {
				t.Fatalf("failed to write content for %s: %v", m.Name, err)
			}
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}
	return buf.Bytes()
}

// TarGz returns a gzip compressed tar archive.
func TarGz(t *testing.T, members ...Member) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(Tar(t, members...)); err != nil {
		t.Fatalf("failed to gzip archive: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("failed to close gzip writer: %v", err)
	}
	return buf.Bytes()
}

// TarXz returns an xz compressed tar archive.
func TarXz(t *testing.T, members ...Member) []byte {
	t.Helper()

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("failed to create xz writer: %v", err)
	}
	if _, err := xw.Write(Tar(t, members...)); err != nil {
		t.Fatalf("failed to xz archive: %v", err)
	}
	if err := xw.Close(); err != nil {
		t.Fatalf("failed to close xz writer: %v", err)
	}
	return buf.Bytes()
}

// Zip returns a zip archive. Symlink and Hardlink are ignored.
func Zip(t *testing.T, members ...Member) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, m := range members {
		name := m.Name
		if m.Dir && (len(name) == 0 || name[len(name)-1] != '/') {
			name += "/"
		}
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to create zip entry %s: %v", name, err)
		}
		if !m.Dir {
			if _, err := io.WriteString(w, m.Body); err != nil {
				t.Fatalf("failed to write zip entry %s: %v", name, err)
			}
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

// SHA256 returns the lowercase hex digest of data.
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Server serves fixed bodies by request path and counts requests.
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	bodies map[string][]byte
	hits   map[string]int
}

// NewServer starts a server returning bodies[path] with 200, or 404.
// It is closed automatically when the test ends.
func NewServer(t *testing.T, bodies map[string][]byte) *Server {
	t.Helper()

	s := &Server{bodies: bodies, hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		body, ok := s.bodies[r.URL.Path]
		s.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)

	return s
}

// Hits returns how many requests were made for path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalHits returns the number of requests served.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}
