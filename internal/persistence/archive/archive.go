// Package archive stores compiled structures as zstd-compressed files: one
// JSON header line followed by the structure document.
package archive

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/src-d/go-billy.v4"

	"voxelforge.ai/internal/protocol"
)

var (
	ErrNotStructure   = errors.New("archive: not a structure archive")
	ErrDigestMismatch = errors.New("archive: digest mismatch")
)

// Ext is the file extension used by Write callers and List.
const Ext = ".struct.zst"

type Header struct {
	protocol.BaseMessage
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Depth     int    `json:"depth"`
	Entries   int    `json:"entries"`
	CreatedAt string `json:"created_at"`
}

// Digest is the sha256 of the encoded structure document.
func Digest(s protocol.Structure) (string, error) {
	body, err := s.Encode()
	if err != nil {
		return "", err
	}
	return digestOf(body), nil
}

func digestOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Write replaces the archive at p, creating parent directories.
func Write(fs billy.Filesystem, p, name string, s protocol.Structure) (Header, error) {
	if err := s.Validate(); err != nil {
		return Header{}, err
	}
	body, err := s.Encode()
	if err != nil {
		return Header{}, fmt.Errorf("encode: %w", err)
	}
	h := Header{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeStructure, ProtocolVersion: protocol.Version},
		Name:        name,
		Digest:      digestOf(body),
		Width:       s.Width,
		Height:      s.Height,
		Depth:       s.Depth,
		Entries:     len(s.Blocks),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	hb, err := json.Marshal(h)
	if err != nil {
		return Header{}, err
	}

	if dir := path.Dir(p); dir != "." && dir != "/" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return Header{}, err
		}
	}
	f, err := fs.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return Header{}, err
	}
	if err := writeDocument(enc, hb, body); err != nil {
		_ = enc.Close()
		return Header{}, err
	}
	if err := enc.Close(); err != nil {
		return Header{}, fmt.Errorf("zstd close: %w", err)
	}
	return h, f.Close()
}

func writeDocument(w io.Writer, header, body []byte) error {
	bw := bufio.NewWriterSize(w, 64*1024)
	if _, err := bw.Write(header); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if _, err := bw.Write(body); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadHeader decodes only the header line.
func ReadHeader(fs billy.Filesystem, p string) (Header, error) {
	h, _, err := read(fs, p, false)
	return h, err
}

// Read decodes the archive at p. The body is validated against the structure
// schema and checked against the header digest.
func Read(fs billy.Filesystem, p string) (Header, protocol.Structure, error) {
	return read(fs, p, true)
}

func read(fs billy.Filesystem, p string, withBody bool) (Header, protocol.Structure, error) {
	f, err := fs.Open(p)
	if err != nil {
		return Header{}, protocol.Structure{}, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return Header{}, protocol.Structure{}, err
	}
	defer dec.Close()
	br := bufio.NewReaderSize(dec, 64*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return Header{}, protocol.Structure{}, fmt.Errorf("%w: %s: header: %v", ErrNotStructure, p, err)
	}
	base, err := protocol.DecodeBase(line)
	if err != nil {
		return Header{}, protocol.Structure{}, fmt.Errorf("%w: %s: header: %v", ErrNotStructure, p, err)
	}
	if base.Type != protocol.TypeStructure {
		return Header{}, protocol.Structure{}, fmt.Errorf("%w: %s: type %q", ErrNotStructure, p, base.Type)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return Header{}, protocol.Structure{}, fmt.Errorf("%w: %s: header: %v", ErrNotStructure, p, err)
	}
	if !withBody {
		return h, protocol.Structure{}, nil
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return Header{}, protocol.Structure{}, fmt.Errorf("%s: %w", p, err)
	}
	if got := digestOf(body); got != h.Digest {
		return Header{}, protocol.Structure{}, fmt.Errorf("%w: %s: header %s body %s", ErrDigestMismatch, p, h.Digest, got)
	}
	s, err := protocol.Decode(body)
	if err != nil {
		return Header{}, protocol.Structure{}, fmt.Errorf("%s: %w", p, err)
	}
	return h, s, nil
}

// List returns the headers of every archive directly under dir, in name order.
func List(fs billy.Filesystem, dir string) ([]Header, error) {
	infos, err := fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	var out []Header
	for _, fi := range infos {
		if fi.IsDir() || !strings.HasSuffix(fi.Name(), Ext) {
			continue
		}
		h, err := ReadHeader(fs, fs.Join(dir, fi.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
