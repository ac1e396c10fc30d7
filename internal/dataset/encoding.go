// internal/dataset/encoding.go - Attribute text encodings
package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/valpere/wgs_correction/internal"
)

// code pages that appear in .cpg files but are not WHATWG labels
var codePageAliases = map[string]string{
	"936":   "gbk",
	"950":   "big5",
	"932":   "shift_jis",
	"949":   "euc-kr",
	"65001": "utf-8",
	"88591": "iso-8859-1",
	"20936": "gb2312",
	"54936": "gb18030",
}

// Codec converts attribute text between a dataset encoding and UTF-8
type Codec struct {
	name string
	enc  encoding.Encoding
}

// LookupEncoding resolves an encoding label such as "UTF-8", "GBK", "CP936"
// or "ANSI 1252"
func LookupEncoding(label string) (*Codec, error) {
	name := normalizeLabel(label)
	if name == "" {
		return nil, internal.NewError(internal.ErrorCodeValidation, "empty encoding name", nil)
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeValidation, fmt.Sprintf("unknown encoding %q", label), err)
	}

	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = name
	}
	if canonical == "utf-8" {
		enc = nil
	}

	return &Codec{name: canonical, enc: enc}, nil
}

func normalizeLabel(label string) string {
	name := strings.ToLower(strings.TrimSpace(label))
	name = strings.TrimPrefix(name, "ansi ")
	name = strings.TrimSpace(name)

	if strings.HasPrefix(name, "cp") {
		if _, err := strconv.Atoi(name[2:]); err == nil {
			name = name[2:]
		}
	}

	if alias, ok := codePageAliases[name]; ok {
		return alias
	}
	if n, err := strconv.Atoi(name); err == nil && n >= 1250 && n <= 1258 {
		return "windows-" + name
	}
	return name
}

// Name returns the canonical encoding name
func (c *Codec) Name() string {
	return c.name
}

// IsUTF8 reports whether text passes through unchanged
func (c *Codec) IsUTF8() bool {
	return c.enc == nil
}

// Decode converts dataset text to UTF-8
func (c *Codec) Decode(s string) (string, error) {
	if c.enc == nil {
		return s, nil
	}
	return c.enc.NewDecoder().String(s)
}

// Encode converts UTF-8 text back to the dataset encoding. Characters the
// encoding cannot represent are replaced.
func (c *Codec) Encode(s string) (string, error) {
	if c.enc == nil {
		return s, nil
	}
	return encoding.ReplaceUnsupported(c.enc.NewEncoder()).String(s)
}
