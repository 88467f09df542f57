// Package diff computes structural differences between two versions of a
// document as an ordered sequence of typed segments.
package diff

import (
	"strings"
)

// Kind is the change type of a segment.
type Kind uint8

const (
	// Unchanged text is present in both versions.
	Unchanged Kind = iota
	// Inserted text is present only in the modified version.
	Inserted
	// Deleted text is present only in the original version.
	Deleted
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Inserted:
		return "inserted"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Segment is a maximal run of text tagged with a change kind.
type Segment struct {
	Index int    `json:"index"` // position in the sequence
	Kind  Kind   `json:"kind"`
	Text  string `json:"text"`
}

// IsChange returns true for inserted and deleted segments.
func (s Segment) IsChange() bool {
	return s.Kind != Unchanged
}

// Granularity selects the token unit used for alignment.
type Granularity string

const (
	// GranularityWord aligns words, whitespace runs and punctuation.
	GranularityWord Granularity = "word"
	// GranularityLine aligns whole lines including their newline.
	GranularityLine Granularity = "line"
	// GranularityChar aligns individual runes.
	GranularityChar Granularity = "char"
)

// IsValid reports whether g is a supported granularity.
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityWord, GranularityLine, GranularityChar:
		return true
	default:
		return false
	}
}

// DefaultMaxEdits bounds the edit distance searched by Myers before the
// changed region is emitted as a single replacement.
const DefaultMaxEdits = 20000

// Options configures diff computation.
type Options struct {
	Granularity Granularity
	// MaxEdits caps the shortest-edit-script search. Zero means DefaultMaxEdits,
	// negative disables the cap.
	MaxEdits int
}

// DefaultOptions returns word-level options.
func DefaultOptions() Options {
	return Options{
		Granularity: GranularityWord,
		MaxEdits:    DefaultMaxEdits,
	}
}

// Compute returns the word-level segments turning original into modified.
func Compute(original, modified string) []Segment {
	return ComputeWith(original, modified, DefaultOptions())
}

// ComputeWith returns the segments turning original into modified.
//
// The result is deterministic for the same inputs and options. Adjacent
// segments never share a kind, no segment is empty, and inside every changed
// region the deletion precedes the insertion.
func ComputeWith(original, modified string, opts Options) []Segment {
	if original == modified {
		if original == "" {
			return []Segment{}
		}
		return []Segment{{Index: 0, Kind: Unchanged, Text: original}}
	}
	if original == "" {
		return []Segment{{Index: 0, Kind: Inserted, Text: modified}}
	}
	if modified == "" {
		return []Segment{{Index: 0, Kind: Deleted, Text: original}}
	}

	a := tokenize(original, opts.Granularity)
	b := tokenize(modified, opts.Granularity)
	ai, bi := intern(a, b)

	// Trim the common prefix and suffix before running Myers on the middle.
	prefix := 0
	for prefix < len(ai) && prefix < len(bi) && ai[prefix] == bi[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(ai)-prefix && suffix < len(bi)-prefix &&
		ai[len(ai)-1-suffix] == bi[len(bi)-1-suffix] {
		suffix++
	}

	maxEdits := opts.MaxEdits
	if maxEdits == 0 {
		maxEdits = DefaultMaxEdits
	}

	var b2 builder
	b2.add(Unchanged, strings.Join(a[:prefix], ""))

	midA := a[prefix : len(a)-suffix]
	midB := b[prefix : len(b)-suffix]
	ops := myers(ai[prefix:len(ai)-suffix], bi[prefix:len(bi)-suffix], maxEdits)
	if ops == nil {
		b2.add(Deleted, strings.Join(midA, ""))
		b2.add(Inserted, strings.Join(midB, ""))
	} else {
		for _, o := range ops {
			switch o.kind {
			case Unchanged:
				b2.add(Unchanged, midA[o.a])
			case Deleted:
				b2.add(Deleted, midA[o.a])
			case Inserted:
				b2.add(Inserted, midB[o.b])
			}
		}
	}

	b2.add(Unchanged, strings.Join(a[len(a)-suffix:], ""))
	return b2.finish()
}

// builder accumulates token-level edits into coalesced segments. Inside a
// changed region it buffers deletions and insertions separately so that the
// region is emitted as at most one deletion followed by one insertion.
type builder struct {
	out     []Segment
	equal   strings.Builder
	deleted strings.Builder
	added   strings.Builder
}

func (b *builder) add(kind Kind, text string) {
	if text == "" {
		return
	}
	switch kind {
	case Unchanged:
		b.flushChanges()
		b.equal.WriteString(text)
	case Deleted:
		b.flushEqual()
		b.deleted.WriteString(text)
	case Inserted:
		b.flushEqual()
		b.added.WriteString(text)
	}
}

func (b *builder) flushEqual() {
	if b.equal.Len() == 0 {
		return
	}
	b.emit(Unchanged, b.equal.String())
	b.equal.Reset()
}

func (b *builder) flushChanges() {
	if b.deleted.Len() > 0 {
		b.emit(Deleted, b.deleted.String())
		b.deleted.Reset()
	}
	if b.added.Len() > 0 {
		b.emit(Inserted, b.added.String())
		b.added.Reset()
	}
}

func (b *builder) emit(kind Kind, text string) {
	if n := len(b.out); n > 0 && b.out[n-1].Kind == kind {
		b.out[n-1].Text += text
		return
	}
	b.out = append(b.out, Segment{Index: len(b.out), Kind: kind, Text: text})
}

func (b *builder) finish() []Segment {
	b.flushEqual()
	b.flushChanges()
	if b.out == nil {
		return []Segment{}
	}
	return b.out
}

// Original reassembles the original text from segments.
func Original(segs []Segment) string {
	var sb strings.Builder
	for _, s := range segs {
		if s.Kind != Inserted {
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}

// Modified reassembles the modified text from segments.
func Modified(segs []Segment) string {
	var sb strings.Builder
	for _, s := range segs {
		if s.Kind != Deleted {
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}

// Summary counts segments and runes by kind.
type Summary struct {
	Segments      int `json:"segments"`
	Insertions    int `json:"insertions"`
	Deletions     int `json:"deletions"`
	InsertedRunes int `json:"inserted_runes"`
	DeletedRunes  int `json:"deleted_runes"`
}

// HasChanges returns true if any segment is an insertion or deletion.
func (s Summary) HasChanges() bool {
	return s.Insertions+s.Deletions > 0
}

// Stats summarizes a segment sequence.
func Stats(segs []Segment) Summary {
	sum := Summary{Segments: len(segs)}
	for _, s := range segs {
		switch s.Kind {
		case Inserted:
			sum.Insertions++
			sum.InsertedRunes += len([]rune(s.Text))
		case Deleted:
			sum.Deletions++
			sum.DeletedRunes += len([]rune(s.Text))
		}
	}
	return sum
}
