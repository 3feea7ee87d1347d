package source

import (
	"fmt"
)

// LineCol is a human-readable position.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based
}

// Span is a half-open byte interval [Start, End) inside one file.
type Span struct {
	File  FileID
	Start uint32
	End   uint32
}

// Empty reports whether the span covers no bytes.
func (s Span) Empty() bool {
	return s.Start == s.End
}

// Len returns the number of covered bytes.
func (s Span) Len() uint32 {
	return s.End - s.Start
}

// Contains reports whether other lies entirely inside s.
func (s Span) Contains(other Span) bool {
	return s.File == other.File && s.Start <= other.Start && other.End <= s.End
}

// Cover returns the smallest span containing both s and other.
func (s Span) Cover(other Span) Span {
	if s.File != other.File {
		return s
	}
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}

// Loc is a front-end source location. When Macro is zero the location is a
// plain file offset. Otherwise (File, Offset) is the spelling location of the
// token and Macro identifies the expansion that produced it.
type Loc struct {
	File   FileID
	Offset uint32
	Macro  MacroID
}

// IsValid reports whether the location points into a file.
func (l Loc) IsValid() bool {
	return l.File != NoFile
}

// InMacro reports whether the location was produced by a macro expansion.
func (l Loc) InMacro() bool {
	return l.Macro != NoMacro
}

func (l Loc) String() string {
	if l.Macro != NoMacro {
		return fmt.Sprintf("%d:%d@m%d", l.File, l.Offset, l.Macro)
	}
	return fmt.Sprintf("%d:%d", l.File, l.Offset)
}

// Range is a pair of locations. End is exclusive: it points one byte past the
// last character of the last token.
type Range struct {
	Begin Loc
	End   Loc
}

// FileRange builds a macro-free range.
func FileRange(file FileID, start, end uint32) Range {
	return Range{
		Begin: Loc{File: file, Offset: start},
		End:   Loc{File: file, Offset: end},
	}
}

// IsValid reports whether both ends point into files.
func (r Range) IsValid() bool {
	return r.Begin.IsValid() && r.End.IsValid()
}

// Span returns the spelling span when both ends share a file, otherwise an
// empty span at Begin.
func (r Range) Span() Span {
	if r.Begin.File != r.End.File || r.End.Offset < r.Begin.Offset {
		return Span{File: r.Begin.File, Start: r.Begin.Offset, End: r.Begin.Offset}
	}
	return Span{File: r.Begin.File, Start: r.Begin.Offset, End: r.End.Offset}
}

func (r Range) String() string {
	return r.Begin.String() + ".." + r.End.String()
}
