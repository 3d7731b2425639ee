// Package exiftest builds minimal TIFF-encoded EXIF blocks with a GPS
// sub-IFD, for exercising metadata extraction without shipping binary
// fixtures. goexif parses raw TIFF bodies the same way it parses the APP1
// segment of a JPEG.
package exiftest

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Rational is one unsigned num/den pair as stored in a GPS tag.
type Rational struct {
	Num uint32
	Den uint32
}

// GPS describes the GPS sub-IFD to synthesize. Lat/Lon are
// degree/minute/second triplets; nil slices omit the tag entirely.
type GPS struct {
	LatRef string
	Lat    []Rational
	LonRef string
	Lon    []Rational
	// Altitude in meters; AltRef 1 means below sea level.
	Altitude *Rational
	AltRef   byte
	// Compass direction in degrees.
	Direction *Rational
	// Compass direction stored as an IEEE double instead of a rational.
	// Takes precedence over Direction when both are set.
	DirectionDouble *float64
	// Optional IFD0 timestamp tags, in "2006:01:02 15:04:05" form (or
	// deliberately not, for exercising parse failures).
	DateTime         string
	DateTimeOriginal string
}

const (
	typeByte     = 1
	typeASCII    = 2
	typeLong     = 4
	typeRational = 5
	typeDouble   = 12
)

type entry struct {
	tag      uint16
	typ      uint16
	count    uint32
	inline   []byte // at most 4 bytes, used when external is nil
	external []byte
}

// Encode renders g as a little-endian TIFF body: an IFD0 holding any
// timestamp tags plus the GPS sub-IFD pointer, then the GPS IFD itself, then
// a shared external value area.
func Encode(g *GPS) []byte {

	gps_entries := make([]*entry, 0)

	if g.LatRef != "" {
		gps_entries = append(gps_entries, asciiEntry(1, g.LatRef))
	}

	if g.Lat != nil {
		gps_entries = append(gps_entries, rationalEntry(2, g.Lat))
	}

	if g.LonRef != "" {
		gps_entries = append(gps_entries, asciiEntry(3, g.LonRef))
	}

	if g.Lon != nil {
		gps_entries = append(gps_entries, rationalEntry(4, g.Lon))
	}

	if g.Altitude != nil {
		gps_entries = append(gps_entries, &entry{tag: 5, typ: typeByte, count: 1, inline: []byte{g.AltRef, 0, 0, 0}})
		gps_entries = append(gps_entries, rationalEntry(6, []Rational{*g.Altitude}))
	}

	if g.DirectionDouble != nil {
		gps_entries = append(gps_entries, doubleEntry(17, *g.DirectionDouble))
	} else if g.Direction != nil {
		gps_entries = append(gps_entries, rationalEntry(17, []Rational{*g.Direction}))
	}

	// IFD0 entries in ascending tag order: DateTime (0x0132), the GPS IFD
	// pointer (0x8825), DateTimeOriginal (0x9003). The pointer value is
	// filled in below once the IFD0 size is known.

	ifd0_entries := make([]*entry, 0)

	if g.DateTime != "" {
		ifd0_entries = append(ifd0_entries, asciiEntry(0x0132, g.DateTime))
	}

	gps_pointer := &entry{tag: 0x8825, typ: typeLong, count: 1}
	ifd0_entries = append(ifd0_entries, gps_pointer)

	if g.DateTimeOriginal != "" {
		ifd0_entries = append(ifd0_entries, asciiEntry(0x9003, g.DateTimeOriginal))
	}

	n0 := uint32(len(ifd0_entries))
	n1 := uint32(len(gps_entries))

	gps_offset := uint32(8) + 2 + n0*12 + 4
	data_offset := gps_offset + 2 + n1*12 + 4

	le := binary.LittleEndian

	inline := make([]byte, 4)
	le.PutUint32(inline, gps_offset)
	gps_pointer.inline = inline

	var buf bytes.Buffer
	var data bytes.Buffer

	writeEntry := func(e *entry) {

		binary.Write(&buf, le, e.tag)
		binary.Write(&buf, le, e.typ)
		binary.Write(&buf, le, e.count)

		if e.external != nil {
			binary.Write(&buf, le, data_offset+uint32(data.Len()))
			data.Write(e.external)
		} else {
			buf.Write(e.inline)
		}
	}

	// TIFF header, IFD0 at offset 8.

	buf.WriteString("II")
	binary.Write(&buf, le, uint16(42))
	binary.Write(&buf, le, uint32(8))

	binary.Write(&buf, le, uint16(n0))

	for _, e := range ifd0_entries {
		writeEntry(e)
	}

	binary.Write(&buf, le, uint32(0))

	binary.Write(&buf, le, uint16(n1))

	for _, e := range gps_entries {
		writeEntry(e)
	}

	binary.Write(&buf, le, uint32(0))
	buf.Write(data.Bytes())

	return buf.Bytes()
}

func asciiEntry(tag uint16, value string) *entry {

	body := append([]byte(value), 0)

	e := &entry{
		tag:   tag,
		typ:   typeASCII,
		count: uint32(len(body)),
	}

	if len(body) <= 4 {
		inline := make([]byte, 4)
		copy(inline, body)
		e.inline = inline
	} else {
		e.external = body
	}

	return e
}

func rationalEntry(tag uint16, values []Rational) *entry {

	var data bytes.Buffer
	le := binary.LittleEndian

	for _, v := range values {
		binary.Write(&data, le, v.Num)
		binary.Write(&data, le, v.Den)
	}

	return &entry{
		tag:      tag,
		typ:      typeRational,
		count:    uint32(len(values)),
		external: data.Bytes(),
	}
}

func doubleEntry(tag uint16, value float64) *entry {

	body := make([]byte, 8)
	binary.LittleEndian.PutUint64(body, math.Float64bits(value))

	return &entry{
		tag:      tag,
		typ:      typeDouble,
		count:    1,
		external: body,
	}
}

// Degrees is a convenience for a whole-degree DMS triplet.
func Degrees(deg uint32, min uint32, sec uint32) []Rational {

	return []Rational{
		{Num: deg, Den: 1},
		{Num: min, Den: 1},
		{Num: sec, Den: 1},
	}
}
