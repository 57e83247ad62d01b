package uploadqueue

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/cognitedata/extractor-utils-core/sink"
)

// PointRecord is one series' worth of datapoints enqueued together; it is
// both the Queue item type and the spill record unit for the points
// variant.
type PointRecord struct {
	Key    sink.SeriesKey
	Points []sink.Datapoint
}

// PointsCodec implements SpillCodec[PointRecord] per the wire format in
// spec.md §6: little-endian integers, UTF-8 strings, u16 len==0 meaning
// null.
type PointsCodec struct{}

func (PointsCodec) EncodeBatch(w io.Writer, items []PointRecord) error {
	for _, rec := range items {
		if err := encodeSeriesRecord(w, rec); err != nil {
			return err
		}
	}
	return nil
}

func (PointsCodec) DecodeBatch(r io.Reader) ([]PointRecord, error) {
	rec, err := decodeSeriesRecord(r)
	if err != nil {
		return nil, err
	}
	return []PointRecord{rec}, nil
}

func encodeSeriesRecord(w io.Writer, rec PointRecord) error {
	if rec.Key.InternalID != 0 {
		if err := writeU16(w, 0); err != nil {
			return err
		}
		if err := writeI64(w, rec.Key.InternalID); err != nil {
			return err
		}
	} else {
		idBytes := []byte(rec.Key.ExternalID)
		if err := writeU16(w, uint16(len(idBytes))); err != nil {
			return err
		}
		if _, err := w.Write(idBytes); err != nil {
			return err
		}
	}

	if err := writeU32(w, uint32(len(rec.Points))); err != nil {
		return err
	}
	for _, dp := range rec.Points {
		if err := writeI64(w, dp.TimestampMs); err != nil {
			return err
		}
		if dp.IsString() {
			if err := writeU8(w, 1); err != nil {
				return err
			}
			strBytes := []byte(*dp.StringValue)
			if err := writeU16(w, uint16(len(strBytes))); err != nil {
				return err
			}
			if len(strBytes) > 0 {
				if _, err := w.Write(strBytes); err != nil {
					return err
				}
			}
		} else {
			if err := writeU8(w, 0); err != nil {
				return err
			}
			if err := writeF64(w, dp.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeSeriesRecord(r io.Reader) (PointRecord, error) {
	var rec PointRecord

	idKind, err := readU16(r)
	if err != nil {
		return rec, err // io.EOF at a record boundary is the clean end
	}

	if idKind == 0 {
		internalID, err := readI64(r)
		if err != nil {
			return rec, shortRead(err)
		}
		rec.Key.InternalID = internalID
	} else {
		buf := make([]byte, idKind)
		if _, err := io.ReadFull(r, buf); err != nil {
			return rec, shortRead(err)
		}
		rec.Key.ExternalID = string(buf)
	}

	count, err := readU32(r)
	if err != nil {
		return rec, shortRead(err)
	}

	rec.Points = make([]sink.Datapoint, 0, count)
	for i := uint32(0); i < count; i++ {
		ts, err := readI64(r)
		if err != nil {
			return rec, shortRead(err)
		}
		isString, err := readU8(r)
		if err != nil {
			return rec, shortRead(err)
		}
		if isString == 1 {
			l, err := readU16(r)
			if err != nil {
				return rec, shortRead(err)
			}
			var sv string
			if l > 0 {
				buf := make([]byte, l)
				if _, err := io.ReadFull(r, buf); err != nil {
					return rec, shortRead(err)
				}
				sv = string(buf)
			}
			rec.Points = append(rec.Points, sink.Datapoint{TimestampMs: ts, StringValue: &sv})
		} else {
			v, err := readF64(r)
			if err != nil {
				return rec, shortRead(err)
			}
			rec.Points = append(rec.Points, sink.Datapoint{TimestampMs: ts, Value: v})
		}
	}
	return rec, nil
}

// shortRead turns an io.EOF encountered mid-record into io.ErrUnexpectedEOF,
// so callers can tell a clean end-of-file apart from a truncated record.
func shortRead(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func writeU8(w io.Writer, v uint8) error  { return binary.Write(w, binary.LittleEndian, v) }
func writeU16(w io.Writer, v uint16) error { return binary.Write(w, binary.LittleEndian, v) }
func writeU32(w io.Writer, v uint32) error { return binary.Write(w, binary.LittleEndian, v) }
func writeI64(w io.Writer, v int64) error  { return binary.Write(w, binary.LittleEndian, v) }
func writeF64(w io.Writer, v float64) error {
	return binary.Write(w, binary.LittleEndian, math.Float64bits(v))
}

func readU8(r io.Reader) (uint8, error) {
	var v uint8
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readU16(r io.Reader) (uint16, error) {
	var v uint16
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readI64(r io.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readF64(r io.Reader) (float64, error) {
	var bits uint64
	if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}
