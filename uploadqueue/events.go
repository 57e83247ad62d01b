package uploadqueue

import (
	"io"

	"github.com/cognitedata/extractor-utils-core/sink"
)

// EventsCodec implements SpillCodec[sink.Event] per the wire format in
// spec.md §6: u16-len-prefixed strings (len==0 means null/absent), i64
// start/end time with -1 meaning absent, i64 dataSetId with 0 meaning
// absent, a u16-counted list of asset IDs, and a u16-counted list of
// metadata key/value string pairs.
type EventsCodec struct{}

func (EventsCodec) EncodeBatch(w io.Writer, items []sink.Event) error {
	for _, ev := range items {
		if err := encodeEventRecord(w, ev); err != nil {
			return err
		}
	}
	return nil
}

func (EventsCodec) DecodeBatch(r io.Reader) ([]sink.Event, error) {
	ev, err := decodeEventRecord(r)
	if err != nil {
		return nil, err
	}
	return []sink.Event{ev}, nil
}

func encodeEventRecord(w io.Writer, ev sink.Event) error {
	for _, s := range []string{ev.ExternalID, ev.Description, ev.Type, ev.Subtype, ev.Source} {
		if err := writeString(w, s); err != nil {
			return err
		}
	}

	if err := writeI64(w, ev.StartTime); err != nil {
		return err
	}
	if err := writeI64(w, ev.EndTime); err != nil {
		return err
	}
	if err := writeI64(w, ev.DataSetID); err != nil {
		return err
	}

	if err := writeU16(w, uint16(len(ev.AssetIDs))); err != nil {
		return err
	}
	for _, id := range ev.AssetIDs {
		if err := writeI64(w, id); err != nil {
			return err
		}
	}

	if err := writeU16(w, uint16(len(ev.Metadata))); err != nil {
		return err
	}
	for k, v := range ev.Metadata {
		if err := writeString(w, k); err != nil {
			return err
		}
		if err := writeString(w, v); err != nil {
			return err
		}
	}
	return nil
}

func decodeEventRecord(r io.Reader) (sink.Event, error) {
	var ev sink.Event

	externalID, err := readString(r)
	if err != nil {
		return ev, err // io.EOF here is the clean end of the file
	}
	ev.ExternalID = externalID

	for _, dst := range []*string{&ev.Description, &ev.Type, &ev.Subtype, &ev.Source} {
		s, err := readString(r)
		if err != nil {
			return ev, shortRead(err)
		}
		*dst = s
	}

	ev.StartTime, err = readI64(r)
	if err != nil {
		return ev, shortRead(err)
	}
	ev.EndTime, err = readI64(r)
	if err != nil {
		return ev, shortRead(err)
	}
	ev.DataSetID, err = readI64(r)
	if err != nil {
		return ev, shortRead(err)
	}

	assetCount, err := readU16(r)
	if err != nil {
		return ev, shortRead(err)
	}
	if assetCount > 0 {
		ev.AssetIDs = make([]int64, assetCount)
		for i := range ev.AssetIDs {
			ev.AssetIDs[i], err = readI64(r)
			if err != nil {
				return ev, shortRead(err)
			}
		}
	}

	metaCount, err := readU16(r)
	if err != nil {
		return ev, shortRead(err)
	}
	if metaCount > 0 {
		ev.Metadata = make(map[string]string, metaCount)
		for i := uint16(0); i < metaCount; i++ {
			k, err := readString(r)
			if err != nil {
				return ev, shortRead(err)
			}
			v, err := readString(r)
			if err != nil {
				return ev, shortRead(err)
			}
			ev.Metadata[k] = v
		}
	}

	return ev, nil
}

// writeString writes a u16 byte-length prefix followed by the UTF-8 bytes.
// An empty string and a null string are both encoded as length 0 - the
// distinction spec.md draws between "absent" and "empty" does not apply to
// any of sink.Event's string fields, all of which are plain Go strings.
func writeString(w io.Writer, s string) error {
	b := []byte(s)
	if err := writeU16(w, uint16(len(b))); err != nil {
		return err
	}
	if len(b) > 0 {
		_, err := w.Write(b)
		return err
	}
	return nil
}

func readString(r io.Reader) (string, error) {
	l, err := readU16(r)
	if err != nil {
		return "", err
	}
	if l == 0 {
		return "", nil
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
