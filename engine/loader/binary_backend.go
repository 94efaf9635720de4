package loader

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/clip"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/pkg/errors"
)

// eventNameSize is the fixed on-disk width of an event name, including its NUL terminator.
const eventNameSize = clip.MaxEventNameLength + 1

// preallocLimit bounds up-front allocations driven by counts read from a file header.
const preallocLimit = 4096

// skelBoneTail follows the variable-length name of every .skel bone record.
type skelBoneTail struct {
	Parent  int32
	Bind    common.Affine
	InvBind common.Affine
}

type clipHeader struct {
	KeyCount   uint32
	EventCount uint32
}

type clipEventRecord struct {
	InvokeTime float32
	Name       [eventNameSize]byte
}

type clipKeyRecord struct {
	BoneIndex int32
	Time      float32
	Transform common.Affine
}

// binaryBackend reads the little-endian .skel and .clip formats.
type binaryBackend struct{}

var _ skeletonBackend = binaryBackend{}
var _ clipBackend = binaryBackend{}

func (b binaryBackend) LoadSkeleton(path string) ([]skeleton.BoneRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return b.ReadSkeleton(f)
}

func (binaryBackend) ReadSkeleton(r io.Reader) ([]skeleton.BoneRecord, error) {
	br := bufio.NewReader(r)

	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, errors.Wrap(ErrMalformed, "skeleton header")
	}
	if count > skeleton.MaxBones {
		return nil, errors.Wrapf(skeleton.ErrTooManyBones, "header declares %d bones", count)
	}

	records := make([]skeleton.BoneRecord, count)
	for i := range records {
		nameLen, err := br.ReadByte()
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "bone %d name length", i)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			return nil, errors.Wrapf(ErrMalformed, "bone %d name", i)
		}
		var tail skelBoneTail
		if err := binary.Read(br, binary.LittleEndian, &tail); err != nil {
			return nil, errors.Wrapf(ErrMalformed, "bone %d transforms", i)
		}
		records[i] = skeleton.BoneRecord{
			Name:            string(name),
			ParentIndex:     tail.Parent,
			BindPose:        tail.Bind,
			InverseBindPose: tail.InvBind,
		}
	}
	return records, nil
}

func (binaryBackend) ReadClip(r io.Reader) ([]clip.RawKeyframe, []clip.RawEvent, error) {
	br := bufio.NewReader(r)

	var hdr clipHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, nil, errors.Wrap(ErrMalformed, "clip header")
	}

	events := make([]clip.RawEvent, 0, min(hdr.EventCount, preallocLimit))
	for i := uint32(0); i < hdr.EventCount; i++ {
		var rec clipEventRecord
		if err := binary.Read(br, binary.LittleEndian, &rec); err != nil {
			return nil, nil, errors.Wrapf(ErrMalformed, "event %d of %d", i, hdr.EventCount)
		}
		name := rec.Name[:]
		if n := bytes.IndexByte(name, 0); n >= 0 {
			name = name[:n]
		} else {
			// Unterminated names are cut to the longest legal length.
			name = name[:clip.MaxEventNameLength]
		}
		events = append(events, clip.RawEvent{InvokeTime: rec.InvokeTime, Name: string(name)})
	}

	keys := make([]clip.RawKeyframe, 0, min(hdr.KeyCount, preallocLimit))
	for i := uint32(0); i < hdr.KeyCount; i++ {
		var rec clipKeyRecord
		if err := binary.Read(br, binary.LittleEndian, &rec); err != nil {
			return nil, nil, errors.Wrapf(ErrMalformed, "key %d of %d", i, hdr.KeyCount)
		}
		keys = append(keys, clip.RawKeyframe{BoneIndex: rec.BoneIndex, Time: rec.Time, Transform: rec.Transform})
	}

	return keys, events, nil
}

// WriteSkeleton encodes bone records in the .skel format.
//
// Parameters:
//   - w: the destination writer
//   - records: the bone records to encode
//
// Returns:
//   - error: skeleton.ErrTooManyBones, ErrNameTooLong or the underlying write error
func WriteSkeleton(w io.Writer, records []skeleton.BoneRecord) error {
	if len(records) > skeleton.MaxBones {
		return errors.Wrapf(skeleton.ErrTooManyBones, "%d bones", len(records))
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(records))); err != nil {
		return err
	}
	for i, rec := range records {
		if len(rec.Name) > 255 {
			return errors.Wrapf(ErrNameTooLong, "bone %d name of %d bytes", i, len(rec.Name))
		}
		if err := bw.WriteByte(byte(len(rec.Name))); err != nil {
			return err
		}
		if _, err := bw.WriteString(rec.Name); err != nil {
			return err
		}
		tail := skelBoneTail{Parent: rec.ParentIndex, Bind: rec.BindPose, InvBind: rec.InverseBindPose}
		if err := binary.Write(bw, binary.LittleEndian, &tail); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteClip encodes raw keyframe and event records in the .clip format.
//
// Parameters:
//   - w: the destination writer
//   - keys: the keyframe records, written in the given order
//   - events: the event records, written in the given order
//
// Returns:
//   - error: clip.ErrEventNameTooLong or the underlying write error
func WriteClip(w io.Writer, keys []clip.RawKeyframe, events []clip.RawEvent) error {
	bw := bufio.NewWriter(w)

	hdr := clipHeader{KeyCount: uint32(len(keys)), EventCount: uint32(len(events))}
	if err := binary.Write(bw, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	for i, ev := range events {
		if len(ev.Name) > clip.MaxEventNameLength {
			return errors.Wrapf(clip.ErrEventNameTooLong, "event %d name of %d bytes", i, len(ev.Name))
		}
		rec := clipEventRecord{InvokeTime: ev.InvokeTime}
		copy(rec.Name[:], ev.Name)
		if err := binary.Write(bw, binary.LittleEndian, &rec); err != nil {
			return err
		}
	}
	for _, k := range keys {
		rec := clipKeyRecord{BoneIndex: k.BoneIndex, Time: k.Time, Transform: k.Transform}
		if err := binary.Write(bw, binary.LittleEndian, &rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}
