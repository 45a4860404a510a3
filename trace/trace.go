// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package trace records bus transactions as a CBOR stream.
//
// A Recorder sits between a register engine and its bus driver. Every
// transaction is forwarded unchanged and then appended to the stream, so
// a trace never alters the outcome seen by the engine.
package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/ezrec/apbral/ral"
)

// Record is a single traced transaction.
type Record struct {
	Session   uuid.UUID     `cbor:"1,keyasint"`           // Recorder session.
	Seq       uint64        `cbor:"2,keyasint"`           // Sequence number within the session.
	Time      time.Time     `cbor:"3,keyasint"`           // Completion time.
	Address   uint64        `cbor:"4,keyasint"`           // Bus address.
	Direction ral.Direction `cbor:"5,keyasint"`           // Read or write.
	Data      []byte        `cbor:"6,keyasint"`           // Data written, or data read.
	Error     string        `cbor:"7,keyasint,omitempty"` // Driver failure, if any.
}

// Failed reports whether the traced transaction failed.
func (rec Record) Failed() bool {
	return rec.Error != ""
}

// String formats the record as a one line log entry.
func (rec Record) String() string {
	if rec.Failed() {
		return fmt.Sprintf("%6d %-5v 0x%x: %v", rec.Seq, rec.Direction, rec.Address, rec.Error)
	}
	return fmt.Sprintf("%6d %-5v 0x%x: % x", rec.Seq, rec.Direction, rec.Address, rec.Data)
}

// traceEncMode is canonical, so identical transactions encode identically.
var traceEncMode cbor.EncMode

var traceDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	traceEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace: CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	traceDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("trace: CBOR decoder mode: %v", err))
	}
}

// Recorder is a bus driver that traces the transactions of another.
type Recorder struct {
	driver  ral.BusDriver
	session uuid.UUID

	lock sync.Mutex
	enc  *cbor.Encoder
	seq  uint64
	err  error
}

var _ ral.BusDriver = (*Recorder)(nil)

// NewRecorder traces the transactions of driver to w, under a new session.
func NewRecorder(driver ral.BusDriver, w io.Writer) *Recorder {
	return &Recorder{
		driver:  driver,
		session: uuid.New(),
		enc:     traceEncMode.NewEncoder(w),
	}
}

// Session identifies the records of this recorder.
func (rec *Recorder) Session() uuid.UUID {
	return rec.session
}

// Err returns the first error encountered writing the trace.
func (rec *Recorder) Err() error {
	rec.lock.Lock()
	defer rec.lock.Unlock()

	return rec.err
}

// Transact forwards the transaction, then records it.
func (rec *Recorder) Transact(ctx context.Context, address uint64, buf []byte, dir ral.Direction) (err error) {
	err = rec.driver.Transact(ctx, address, buf, dir)

	record := Record{
		Session:   rec.session,
		Time:      time.Now(),
		Address:   address,
		Direction: dir,
		Data:      append([]byte(nil), buf...),
	}
	if err != nil {
		record.Error = err.Error()
		if dir == ral.Read {
			record.Data = nil
		}
	}

	rec.lock.Lock()
	defer rec.lock.Unlock()

	rec.seq++
	record.Seq = rec.seq
	if rec.err == nil {
		rec.err = rec.enc.Encode(record)
	}

	return
}

// Reader decodes a trace stream.
type Reader struct {
	dec *cbor.Decoder
}

// NewReader reads a trace stream from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: traceDecMode.NewDecoder(r)}
}

// Next decodes the next record. At the end of the stream, err is io.EOF.
func (rd *Reader) Next() (rec Record, err error) {
	err = rd.dec.Decode(&rec)
	return
}

// Records iterates over the remaining records. A decode failure is
// yielded once, and ends the iteration.
func (rd *Reader) Records() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := rd.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// ReadAll decodes every record of a trace stream.
func ReadAll(r io.Reader) (recs []Record, err error) {
	for rec, err := range NewReader(r).Records() {
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
	return
}
