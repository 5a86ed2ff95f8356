package dumpformat

import (
	"bytes"
	"testing"

	"repoindex/internal/record"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHeader(&buf, 1700000000123); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	ts, err := ReadHeader(&buf)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if ts != 1700000000123 {
		t.Fatalf("timestamp = %d, want %d", ts, 1700000000123)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	rec := record.Record{Fields: []record.Field{
		{Name: record.FieldUINFO, Value: "org.ex|a|1.0|NA|jar", Stored: true, Indexed: true},
		{Name: record.FieldName, Value: "A", Stored: true, Tokenized: true},
	}}

	var buf bytes.Buffer
	if err := WriteRecord(&buf, rec); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	got, err := ReadRecord(&buf)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if !got.Equal(rec) {
		t.Fatalf("round trip = %+v, want %+v", got, rec)
	}
}

func TestReadAllRecordsStopsAtEOF(t *testing.T) {
	var buf bytes.Buffer
	r1 := record.Record{Fields: []record.Field{{Name: "A", Value: "1"}}}
	r2 := record.Record{Fields: []record.Field{{Name: "B", Value: "2"}}}
	_ = WriteRecord(&buf, r1)
	_ = WriteRecord(&buf, r2)

	got, err := ReadAllRecords(&buf)
	if err != nil {
		t.Fatalf("ReadAllRecords: %v", err)
	}
	if len(got) != 2 || !got[0].Equal(r1) || !got[1].Equal(r2) {
		t.Fatalf("ReadAllRecords = %+v", got)
	}
}

func TestUnsupportedVersion(t *testing.T) {
	buf := bytes.NewBuffer([]byte{2, 0, 0, 0, 0, 0, 0, 0, 0})
	if _, err := ReadHeader(buf); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}
