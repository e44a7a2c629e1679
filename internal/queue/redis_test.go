package queue

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeJob(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    Job
		wantErr bool
	}{
		{"string payload", `{"job_id":"j1","source":"s3://b/k.pdf","duplex":true}`, Job{ID: "j1", Source: "s3://b/k.pdf", Duplex: true}, false},
		{"bytes payload", []byte(`{"job_id":"j2","source":"/tmp/a.pdf"}`), Job{ID: "j2", Source: "/tmp/a.pdf"}, false},
		{"missing field", nil, Job{}, true},
		{"bad json", "{", Job{}, true},
		{"missing source", `{"job_id":"j3"}`, Job{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeJob(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("job mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsBusyGroupErr(t *testing.T) {
	if !isBusyGroupErr(errors.New("BUSYGROUP Consumer Group name already exists")) {
		t.Error("Expected BUSYGROUP error to be recognized")
	}
	if isBusyGroupErr(errors.New("ERR something else")) || isBusyGroupErr(nil) {
		t.Error("Expected other errors not to be recognized")
	}
}
