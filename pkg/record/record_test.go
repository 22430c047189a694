package record

import "testing"

func TestParseOperation(t *testing.T) {
	cases := []struct {
		in      string
		want    Operation
		wantErr bool
	}{
		{"insert", OpInsert, false},
		{"UPSERT", OpUpsert, false},
		{"Delete", OpDelete, false},
		{"compact", "", true},
		{"", "", true},
	}

	for _, tc := range cases {
		got, err := ParseOperation(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseOperation(%q) error = nil, want error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseOperation(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseOperation(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBucketKey(t *testing.T) {
	if got := BucketKey("dt=2024-01-02", "f1"); got != "dt=2024-01-02_f1" {
		t.Errorf("BucketKey() = %q, want %q", got, "dt=2024-01-02_f1")
	}

	r := Record{PartitionPath: "p", FileID: "f"}
	if got := BucketKeyOf(r); got != "p_f" {
		t.Errorf("BucketKeyOf() = %q, want %q", got, "p_f")
	}
}

func TestLastWins(t *testing.T) {
	existing := Record{Key: "k", Payload: []byte("old")}
	incoming := Record{Key: "k", Payload: []byte("new")}

	merged := LastWins(existing, incoming)
	if string(merged.Payload) != "new" {
		t.Errorf("LastWins() payload = %q, want %q", merged.Payload, "new")
	}
}
