package source

import "testing"

func TestSCRAMClientBegin(t *testing.T) {
	client := &XDGSCRAMClient{HashGeneratorFcn: SHA256()}

	if err := client.Begin("user", "password", ""); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if client.Done() {
		t.Error("Done() = true before any step, want false")
	}
}

func TestSCRAMClientFirstStep(t *testing.T) {
	client := &XDGSCRAMClient{HashGeneratorFcn: SHA512()}

	if err := client.Begin("user", "password", ""); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	first, err := client.Step("")
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if first == "" {
		t.Error("Step() returned empty client-first message")
	}
}
