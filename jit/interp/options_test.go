package interp

import (
	"testing"
)

func TestOptionsFromEnv(t *testing.T) {
	tests := []struct {
		name        string
		workers     string
		parallelMin string
		want        Options
		wantErr     bool
	}{
		{name: "defaults", want: Options{ParallelMin: DefaultParallelMin}},
		{name: "set", workers: "3", parallelMin: "64", want: Options{Workers: 3, ParallelMin: 64}},
		{name: "no pool", workers: "-1", want: Options{Workers: -1, ParallelMin: DefaultParallelMin}},
		{name: "bad workers", workers: "many", wantErr: true},
		{name: "bad threshold", parallelMin: "0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("VCALL_INTERP_WORKERS", tt.workers)
			t.Setenv("VCALL_INTERP_PARALLEL_MIN", tt.parallelMin)

			got, err := OptionsFromEnv()
			if tt.wantErr {
				if err == nil {
					t.Errorf("OptionsFromEnv() = %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("OptionsFromEnv(): %v", err)
			}
			if got.Workers != tt.want.Workers || got.ParallelMin != tt.want.ParallelMin {
				t.Errorf("OptionsFromEnv() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewWithoutPool(t *testing.T) {
	b := New(Options{Workers: -1})
	defer b.Close()

	if b.Name() != "interp" || !b.LanePredicated() {
		t.Errorf("Name() = %q, LanePredicated() = %v", b.Name(), b.LanePredicated())
	}
	got := mustRead(t, b, Add(b, Full[float32](b, 1, 3), Full[float32](b, 2, 3)))
	for i, v := range got {
		if v != 3 {
			t.Errorf("lane %d = %v, want 3", i, v)
		}
	}
}
