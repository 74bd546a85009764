package primitives

import "testing"

func TestComputeVersionDeterministic(t *testing.T) {
	a := map[string]any{"initial": "s0", "states": []string{"s0", "s1"}}
	b := map[string]any{"states": []string{"s0", "s1"}, "initial": "s0"}
	if ComputeVersion(a) != ComputeVersion(b) {
		t.Error("equal layouts must produce equal versions")
	}
	if len(ComputeVersion(a)) != 16 {
		t.Errorf("version length = %d, want 16", len(ComputeVersion(a)))
	}
}

func TestComputeVersionDiffers(t *testing.T) {
	a := map[string]any{"initial": "s0"}
	b := map[string]any{"initial": "s1"}
	if ComputeVersion(a) == ComputeVersion(b) {
		t.Error("different layouts must produce different versions")
	}
}

func TestComputeVersionInvalid(t *testing.T) {
	if got := ComputeVersion(make(chan int)); got != "invalid" {
		t.Errorf("got %q want invalid", got)
	}
}

func TestStateTerminal(t *testing.T) {
	if !Terminal.IsTerminal() {
		t.Error("Terminal should be terminal")
	}
	if State("s0").IsTerminal() {
		t.Error("labelled state should not be terminal")
	}
	if Terminal.String() != "<terminal>" {
		t.Errorf("got %q", Terminal.String())
	}
}
