package theme

import "testing"

func TestShimmerColorWraps(t *testing.T) {
	n := float64(len(shimmerStops))
	if a, b := ShimmerColor(1.5), ShimmerColor(1.5+n); a != b {
		t.Fatalf("ShimmerColor() = %q and %q, want equal after a full cycle", a, b)
	}
	if a, b := ShimmerColor(-0.5), ShimmerColor(n-0.5); a != b {
		t.Fatalf("ShimmerColor(negative) = %q, want %q", a, b)
	}
	if got := ShimmerColor(0); got != "#ff1f5a" {
		t.Fatalf("ShimmerColor(0) = %q, want first stop", got)
	}
}

func TestButtonDisabledUsesDashedBorder(t *testing.T) {
	if got := Button(ButtonState{Disabled: true}).GetBorderStyle(); got != dashedBorder {
		t.Fatalf("disabled border = %+v, want dashed", got)
	}
	if got := Button(ButtonState{Disabled: true, Focused: true}).GetBorderStyle(); got == dashedBorder {
		t.Fatalf("focused disabled button kept the dashed border")
	}
}
