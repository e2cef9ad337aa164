package errs

import "testing"

func TestPickWorstIdempotent(t *testing.T) {
	for _, k := range pickWorstSubset {
		bag := NewBag()
		bag.Add(k)
		if got := bag.Worst(); got != k {
			t.Errorf("PickWorst({%v}) = %v, want %v", k, got, k)
		}
	}
}

func TestPickWorstEmptySetIsOK(t *testing.T) {
	if got := PickWorst(map[Kind]struct{}{}); got != OK {
		t.Errorf("PickWorst(empty) = %v, want OK", got)
	}
}

func TestPickWorstUnmatchedIsUnknown(t *testing.T) {
	set := map[Kind]struct{}{RgainFailed: {}}
	if got := PickWorst(set); got != Unknown {
		t.Errorf("PickWorst({RgainFailed}) = %v, want Unknown", got)
	}
}

func TestPickWorstMonotone(t *testing.T) {
	// Adding a worse kind should never make the result less severe.
	cases := []struct {
		name   string
		before map[Kind]struct{}
		add    Kind
		want   Kind
	}{
		{"corrupted then invalid_format", map[Kind]struct{}{Corrupted: {}}, InvalidFormat, InvalidFormat},
		{"invalid_format then corrupted stays", map[Kind]struct{}{InvalidFormat: {}}, Corrupted, InvalidFormat},
		{"missing_tags then inconsistent", map[Kind]struct{}{MissingTags: {}}, Inconsistent, MissingTags},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			set := make(map[Kind]struct{}, len(tc.before)+1)
			for k := range tc.before {
				set[k] = struct{}{}
			}
			set[tc.add] = struct{}{}
			if got := PickWorst(set); got != tc.want {
				t.Errorf("PickWorst(%v + %v) = %v, want %v", tc.before, tc.add, got, tc.want)
			}
		})
	}
}

func TestBagAddIgnoresOK(t *testing.T) {
	bag := NewBag()
	bag.Add(OK)
	if !bag.Empty() {
		t.Errorf("bag should remain empty after adding OK")
	}
}

func TestWorstOrdering(t *testing.T) {
	if got := Worst(Corrupted, InvalidFormat); got != InvalidFormat {
		t.Errorf("Worst(Corrupted, InvalidFormat) = %v, want InvalidFormat", got)
	}
	if got := Worst(OK, InvalidFormat); got != InvalidFormat {
		t.Errorf("Worst(OK, InvalidFormat) = %v, want InvalidFormat", got)
	}
	if got := Worst(OK, OK); got != OK {
		t.Errorf("Worst(OK, OK) = %v, want OK", got)
	}
}

func TestKindStringQuarantineNames(t *testing.T) {
	cases := map[Kind]string{
		Corrupted:    "Corrupted",
		Inconsistent: "Inconsistent",
		MissingTags:  "Missing tags",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", k, got, want)
		}
	}
}

func TestOrdinalZeroOnlyForOK(t *testing.T) {
	if got := OK.Ordinal(); got != 0 {
		t.Errorf("OK.Ordinal() = %d, want 0", got)
	}
	for _, k := range ordered {
		if k == OK {
			continue
		}
		if got := k.Ordinal(); got == 0 {
			t.Errorf("%v.Ordinal() = 0, want nonzero (nonzero exit code on failure)", k)
		}
	}
}

func TestOrdinalMatchesSeverityPosition(t *testing.T) {
	if got := InvalidFormat.Ordinal(); got != 1 {
		t.Errorf("InvalidFormat.Ordinal() = %d, want 1 (worst kind, first in severity order)", got)
	}
	if got := Unknown.Ordinal(); got != len(ordered)-1 {
		t.Errorf("Unknown.Ordinal() = %d, want %d", got, len(ordered)-1)
	}
}
