package registry

import "testing"

func TestResolveKnownModels(t *testing.T) {
	for _, m := range List() {
		got, err := Resolve(m.DisplayName)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", m.DisplayName, err)
		}
		if got.EndpointID == "" || got.RequiredKeyName == "" {
			t.Errorf("%q has incomplete descriptor: %+v", m.DisplayName, got)
		}
	}
}

func TestResolveUnknownModel(t *testing.T) {
	_, err := Resolve("GPT-9 (Imaginary)")
	if err == nil {
		t.Fatal("expected error for unknown model")
	}
	ue, ok := IsUnknownModel(err)
	if !ok {
		t.Fatalf("want UnknownModelError, got %T", err)
	}
	if ue.Name != "GPT-9 (Imaginary)" {
		t.Errorf("Name = %q", ue.Name)
	}
}

func TestDefaultIsFirstListed(t *testing.T) {
	if Default().DisplayName != List()[0].DisplayName {
		t.Errorf("default %q is not the first listed model", Default().DisplayName)
	}
}
