package bind

import "testing"

func TestPartitionClassifiesExports(t *testing.T) {
	bp := Partition([]string{
		"sum",
		"helloworld",
		"__new",
		"__retain",
		"Foo#constructor",
		"Foo#get:bar",
		"Foo#set:bar",
		"Foo#method",
		"Bar#constructor",
	})

	if len(bp.Functions) != 2 {
		t.Fatalf("Functions = %v, want 2 entries", bp.Functions)
	}

	foo, ok := bp.Classes["Foo"]
	if !ok {
		t.Fatal("expected class Foo")
	}
	if !foo.HasConstructor || foo.Constructor != "Foo#constructor" {
		t.Errorf("Foo constructor = %q (has=%v)", foo.Constructor, foo.HasConstructor)
	}
	if foo.Getters["bar"] != "Foo#get:bar" {
		t.Errorf("Foo getter bar = %q", foo.Getters["bar"])
	}
	if foo.Setters["bar"] != "Foo#set:bar" {
		t.Errorf("Foo setter bar = %q", foo.Setters["bar"])
	}
	if foo.Methods["method"] != "Foo#method" {
		t.Errorf("Foo method = %q", foo.Methods["method"])
	}

	bar, ok := bp.Classes["Bar"]
	if !ok {
		t.Fatal("expected class Bar")
	}
	if !bar.HasConstructor {
		t.Error("Bar should have a constructor")
	}
}

func TestPartitionUnconstructableClass(t *testing.T) {
	bp := Partition([]string{"Baz#method"})
	baz, ok := bp.Classes["Baz"]
	if !ok {
		t.Fatal("Baz should still appear even with no constructor")
	}
	if baz.HasConstructor {
		t.Error("Baz has no constructor export and must report HasConstructor=false")
	}
}

type fakeStringAllocator struct {
	allocated []string
	next      uint32
}

func (f *fakeStringAllocator) AllocGuestString(s string) (uint32, error) {
	f.allocated = append(f.allocated, s)
	f.next += 16
	return f.next, nil
}

type fakePointerHolder struct{ ptr uint32 }

func (f fakePointerHolder) Pointer() uint32 { return f.ptr }

func TestMarshalArgScalarsAndStrings(t *testing.T) {
	sa := &fakeStringAllocator{}

	cases := []struct {
		in   any
		want uint64
	}{
		{int32(42), 42},
		{uint32(7), 7},
		{true, 1},
		{false, 0},
	}
	for _, c := range cases {
		got, err := MarshalArg(sa, c.in)
		if err != nil {
			t.Fatalf("MarshalArg(%v): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("MarshalArg(%v) = %d, want %d", c.in, got, c.want)
		}
	}

	ptr, err := MarshalArg(sa, "hello")
	if err != nil {
		t.Fatalf("MarshalArg(string): %v", err)
	}
	if ptr == 0 || len(sa.allocated) != 1 || sa.allocated[0] != "hello" {
		t.Errorf("expected the string to be allocated, got ptr=%d allocated=%v", ptr, sa.allocated)
	}

	handlePtr, err := MarshalArg(sa, fakePointerHolder{ptr: 555})
	if err != nil {
		t.Fatalf("MarshalArg(pointerHolder): %v", err)
	}
	if handlePtr != 555 {
		t.Errorf("MarshalArg(pointerHolder) = %d, want 555", handlePtr)
	}
}

func TestMarshalArgRejectsUnsupportedType(t *testing.T) {
	sa := &fakeStringAllocator{}
	if _, err := MarshalArg(sa, struct{ X int }{}); err == nil {
		t.Fatal("expected UnsupportedTarget for an unmappable Go type")
	}
}

func TestTargetConstructors(t *testing.T) {
	if k := Scalar().Kind(); k != TargetScalar {
		t.Errorf("Scalar().Kind() = %v", k)
	}
	if !(Target{}).IsAuto() {
		t.Error("zero-value Target must be TargetAuto")
	}
	cls := Class("Foo")
	if cls.Kind() != TargetClass || cls.ClassName() != "Foo" {
		t.Errorf("Class(\"Foo\") = %+v", cls)
	}
	list := List(Class("Foo"))
	if list.Kind() != TargetList || list.Element().ClassName() != "Foo" {
		t.Errorf("List(Class(Foo)).Element() = %+v", list.Element())
	}
	if !Opaque().IsOpaque() {
		t.Error("Opaque() must report IsOpaque() true")
	}
}
