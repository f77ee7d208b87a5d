package classfile

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		text string
		kind Kind
		java string
	}{
		{"V", KindVoid, "void"},
		{"Z", KindBoolean, "boolean"},
		{"I", KindInt, "int"},
		{"J", KindLong, "long"},
		{"Ljava/lang/String;", KindObject, "java.lang.String"},
		{"[[I", KindArray, "int[][]"},
		{"[Ljava/util/Map$Entry;", KindArray, "java.util.Map$Entry[]"},
		{"()V", KindMethod, "void ()"},
		{"(IJLjava/lang/Object;[D)Ljava/lang/String;", KindMethod, "java.lang.String (int, long, java.lang.Object, double[])"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			d, err := ParseDescriptor(tt.text)
			if err != nil {
				t.Fatalf("ParseDescriptor(%q): %v", tt.text, err)
			}
			if d.Kind() != tt.kind {
				t.Errorf("kind: got %v, want %v", d.Kind(), tt.kind)
			}
			if d.String() != tt.text {
				t.Errorf("String: got %q, want %q", d.String(), tt.text)
			}
			if got := d.JavaName(); got != tt.java {
				t.Errorf("JavaName: got %q, want %q", got, tt.java)
			}
			again, err := ParseDescriptor(d.String())
			if err != nil || again != d {
				t.Errorf("round trip: got %v, %v", again, err)
			}
		})
	}
}

func TestParseDescriptorInvalid(t *testing.T) {
	for _, text := range []string{
		"",
		"Q",
		"L;",
		"Ljava/lang/String",
		"Ljava.lang.String;",
		"[",
		"[V",
		"II",
		"(",
		"(I",
		"(V)V",
		"()",
		"()II",
		"(I)Q",
		strings.Repeat("[", 256) + "I",
	} {
		_, err := ParseDescriptor(text)
		var derr *DescriptorError
		if !errors.As(err, &derr) {
			t.Errorf("ParseDescriptor(%q): expected DescriptorError, got %v", text, err)
		}
	}
}

func TestParseDescriptorMaxDimensions(t *testing.T) {
	text := strings.Repeat("[", 255) + "I"
	d, err := ParseDescriptor(text)
	if err != nil {
		t.Fatalf("255 dimensions: %v", err)
	}
	if d.Dimensions() != 255 {
		t.Errorf("Dimensions: got %d", d.Dimensions())
	}
}

func TestParseFieldAndMethodDescriptor(t *testing.T) {
	if _, err := ParseFieldDescriptor("V"); err == nil {
		t.Error("ParseFieldDescriptor(V): expected error")
	}
	if _, err := ParseFieldDescriptor("()V"); err == nil {
		t.Error("ParseFieldDescriptor(()V): expected error")
	}
	if _, err := ParseMethodDescriptor("I"); err == nil {
		t.Error("ParseMethodDescriptor(I): expected error")
	}
}

func TestDescriptorComponents(t *testing.T) {
	arr, err := ParseDescriptor("[[Ljava/lang/Object;")
	if err != nil {
		t.Fatal(err)
	}
	if got := arr.Component().String(); got != "[Ljava/lang/Object;" {
		t.Errorf("Component: got %q", got)
	}
	if got := arr.Elem(); got != ObjectType("java/lang/Object") {
		t.Errorf("Elem: got %v", got)
	}
	if got := arr.Elem().InternalName(); got != "java/lang/Object" {
		t.Errorf("InternalName: got %q", got)
	}

	m, err := ParseMethodDescriptor("(I[JLjava/lang/String;)[B")
	if err != nil {
		t.Fatal(err)
	}
	want := []TypeDescriptor{
		PrimitiveType(KindInt),
		ArrayOf(PrimitiveType(KindLong), 1),
		ObjectType("java/lang/String"),
	}
	if diff := cmp.Diff(want, m.Arguments(), cmp.Comparer(func(a, b TypeDescriptor) bool { return a == b })); diff != "" {
		t.Errorf("Arguments mismatch (-want +got):\n%s", diff)
	}
	if got := m.Return(); got != ArrayOf(PrimitiveType(KindByte), 1) {
		t.Errorf("Return: got %v", got)
	}

	// ')' is legal inside a class name.
	odd, err := ParseMethodDescriptor("()La)b;")
	if err != nil {
		t.Fatal(err)
	}
	if got := odd.Return(); got != ObjectType("a)b") || got.Kind() != KindObject {
		t.Errorf("Return of ()La)b;: got kind %v, %q", got.Kind(), got.String())
	}
	if got := odd.JavaName(); got != "a)b ()" {
		t.Errorf("JavaName: got %q", got)
	}
}

func TestDescriptorBuildRoundTrip(t *testing.T) {
	built := MethodType([]TypeDescriptor{
		PrimitiveType(KindDouble),
		ArrayOf(ObjectType("java/lang/String"), 2),
	}, PrimitiveType(KindVoid))
	if got := built.String(); got != "(D[[Ljava/lang/String;)V" {
		t.Fatalf("MethodType: got %q", got)
	}
	parsed, err := ParseDescriptor(built.String())
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if parsed != built {
		t.Errorf("parsed %v != built %v", parsed, built)
	}

	deep := ArrayOf(PrimitiveType(KindInt), 200)
	if got := ArrayOf(deep, 55).Dimensions(); got != maxArrayDimensions {
		t.Errorf("Dimensions: got %d", got)
	}

	invalid := []struct {
		name  string
		build func() TypeDescriptor
	}{
		{"empty class name", func() TypeDescriptor { return ObjectType("") }},
		{"dotted class name", func() TypeDescriptor { return ObjectType("java.lang.String") }},
		{"zero return type", func() TypeDescriptor { return MethodType(nil, TypeDescriptor{}) }},
		{"void argument", func() TypeDescriptor { return MethodType([]TypeDescriptor{PrimitiveType(KindVoid)}, PrimitiveType(KindVoid)) }},
		{"nested arrays past the limit", func() TypeDescriptor { return ArrayOf(ArrayOf(PrimitiveType(KindInt), 200), 100) }},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected a panic")
				}
			}()
			d := tt.build()
			t.Errorf("built %q", d.String())
		})
	}
}

func TestDescriptorSpanEquality(t *testing.T) {
	m, err := ParseMethodDescriptor("(Ljava/lang/String;I)Ljava/lang/String;")
	if err != nil {
		t.Fatal(err)
	}
	seen := map[TypeDescriptor]int{}
	for _, a := range m.Arguments() {
		seen[a]++
	}
	seen[m.Return()]++
	if seen[ObjectType("java/lang/String")] != 2 {
		t.Errorf("String spans from different positions should be one key: %v", seen)
	}
}

func TestArgumentSlots(t *testing.T) {
	tests := []struct {
		desc     string
		isStatic bool
		want     []int
	}{
		{"()V", true, []int{}},
		{"()V", false, []int{}},
		{"(I)V", true, []int{0}},
		{"(I)V", false, []int{1}},
		{"(JI)V", true, []int{0, 2}},
		{"(DJI)V", false, []int{1, 3, 5}},
		{"([JLjava/lang/Object;D)V", true, []int{0, 1, 2}},
	}
	for _, tt := range tests {
		args, err := ParseArgumentList(tt.desc)
		if err != nil {
			t.Fatalf("ParseArgumentList(%q): %v", tt.desc, err)
		}
		if diff := cmp.Diff(tt.want, ArgumentSlots(tt.isStatic, args)); diff != "" {
			t.Errorf("%s static=%v: slots mismatch (-want +got):\n%s", tt.desc, tt.isStatic, diff)
		}
	}
}

func TestMemberSlotsMatchLocalVariables(t *testing.T) {
	b := newClassBuilder()
	lvt := b.localVariableTable(
		LocalVariable{Length: 1, NameIndex: b.utf8("this"), DescriptorIndex: b.utf8("LSlots;"), Index: 0},
		LocalVariable{Length: 1, NameIndex: b.utf8("count"), DescriptorIndex: b.utf8("I"), Index: 1},
		LocalVariable{Length: 1, NameIndex: b.utf8("total"), DescriptorIndex: b.utf8("J"), Index: 2},
		LocalVariable{Length: 1, NameIndex: b.utf8("label"), DescriptorIndex: b.utf8("Ljava/lang/String;"), Index: 4},
		LocalVariable{StartPC: 1, Length: 0, NameIndex: b.utf8("tmp"), DescriptorIndex: b.utf8("I"), Index: 5},
	)
	cf, err := Decode(b.build(classDef{
		name: "Slots",
		methods: []memberDef{{
			name:  "add",
			desc:  "(IJLjava/lang/String;)V",
			attrs: [][]byte{b.code(4, 6, []byte{0xB1}, nil, lvt)},
		}},
	}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m := cf.FindMethod("add", "(IJLjava/lang/String;)V")
	slots, err := m.ArgumentSlots()
	if err != nil {
		t.Fatalf("ArgumentSlots: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 4}, slots); diff != "" {
		t.Errorf("slots mismatch (-want +got):\n%s", diff)
	}

	byIndex := map[uint16]LocalVariable{}
	for _, lv := range m.LocalVariableTable() {
		byIndex[lv.Index] = lv
	}
	args, _ := m.ArgumentTypes()
	for i, slot := range slots {
		lv, ok := byIndex[uint16(slot)]
		if !ok {
			t.Errorf("no local variable in slot %d", slot)
			continue
		}
		desc, err := m.Pool().Utf8(lv.DescriptorIndex)
		if err != nil {
			t.Fatal(err)
		}
		if desc != args[i].String() {
			t.Errorf("slot %d: local variable has %q, argument is %q", slot, desc, args[i])
		}
	}

	names, err := m.ParameterNames()
	if err != nil {
		t.Fatalf("ParameterNames: %v", err)
	}
	if diff := cmp.Diff([]string{"count", "total", "label"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestParameterNamesFromMethodParameters(t *testing.T) {
	b := newClassBuilder()
	var mp wbuf
	mp.u1(2)
	mp.u2(b.utf8("first"))
	mp.u2(0)
	mp.u2(0) // unnamed
	mp.u2(uint16(AccFinal))
	cf, err := Decode(b.build(classDef{
		name: "Params",
		methods: []memberDef{{
			flags: AccAbstract | AccPublic,
			name:  "f",
			desc:  "(ZD)V",
			attrs: [][]byte{b.attr(AttrMethodParameters, mp)},
		}},
	}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m := cf.FindMethod("f", "(ZD)V")
	if m.Code() != nil {
		t.Error("abstract method should have no Code")
	}
	names, err := m.ParameterNames()
	if err != nil {
		t.Fatalf("ParameterNames: %v", err)
	}
	if diff := cmp.Diff([]string{"first", "arg1"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}
