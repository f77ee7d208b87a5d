package classfile

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/daimatz/jclass/pkg/classfile/internal/cursor"
)

// runClass is a class with one static method run()V whose Code is a bare return.
func runClass() []byte {
	b := newClassBuilder()
	return b.build(classDef{
		name:  "Demo",
		super: "java/lang/Object",
		flags: AccPublic | AccSuper,
		methods: []memberDef{{
			flags: AccPublic | AccStatic,
			name:  "run",
			desc:  "()V",
			attrs: [][]byte{b.code(0, 0, []byte{0xB1}, nil)},
		}},
	})
}

func TestDecodeRunMethod(t *testing.T) {
	cf, err := Decode(runClass())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	className, err := cf.ClassName()
	if err != nil {
		t.Fatalf("resolving this_class: %v", err)
	}
	if className != "Demo" {
		t.Errorf("this_class: got %q, want %q", className, "Demo")
	}
	if got := cf.SuperClassName(); got != "java/lang/Object" {
		t.Errorf("super_class: got %q, want %q", got, "java/lang/Object")
	}
	if cf.MajorVersion != Java17 {
		t.Errorf("major version: got %v, want %v", cf.MajorVersion, Java17)
	}
	if len(cf.Fields) != 0 {
		t.Errorf("fields: got %d, want 0", len(cf.Fields))
	}

	run := cf.Member("run", "()V")
	if run == nil {
		t.Fatal("run()V not found")
	}
	slots, err := run.ArgumentSlots()
	if err != nil {
		t.Fatalf("ArgumentSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("argument slots: got %v, want none", slots)
	}

	code := run.Code()
	if code == nil {
		t.Fatal("run has no Code attribute")
	}
	if len(code.Code) != 1 || code.Code[0] != 0xB1 {
		t.Errorf("code: got %x, want b1", code.Code)
	}
	if code.MaxStack != 0 || code.MaxLocals != 0 {
		t.Errorf("max_stack/max_locals: got %d/%d, want 0/0", code.MaxStack, code.MaxLocals)
	}
}

func TestParseReader(t *testing.T) {
	cf, err := Parse(bytes.NewReader(runClass()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cf.FindMethodByName("run") == nil {
		t.Error("run method not found")
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	for _, data := range [][]byte{
		{0x00, 0x00, 0x00, 0x00},
		{0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 52},
	} {
		_, err := Decode(data)
		if !errors.Is(err, ErrNotAClassFile) {
			t.Errorf("Decode(%x): expected ErrNotAClassFile, got %v", data, err)
		}
		var nerr *NotAClassFileError
		if !errors.As(err, &nerr) {
			t.Errorf("Decode(%x): expected *NotAClassFileError, got %T", data, err)
		}
	}
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	for _, major := range []uint16{0, 44, 70, 0xFFFF} {
		b := newClassBuilder()
		b.major = major
		_, err := Decode(b.build(classDef{name: "V"}))
		var verr *UnsupportedVersionError
		if !errors.As(err, &verr) {
			t.Errorf("major %d: expected UnsupportedVersionError, got %v", major, err)
			continue
		}
		if verr.Major != major {
			t.Errorf("major %d: error reports %d", major, verr.Major)
		}
	}
}

func TestEmptyConstantPool(t *testing.T) {
	d := &decoder{log: zap.NewNop()}
	pool, err := d.parseConstantPool(cursor.New(nil), 0)
	if err != nil {
		t.Fatalf("parseConstantPool: %v", err)
	}
	if pool.Count() != 1 {
		t.Errorf("count: got %d, want 1", pool.Count())
	}
	for i := range pool.All() {
		t.Errorf("unexpected live entry %d", i)
	}

	// The rest of the class cannot resolve this_class against an empty pool.
	data := []byte{0xCA, 0xFE, 0xBA, 0xBE, 0, 0, 0, 52, 0, 0, 0, 0x21, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	_, err = Decode(data)
	var ierr *BadConstantIndexError
	if !errors.As(err, &ierr) {
		t.Errorf("expected BadConstantIndexError for this_class, got %v", err)
	}
}

func TestDecodeTruncatedAtEveryOffset(t *testing.T) {
	b := newClassBuilder()
	b.long(1 << 40)
	b.double(2.5)
	lvt := b.localVariableTable(LocalVariable{Length: 1, NameIndex: b.utf8("x"), DescriptorIndex: b.utf8("I"), Index: 0})
	data := b.build(classDef{
		name:       "Trunc",
		super:      "java/lang/Object",
		interfaces: []string{"java/lang/Runnable"},
		fields:     []memberDef{{flags: AccPrivate, name: "f", desc: "J"}},
		methods: []memberDef{{
			flags: AccStatic,
			name:  "m",
			desc:  "(I)V",
			attrs: [][]byte{b.code(1, 1, []byte{0xB1}, nil, lvt)},
		}},
		attrs: [][]byte{b.attr("Vendor", []byte{1, 2, 3})},
	})

	if _, err := Decode(data); err != nil {
		t.Fatalf("full input: %v", err)
	}
	for n := 0; n < len(data); n++ {
		_, err := Decode(data[:n])
		var terr *TruncatedInputError
		if !errors.As(err, &terr) {
			t.Fatalf("prefix %d/%d: expected TruncatedInputError, got %v", n, len(data), err)
		}
		if terr.Offset > n {
			t.Errorf("prefix %d: reported offset %d past end", n, terr.Offset)
		}
	}
}

func TestDecodeUnknownAttribute(t *testing.T) {
	b := newClassBuilder()
	payload := []byte{9, 8, 7, 6, 5, 4, 3}
	data := b.build(classDef{
		name: "Fwd",
		attrs: [][]byte{
			b.attr("com.example.FutureAttribute", payload),
			b.attr(AttrSourceFile, []byte{0, byte(b.utf8("Fwd.java"))}),
		},
	})

	cf, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(cf.Attributes) != 2 {
		t.Fatalf("attributes: got %d, want 2", len(cf.Attributes))
	}
	raw, ok := cf.Attributes[0].(*RawAttribute)
	if !ok {
		t.Fatalf("attribute 0: got %T, want *RawAttribute", cf.Attributes[0])
	}
	if raw.Name() != "com.example.FutureAttribute" {
		t.Errorf("raw name: got %q", raw.Name())
	}
	if diff := cmp.Diff(payload, raw.Data); diff != "" {
		t.Errorf("raw data mismatch (-want +got):\n%s", diff)
	}
	if got := cf.SourceFile(); got != "Fwd.java" {
		t.Errorf("SourceFile: got %q, want %q", got, "Fwd.java")
	}
}

func TestDecodeAttributeLengthMismatch(t *testing.T) {
	t.Run("longer than payload", func(t *testing.T) {
		b := newClassBuilder()
		data := b.build(classDef{
			name:  "L",
			attrs: [][]byte{b.attr(AttrSourceFile, []byte{0, 1, 0})},
		})
		_, err := Decode(data)
		var lerr *AttributeLengthError
		if !errors.As(err, &lerr) {
			t.Fatalf("expected AttributeLengthError, got %v", err)
		}
		if lerr.Declared != 3 || lerr.Consumed != 2 {
			t.Errorf("got declared=%d consumed=%d, want 3/2", lerr.Declared, lerr.Consumed)
		}
	})

	t.Run("shorter than payload", func(t *testing.T) {
		b := newClassBuilder()
		data := b.build(classDef{
			name:  "S",
			attrs: [][]byte{b.attrWithLength(AttrSourceFile, 1, []byte{0})},
		})
		_, err := Decode(data)
		var terr *TruncatedInputError
		if !errors.As(err, &terr) {
			t.Fatalf("expected TruncatedInputError, got %v", err)
		}
	})
}

func TestDecodeTolerantMarkerAttributes(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	b := newClassBuilder()
	data := b.build(classDef{
		name: "Marked",
		fields: []memberDef{{
			name: "old",
			desc: "I",
			attrs: [][]byte{
				b.attr(AttrDeprecated, nil),
				b.attr(AttrSynthetic, []byte{0xAB, 0xCD}),
			},
		}},
	})

	cf, err := Decode(data, WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	f := cf.FindField("old", "I")
	if f == nil {
		t.Fatal("field old not found")
	}
	if !f.IsDeprecated() {
		t.Error("expected Deprecated attribute")
	}
	syn, ok := f.Attribute(AttrSynthetic).(*SyntheticAttribute)
	if !ok {
		t.Fatalf("Synthetic: got %T", f.Attribute(AttrSynthetic))
	}
	if diff := cmp.Diff([]byte{0xAB, 0xCD}, syn.Trailing); diff != "" {
		t.Errorf("trailing bytes mismatch (-want +got):\n%s", diff)
	}
	if logs.Len() != 1 {
		t.Errorf("warnings logged: got %d, want 1", logs.Len())
	}
}

func TestInterfaceImpliesAbstract(t *testing.T) {
	b := newClassBuilder()
	cf, err := Decode(b.build(classDef{name: "I", super: "java/lang/Object", flags: AccPublic | AccInterface}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !cf.AccessFlags.IsAbstract() {
		t.Errorf("flags %#04x: interface without abstract bit", uint16(cf.AccessFlags))
	}
	if got := cf.AccessFlags.ClassString(); got != "public interface abstract" {
		t.Errorf("ClassString: got %q", got)
	}
}

func TestDecodeInterfaces(t *testing.T) {
	b := newClassBuilder()
	cf, err := Decode(b.build(classDef{
		name:       "Impl",
		super:      "java/lang/Object",
		interfaces: []string{"java/lang/Runnable", "java/io/Serializable"},
	}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	names, err := cf.InterfaceNames()
	if err != nil {
		t.Fatalf("InterfaceNames: %v", err)
	}
	if diff := cmp.Diff([]string{"java/lang/Runnable", "java/io/Serializable"}, names); diff != "" {
		t.Errorf("interfaces mismatch (-want +got):\n%s", diff)
	}
}

func TestCodeAttributeNestedTables(t *testing.T) {
	b := newClassBuilder()
	var lnt wbuf
	lnt.u2(2)
	lnt.u2(0)
	lnt.u2(10)
	lnt.u2(4)
	lnt.u2(11)
	handlers := []ExceptionHandler{{StartPC: 0, EndPC: 4, HandlerPC: 5, CatchType: b.class("java/lang/Exception")}}
	code := b.code(2, 1, []byte{0x03, 0x3B, 0x00, 0x00, 0xB1, 0x4B, 0xB1}, handlers,
		b.attr(AttrLineNumberTable, lnt),
		b.attr("org.example.Instrumented", []byte{1}),
	)
	cf, err := Decode(b.build(classDef{
		name:    "Nested",
		methods: []memberDef{{flags: AccStatic, name: "m", desc: "()V", attrs: [][]byte{code}}},
	}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	c := cf.FindMethod("m", "()V").Code()
	if diff := cmp.Diff(handlers, c.ExceptionHandlers); diff != "" {
		t.Errorf("exception table mismatch (-want +got):\n%s", diff)
	}
	want := []LineNumber{{StartPC: 0, Line: 10}, {StartPC: 4, Line: 11}}
	if diff := cmp.Diff(want, c.LineNumbers()); diff != "" {
		t.Errorf("line numbers mismatch (-want +got):\n%s", diff)
	}
	if _, ok := c.Attribute("org.example.Instrumented").(*RawAttribute); !ok {
		t.Error("nested unknown attribute not kept as raw bytes")
	}
}

func TestStackMapTableFrames(t *testing.T) {
	b := newClassBuilder()
	str := b.class("java/lang/String")
	var w wbuf
	w.u2(6)
	w.u1(3)      // same, delta 3
	w.u1(64 + 5) // same_locals_1_stack_item, delta 5
	w.u1(uint8(VerifyInteger))
	w.u1(250) // chop 1
	w.u2(7)
	w.u1(252) // append 1
	w.u2(2)
	w.u1(uint8(VerifyObject))
	w.u2(str)
	w.u1(255) // full
	w.u2(9)
	w.u2(2)
	w.u1(uint8(VerifyLong))
	w.u1(uint8(VerifyUninitialized))
	w.u2(12)
	w.u2(1)
	w.u1(uint8(VerifyNull))
	w.u1(251) // same_frame_extended
	w.u2(300)

	code := b.code(1, 3, []byte{0xB1}, nil, b.attr(AttrStackMapTable, w))
	cf, err := Decode(b.build(classDef{
		name:    "Frames",
		methods: []memberDef{{flags: AccStatic, name: "m", desc: "()V", attrs: [][]byte{code}}},
	}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	smt, ok := cf.FindMethod("m", "()V").Code().Attribute(AttrStackMapTable).(*StackMapTableAttribute)
	if !ok {
		t.Fatal("StackMapTable not decoded")
	}
	want := []StackMapEntry{
		{FrameType: 3, OffsetDelta: 3},
		{FrameType: 69, OffsetDelta: 5, Stack: []StackMapType{{Kind: VerifyInteger}}},
		{FrameType: 250, OffsetDelta: 7, Chopped: 1},
		{FrameType: 252, OffsetDelta: 2, Locals: []StackMapType{{Kind: VerifyObject, Index: str}}},
		{FrameType: 255, OffsetDelta: 9,
			Locals: []StackMapType{{Kind: VerifyLong}, {Kind: VerifyUninitialized, Index: 12}},
			Stack:  []StackMapType{{Kind: VerifyNull}}},
		{FrameType: 251, OffsetDelta: 300},
	}
	if diff := cmp.Diff(want, smt.Entries); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestLegacyStackMap(t *testing.T) {
	b := newClassBuilder()
	var w wbuf
	w.u2(2)
	w.u2(4) // offset
	w.u2(1)
	w.u1(uint8(VerifyInteger))
	w.u2(0)
	// Offsets and indices above 0x7FFF stay unsigned.
	w.u2(0x9000)
	w.u2(0)
	w.u2(1)
	w.u1(uint8(VerifyUninitialized))
	w.u2(0x8001)
	code := b.code(1, 1, []byte{0xB1}, nil, b.attr(AttrStackMap, w))
	cf, err := Decode(b.build(classDef{
		name:    "Legacy",
		methods: []memberDef{{flags: AccStatic, name: "m", desc: "()V", attrs: [][]byte{code}}},
	}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	sm, ok := cf.FindMethod("m", "()V").Code().Attribute(AttrStackMap).(*StackMapAttribute)
	if !ok {
		t.Fatal("StackMap not decoded")
	}
	want := []StackMapEntry{
		{FrameType: FrameFull, OffsetDelta: 4, Locals: []StackMapType{{Kind: VerifyInteger}}, Stack: []StackMapType{}},
		{FrameType: FrameFull, OffsetDelta: 0x9000, Locals: []StackMapType{}, Stack: []StackMapType{{Kind: VerifyUninitialized, Index: 0x8001}}},
	}
	if diff := cmp.Diff(want, sm.Entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestClassLevelStructuredAttributes(t *testing.T) {
	b := newClassBuilder()
	outer := b.class("Outer")
	inner := b.class("Outer$Inner")
	innerName := b.utf8("Inner")
	mref := b.methodref("Outer", "bootstrap", "()V")

	var ic wbuf
	ic.u2(1)
	ic.u2(inner)
	ic.u2(outer)
	ic.u2(innerName)
	ic.u2(uint16(AccPublic | AccStatic))

	var bsm wbuf
	bsm.u2(1)
	bsm.u2(mref)
	bsm.u2(2)
	bsm.u2(outer)
	bsm.u2(inner)

	var nest wbuf
	nest.u2(1)
	nest.u2(inner)

	var sig wbuf
	sig.u2(b.utf8("Ljava/lang/Object;"))

	cf, err := Decode(b.build(classDef{
		name: "Outer",
		attrs: [][]byte{
			b.attr(AttrInnerClasses, ic),
			b.attr(AttrBootstrapMethods, bsm),
			b.attr(AttrNestMembers, nest),
			b.attr(AttrSignature, sig),
			b.attr(AttrSourceDebugExtension, []byte("SMAP")),
		},
	}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	ica, ok := cf.Attribute(AttrInnerClasses).(*InnerClassesAttribute)
	if !ok {
		t.Fatal("InnerClasses not decoded")
	}
	wantIC := []InnerClass{{InnerClassIndex: inner, OuterClassIndex: outer, InnerNameIndex: innerName, InnerAccessFlags: AccPublic | AccStatic}}
	if diff := cmp.Diff(wantIC, ica.Classes); diff != "" {
		t.Errorf("inner classes mismatch (-want +got):\n%s", diff)
	}

	wantBSM := []BootstrapMethod{{MethodRef: mref, BootstrapArguments: []uint16{outer, inner}}}
	if diff := cmp.Diff(wantBSM, cf.BootstrapMethods()); diff != "" {
		t.Errorf("bootstrap methods mismatch (-want +got):\n%s", diff)
	}
	ref, err := cf.ConstantPool.ResolveMethodref(mref)
	if err != nil {
		t.Fatalf("ResolveMethodref: %v", err)
	}
	if diff := cmp.Diff(&MemberRef{ClassName: "Outer", Name: "bootstrap", Descriptor: "()V"}, ref); diff != "" {
		t.Errorf("method ref mismatch (-want +got):\n%s", diff)
	}

	if nm, ok := cf.Attribute(AttrNestMembers).(*NestMembersAttribute); !ok || len(nm.Classes) != 1 || nm.Classes[0] != inner {
		t.Errorf("NestMembers: got %+v", cf.Attribute(AttrNestMembers))
	}
	if sde, ok := cf.Attribute(AttrSourceDebugExtension).(*SourceDebugExtensionAttribute); !ok || sde.Debug != "SMAP" {
		t.Errorf("SourceDebugExtension: got %+v", cf.Attribute(AttrSourceDebugExtension))
	}
}

func TestFieldConstantValue(t *testing.T) {
	b := newClassBuilder()
	val := b.integer(42)
	big := b.long(-7)
	var cv, cvLong wbuf
	cv.u2(val)
	cvLong.u2(big)
	cf, err := Decode(b.build(classDef{
		name: "Consts",
		fields: []memberDef{
			{flags: AccStatic | AccFinal, name: "ANSWER", desc: "I", attrs: [][]byte{b.attr(AttrConstantValue, cv)}},
			{flags: AccStatic | AccFinal, name: "NEG", desc: "J", attrs: [][]byte{b.attr(AttrConstantValue, cvLong)}},
		},
	}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	c, err := cf.FindField("ANSWER", "I").ConstantValue()
	if err != nil {
		t.Fatalf("ConstantValue: %v", err)
	}
	if i, ok := c.(*ConstantInteger); !ok || i.Value != 42 {
		t.Errorf("ANSWER: got %#v", c)
	}
	c, err = cf.FindField("NEG", "J").ConstantValue()
	if err != nil {
		t.Fatalf("ConstantValue: %v", err)
	}
	if l, ok := c.(*ConstantLong); !ok || l.Value != -7 {
		t.Errorf("NEG: got %#v", c)
	}
	if _, err := cf.FindField("ANSWER", "I").ArgumentTypes(); err == nil {
		t.Error("expected error for ArgumentTypes on a field")
	}
}

func TestConcurrentDecode(t *testing.T) {
	data := runClass()
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cf, err := Decode(data)
			if err != nil {
				errs <- err
				return
			}
			if _, err := cf.FindMethod("run", "()V").ArgumentSlots(); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSharedMemberLazyState(t *testing.T) {
	cf, err := Decode(runClass())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m := cf.FindMethod("run", "()V")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.ArgumentTypes()
			m.ParameterNames()
		}()
	}
	wg.Wait()
}
