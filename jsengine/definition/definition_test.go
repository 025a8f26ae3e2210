package definition

import (
	"testing"

	"github.com/pkg/errors"
)

func TestNewPropertyRequiresAccessor(t *testing.T) {
	tests := []struct {
		name    string
		prop    string
		getter  any
		setter  any
		wantErr bool
	}{
		{name: "neither", prop: "x", wantErr: true},
		{name: "getter_only", prop: "x", getter: func() int { return 1 }},
		{name: "setter_only", prop: "x", setter: func(int) {}},
		{name: "both", prop: "x", getter: func() int { return 1 }, setter: func(int) {}},
		{name: "empty_name", prop: " ", getter: func() int { return 1 }, wantErr: true},
		{name: "getter_not_func", prop: "x", getter: 5, wantErr: true},
		{name: "getter_with_args", prop: "x", getter: func(int) int { return 1 }, wantErr: true},
		{name: "setter_without_args", prop: "x", setter: func() {}, wantErr: true},
		{name: "setter_variadic", prop: "x", setter: func(...int) {}, wantErr: true},
		{name: "typed_nil_getter", prop: "x", getter: (func() int)(nil), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProperty(tt.prop, tt.getter, tt.setter)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("不应失败: %v", err)
				}
				if p.Name() != tt.prop {
					t.Fatalf("属性名错误: got=%s want=%s", p.Name(), tt.prop)
				}
				return
			}
			if err == nil {
				t.Fatal("非法属性定义应失败")
			}
			var ide *InvalidDefinitionError
			if !errors.As(err, &ide) {
				t.Fatalf("错误类型不正确: %T %v", err, err)
			}
			if ide.Kind != KindProperty {
				t.Fatalf("错误分类不正确: got=%s want=%s", ide.Kind, KindProperty)
			}
		})
	}
}

func TestNewFunctionMetadata(t *testing.T) {
	f, err := NewFunction("add", func(a, b int) int { return a + b })
	if err != nil {
		t.Fatalf("创建函数定义失败: %v", err)
	}
	if f.Arity() != 2 || f.Variadic() {
		t.Fatalf("元数据错误: arity=%d variadic=%v", f.Arity(), f.Variadic())
	}

	v, err := NewFunction("join", func(sep string, parts ...string) string { return "" })
	if err != nil {
		t.Fatalf("创建变参函数定义失败: %v", err)
	}
	if v.Arity() != 1 || !v.Variadic() {
		t.Fatalf("变参元数据错误: arity=%d variadic=%v", v.Arity(), v.Variadic())
	}

	o, err := NewFunction("raw", func(args []any) (any, error) { return nil, nil }, WithArity(3))
	if err != nil {
		t.Fatalf("创建函数定义失败: %v", err)
	}
	if o.Arity() != 3 {
		t.Fatalf("WithArity 未生效: %d", o.Arity())
	}
}

func TestNewFunctionRejectsInvalidInput(t *testing.T) {
	cases := map[string]struct {
		name     string
		callable any
	}{
		"empty_name":   {name: "", callable: func() {}},
		"nil_callable": {name: "f", callable: nil},
		"not_func":     {name: "f", callable: "f"},
		"typed_nil":    {name: "f", callable: (func())(nil)},
	}
	for label, c := range cases {
		_, err := NewFunction(c.name, c.callable)
		var ide *InvalidDefinitionError
		if !errors.As(err, &ide) || ide.Kind != KindFunction {
			t.Fatalf("%s: 期望 InvalidDefinitionError，got=%T %v", label, err, err)
		}
	}
}

func TestMustPropertyPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("MustProperty 应 panic")
		}
		if _, ok := r.(*InvalidDefinitionError); !ok {
			t.Fatalf("panic 值类型不正确: %T", r)
		}
	}()
	MustProperty("x", nil, nil)
}

func TestNewConstantsCopiesInput(t *testing.T) {
	src := map[string]any{"a": 1}
	c := NewConstants(src)
	src["a"] = 2
	if c.Values()["a"] != 1 {
		t.Fatalf("常量定义不应受外部修改影响: %v", c.Values())
	}
}

func TestConstantsValuesReturnsCopy(t *testing.T) {
	c := NewConstants(map[string]any{"a": 1})
	c.Values()["a"] = 99

	o := MustAggregate(c)
	if got := o.Constants()[0].Values()["a"]; got != 1 {
		t.Fatalf("快照不应被 Values 的返回值修改: %v", got)
	}
	o.Constants()[0].Values()["a"] = 98
	if got := MergeConstants(o.Constants()...)["a"]; got != 1 {
		t.Fatalf("聚合后的常量不应被修改: %v", got)
	}

	obj, err := Build(o, &fakeRuntime{})
	if err != nil {
		t.Fatalf("Build 失败: %v", err)
	}
	if got := obj.(*fakeObject).props["a"].value; got != 1 {
		t.Fatalf("写入运行时的常量错误: %v", got)
	}
}
