package definition

import (
	"slices"

	"github.com/samber/lo"
)

// Object 是一组片段分类、去重之后的聚合结果。构造后不可变，
// 不持有任何脚本侧对象的引用，可以在多个 Runtime 上重复绑定。
type Object struct {
	functions     []*Function
	functionIndex map[string]int

	properties    []*Property
	propertyIndex map[string]int

	constants []*Constants
	merged    map[string]any
}

func (o *Object) Kind() Kind { return KindObject }
func (o *Object) fragment()  {}

// Aggregate 对片段进行分类。同类同名时后注册者覆盖先注册者（保留首次出现的位置）；
// 不同类别之间不去重。任一片段非法都会让整次调用失败。
func Aggregate(fragments ...Fragment) (*Object, error) {
	o := &Object{
		functionIndex: map[string]int{},
		propertyIndex: map[string]int{},
	}
	if err := o.add(fragments); err != nil {
		return nil, err
	}
	o.merged = MergeConstants(o.constants...)
	return o, nil
}

// MustAggregate 同 Aggregate，失败时 panic。
func MustAggregate(fragments ...Fragment) *Object {
	o, err := Aggregate(fragments...)
	if err != nil {
		panic(err)
	}
	return o
}

func (o *Object) add(fragments []Fragment) error {
	for _, frag := range fragments {
		switch f := frag.(type) {
		case *Function:
			if f == nil {
				return &InvalidDefinitionError{Kind: KindFunction, Reason: "fragment is nil"}
			}
			if _, err := funcType(f.callable); err != nil || f.name == "" {
				return &InvalidDefinitionError{Kind: KindFunction, Name: f.name, Reason: "not created by NewFunction"}
			}
			o.putFunction(f)
		case *Property:
			if f == nil {
				return &InvalidDefinitionError{Kind: KindProperty, Reason: "fragment is nil"}
			}
			if err := f.validate(); err != nil {
				return err
			}
			o.putProperty(f)
		case *Constants:
			if f == nil {
				return &InvalidDefinitionError{Kind: KindConstants, Reason: "fragment is nil"}
			}
			o.constants = append(o.constants, f.evaluate())
		case *Object:
			if f == nil {
				return &InvalidDefinitionError{Kind: KindObject, Reason: "fragment is nil"}
			}
			// 嵌套对象按原顺序展开，等价于把其内容直接写在此处。
			for _, fn := range f.functions {
				o.putFunction(fn)
			}
			for _, p := range f.properties {
				o.putProperty(p)
			}
			o.constants = append(o.constants, f.constants...)
		case nil:
			return &InvalidDefinitionError{Kind: "fragment", Reason: "fragment is nil"}
		default:
			return &InvalidDefinitionError{Kind: frag.Kind(), Reason: "unsupported fragment"}
		}
	}
	return nil
}

func (o *Object) putFunction(f *Function) {
	if i, ok := o.functionIndex[f.name]; ok {
		o.functions[i] = f
		return
	}
	o.functionIndex[f.name] = len(o.functions)
	o.functions = append(o.functions, f)
}

func (o *Object) putProperty(p *Property) {
	if i, ok := o.propertyIndex[p.name]; ok {
		o.properties[i] = p
		return
	}
	o.propertyIndex[p.name] = len(o.properties)
	o.properties = append(o.properties, p)
}

// Functions 按首次注册顺序返回函数定义。
func (o *Object) Functions() []*Function { return slices.Clone(o.functions) }

// Properties 按首次注册顺序返回属性定义。
func (o *Object) Properties() []*Property { return slices.Clone(o.properties) }

// Constants 返回按片段顺序排列的常量快照。
func (o *Object) Constants() []*Constants { return slices.Clone(o.constants) }

// Function 按名称查找函数定义。
func (o *Object) Function(name string) (*Function, bool) {
	i, ok := o.functionIndex[name]
	if !ok {
		return nil, false
	}
	return o.functions[i], true
}

// Property 按名称查找属性定义。
func (o *Object) Property(name string) (*Property, bool) {
	i, ok := o.propertyIndex[name]
	if !ok {
		return nil, false
	}
	return o.properties[i], true
}

// MergedConstants 返回合并后的常量表副本。
func (o *Object) MergedConstants() map[string]any {
	return lo.Assign(o.merged)
}

// constantKeys 返回排序后的常量键，保证写入顺序稳定。
func (o *Object) constantKeys() []string {
	keys := lo.Keys(o.merged)
	slices.Sort(keys)
	return keys
}

// Keys 返回绑定后对象上会出现的全部键（跨类别同名只计一次）。
func (o *Object) Keys() []string {
	keys := o.constantKeys()
	keys = append(keys, lo.Map(o.functions, func(f *Function, _ int) string { return f.name })...)
	keys = append(keys, lo.Map(o.properties, func(p *Property, _ int) string { return p.name })...)
	return lo.Uniq(keys)
}
