package definition

import (
	"fmt"

	"github.com/pkg/errors"
)

var errFrozen = errors.New("object is frozen")

type fakeProp struct {
	value        any
	getter       Getter
	setter       Setter
	accessor     bool
	configurable bool
}

type fakeObject struct {
	id     int
	frozen bool
	keys   []string
	props  map[string]*fakeProp
}

// fakeRuntime 是内存中的 Runtime 实现，只用于测试写入语义。
type fakeRuntime struct {
	created []*fakeObject
	writes  []string
}

func (r *fakeRuntime) CreateObject() (RuntimeObject, error) {
	o := &fakeObject{id: len(r.created) + 1, props: map[string]*fakeProp{}}
	r.created = append(r.created, o)
	return o, nil
}

func (r *fakeRuntime) put(o *fakeObject, name string, p *fakeProp) error {
	if o.frozen {
		return errFrozen
	}
	if old, ok := o.props[name]; ok {
		if !old.configurable {
			return &NotConfigurableError{Name: name}
		}
	} else {
		o.keys = append(o.keys, name)
	}
	o.props[name] = p
	return nil
}

func (r *fakeRuntime) SetProperty(obj RuntimeObject, name string, value any) error {
	r.writes = append(r.writes, "set:"+name)
	return r.put(obj.(*fakeObject), name, &fakeProp{value: value, configurable: true})
}

func (r *fakeRuntime) DefineAccessorProperty(obj RuntimeObject, name string, getter Getter, setter Setter) error {
	r.writes = append(r.writes, "accessor:"+name)
	return r.put(obj.(*fakeObject), name, &fakeProp{getter: getter, setter: setter, accessor: true, configurable: true})
}

func (o *fakeObject) get(name string) (any, error) {
	p, ok := o.props[name]
	if !ok {
		return nil, fmt.Errorf("%s is undefined", name)
	}
	if p.accessor {
		return p.getter()
	}
	return p.value, nil
}

func (o *fakeObject) set(name string, v any) error {
	p, ok := o.props[name]
	if !ok {
		return fmt.Errorf("%s is undefined", name)
	}
	if p.accessor {
		return p.setter(v)
	}
	p.value = v
	return nil
}

func (o *fakeObject) call(name string, args ...any) (any, error) {
	v, err := o.get(name)
	if err != nil {
		return nil, err
	}
	fn, ok := v.(HostFunction)
	if !ok {
		return nil, fmt.Errorf("%s is not a function", name)
	}
	return fn.Call(args)
}

func (o *fakeObject) isAccessor(name string) bool {
	p, ok := o.props[name]
	return ok && p.accessor
}
