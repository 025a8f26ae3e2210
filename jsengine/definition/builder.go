package definition

// Build 在 rt 中创建一个新对象，并用 def 装饰它。整个过程只创建一个对象。
func Build(def *Object, rt Runtime) (RuntimeObject, error) {
	if def == nil {
		return nil, errNilDefinition()
	}
	obj, err := rt.CreateObject()
	if err != nil {
		return nil, &RuntimeBindingError{Op: "create object", Cause: err}
	}
	if err := Decorate(def, obj, rt); err != nil {
		return nil, err
	}
	return obj, nil
}

// Decorate 把 def 写到已有对象 obj 上，顺序固定为：常量、函数、属性。
// 跨类别同名时后写入者生效。可以对同一对象多次调用以逐步扩展。
// 任何一次运行时写入失败都会立即返回 *RuntimeBindingError，不做重试。
func Decorate(def *Object, obj RuntimeObject, rt Runtime) error {
	if def == nil {
		return errNilDefinition()
	}
	m := marshallerFor(rt)

	for _, key := range def.constantKeys() {
		if err := rt.SetProperty(obj, key, def.merged[key]); err != nil {
			return &RuntimeBindingError{Op: "set constant", Name: key, Cause: err}
		}
	}

	for _, fn := range def.functions {
		if err := rt.SetProperty(obj, fn.name, hostFunction(fn, m)); err != nil {
			return &RuntimeBindingError{Op: "set function", Name: fn.name, Cause: err}
		}
	}

	for _, p := range def.properties {
		getter, setter := accessors(p, m)
		if err := rt.DefineAccessorProperty(obj, p.name, getter, setter); err != nil {
			return &RuntimeBindingError{Op: "define property", Name: p.name, Cause: err}
		}
	}
	return nil
}

func errNilDefinition() error {
	return &InvalidDefinitionError{Kind: KindObject, Reason: "definition is nil"}
}

func hostFunction(fn *Function, m Marshaller) HostFunction {
	callable := fn.callable
	return HostFunction{
		Name:  fn.name,
		Arity: fn.arity,
		Call: func(args []any) (any, error) {
			return m.Invoke(callable, args)
		},
	}
}

// accessors 总是返回两个 thunk；缺失的一侧以 AccessError 拒绝访问，
// 而不是静默忽略。
func accessors(p *Property, m Marshaller) (Getter, Setter) {
	name := p.name
	getter := Getter(func() (any, error) {
		return nil, &AccessError{Name: name, Err: ErrNotReadable}
	})
	setter := Setter(func(any) error {
		return &AccessError{Name: name, Err: ErrNotWritable}
	})
	if g := p.getter; g != nil {
		getter = func() (any, error) {
			return m.Invoke(g, nil)
		}
	}
	if s := p.setter; s != nil {
		setter = func(value any) error {
			_, err := m.Invoke(s, []any{value})
			return err
		}
	}
	return getter, setter
}
