package extension

import "plugin"

// GoModuleLoader loads a module by dlopen-ing it via the standard
// library's plugin package and looking up a fixed symbol every module
// is expected to export.
type GoModuleLoader struct {
	// Symbol is the exported symbol every module must define, a
	// func(any) error invoked with Registry to run its own registration
	// side effects; its error is returned from LoadModule.
	Symbol   string
	Registry any
}

var _ ModuleLoader = (*GoModuleLoader)(nil)

// LoadModule opens path and invokes its registration symbol.
func (l *GoModuleLoader) LoadModule(path string) error {
	p, err := plugin.Open(path)
	if err != nil {
		return errAutoload("open module "+path, err)
	}
	sym, err := p.Lookup(l.Symbol)
	if err != nil {
		return errAutoload("lookup symbol "+l.Symbol+" in "+path, err)
	}
	register, ok := sym.(func(any) error)
	if !ok {
		return errAutoload("module "+path, errBadModuleSymbol)
	}
	return register(l.Registry)
}
