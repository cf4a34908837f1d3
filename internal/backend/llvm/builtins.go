package llvm

type builtinDecl struct {
	name   string
	ret    string
	params []string
}

// Support functions every module may reference. The shared object is
// linked against a runtime providing them.
const (
	rtAlloc   = "rt_alloc"
	rtRealloc = "rt_realloc"
	rtMemcpy  = "rt_memcpy"
	rtTrap    = "rt_trap"
)

func runtimeDecls() []builtinDecl {
	return []builtinDecl{
		{name: rtAlloc, ret: "ptr", params: []string{"i64", "i64"}},
		{name: rtRealloc, ret: "ptr", params: []string{"ptr", "i64", "i64", "i64"}},
		{name: rtMemcpy, ret: "void", params: []string{"ptr", "ptr", "i64"}},
		{name: rtTrap, ret: "void", params: []string{"i32", "ptr"}},
	}
}
